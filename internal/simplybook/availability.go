package simplybook

import (
	"context"
	"time"
)

const (
	probeWindowDays   = 10
	maxAlternateDays  = 3
	maxSlotsPerAltDay = 3
)

// Availability is the advisory result of CheckAvailability.
type Availability struct {
	Available    bool             `json:"available"`
	Date         string           `json:"date"`
	Time         string           `json:"time"`
	Alternatives []AlternativeDay `json:"alternatives,omitempty"`
	// Err is set when the remote could not be asked; Available is false then.
	Err error `json:"-"`
}

// AlternativeDay lists a few open start times on a nearby date.
type AlternativeDay struct {
	Date  string   `json:"date"`
	Times []string `json:"times"`
}

// CheckAvailability reports whether tm (HH:MM:SS) is an open start time on
// date. When it is not, nearby alternatives are attached.
func (c *Client) CheckAvailability(ctx context.Context, token string, eventID int, unitID *int, date, tm string) Availability {
	out := Availability{Date: date, Time: tm}
	times, err := c.GetStartTimeList(ctx, token, eventID, unitID, date)
	if err != nil {
		out.Err = err
		c.logger.Warn("simplybook availability check failed", "error", err, "event_id", eventID, "date", date)
	} else {
		for _, t := range times {
			if t == tm {
				out.Available = true
				return out
			}
		}
	}
	out.Alternatives = c.SuggestAlternatives(ctx, token, eventID, unitID, date)
	return out
}

// SuggestAlternatives probes the days after date and returns up to three
// days with up to three open slots each. Probe failures are skipped.
func (c *Client) SuggestAlternatives(ctx context.Context, token string, eventID int, unitID *int, date string) []AlternativeDay {
	start, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}

	var days []AlternativeDay
	for offset := 1; offset <= probeWindowDays && len(days) < maxAlternateDays; offset++ {
		if err := c.probeLimiter.Wait(ctx); err != nil {
			break
		}
		day := start.AddDate(0, 0, offset).Format("2006-01-02")
		times, err := c.GetStartTimeList(ctx, token, eventID, unitID, day)
		if err != nil || len(times) == 0 {
			continue
		}
		if len(times) > maxSlotsPerAltDay {
			times = times[:maxSlotsPerAltDay]
		}
		days = append(days, AlternativeDay{Date: day, Times: times})
	}
	return days
}
