package simplybook

import (
	"context"
	"strings"
)

// MatchTier records how a service name was resolved to a remote event.
type MatchTier string

const (
	MatchExact           MatchTier = "exact"
	MatchCaseInsensitive MatchTier = "case_insensitive"
	MatchSubstring       MatchTier = "substring"
	MatchFirstEntry      MatchTier = "first_entry"
	MatchStatic          MatchTier = "static"
	MatchDefault         MatchTier = "default"
)

// Degraded reports whether the tier is a guess rather than a name match.
func (t MatchTier) Degraded() bool {
	switch t {
	case MatchFirstEntry, MatchStatic, MatchDefault:
		return true
	}
	return false
}

// DefaultEventID is used when neither the catalog nor the static table knows
// the service.
const DefaultEventID = 1

// StaticEventIDs maps the course names sold on the site to scheduler event
// ids. Config can extend or override it.
var StaticEventIDs = map[string]int{
	"CPR & First Aid":              1,
	"CPR/AED & First Aid":          1,
	"BLS for Healthcare Providers": 2,
	"BLS Provider":                 2,
	"Adult CPR/AED":                3,
	"Pediatric CPR & First Aid":    4,
	"First Aid":                    5,
	"BLS Renewal":                  6,
}

// MatchEvent picks the catalog entry for name, trying exact, then
// case-insensitive, then substring in either direction. A non-empty catalog
// always yields a result: the first entry is returned when nothing matches.
func MatchEvent(events []Event, name string) (Event, MatchTier, bool) {
	if len(events) == 0 {
		return Event{}, "", false
	}
	for _, ev := range events {
		if ev.Name == name {
			return ev, MatchExact, true
		}
	}

	want := normalizeName(name)
	for _, ev := range events {
		if normalizeName(ev.Name) == want {
			return ev, MatchCaseInsensitive, true
		}
	}
	if want != "" {
		for _, ev := range events {
			got := normalizeName(ev.Name)
			if got == "" {
				continue
			}
			if strings.Contains(got, want) || strings.Contains(want, got) {
				return ev, MatchSubstring, true
			}
		}
	}
	return events[0], MatchFirstEntry, true
}

// EventResolution is the outcome of ResolveEventID.
type EventResolution struct {
	EventID   int       `json:"eventId"`
	EventName string    `json:"eventName,omitempty"`
	Tier      MatchTier `json:"tier"`
}

// ResolveEventID maps a display service name to a remote event id. It never
// fails: catalog errors fall back to the static table and then to
// DefaultEventID.
func (c *Client) ResolveEventID(ctx context.Context, token, name string) EventResolution {
	res := c.resolve(ctx, token, name)
	c.metrics.ObserveCatalogMatch(string(res.Tier))
	if res.Tier.Degraded() {
		c.logger.Warn("simplybook service resolved by fallback",
			"service", name,
			"event_id", res.EventID,
			"tier", string(res.Tier),
		)
	}
	return res
}

func (c *Client) resolve(ctx context.Context, token, name string) EventResolution {
	events, err := c.GetEventList(ctx, token)
	if err != nil {
		c.logger.Warn("simplybook catalog fetch failed", "error", err)
	} else if ev, tier, ok := MatchEvent(events, name); ok {
		return EventResolution{EventID: ev.ID, EventName: ev.Name, Tier: tier}
	}

	if id, ok := c.staticIDs[normalizeName(name)]; ok {
		return EventResolution{EventID: id, EventName: name, Tier: MatchStatic}
	}
	return EventResolution{EventID: DefaultEventID, Tier: MatchDefault}
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
