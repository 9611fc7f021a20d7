package normalize

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when no supported layout yields a calendar date.
var ErrInvalidDate = errors.New("normalize: unparseable date")

const isoDateLayout = "2006-01-02"

var (
	monthDayYearRe = regexp.MustCompile(`^([A-Za-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`)
	isoDateRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoStampRe     = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}T`)
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var dashLayouts = []string{
	"2006-1-2",
	"01-02-2006",
	"1-2-2006",
	"02-Jan-2006",
	"2-Jan-2006",
}

var wordLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
}

var fallbackLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"2006/1/2",
	"01/02/06",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	"Mon, 02 Jan 2006",
	"Mon Jan 2 2006",
}

// NormalizeDate converts an ISO timestamp, a YYYY-MM-DD date or a
// "Month D, YYYY" string to strict YYYY-MM-DD.
func NormalizeDate(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrInvalidDate
	}

	if m := monthDayYearRe.FindStringSubmatch(value); m != nil {
		if t, ok := monthDayYear(m[1], m[2], m[3]); ok {
			return t.Format(isoDateLayout), nil
		}
	}

	switch {
	case isoStampRe.MatchString(value):
		if t, ok := parseFirst(value, timestampLayouts); ok {
			return t.UTC().Format(isoDateLayout), nil
		}
	case strings.Contains(value, "-"):
		if isoDateRe.MatchString(value) {
			t, err := time.Parse(isoDateLayout, value)
			if err != nil {
				return "", ErrInvalidDate
			}
			return t.Format(isoDateLayout), nil
		}
		if t, ok := parseFirst(value, dashLayouts); ok {
			return t.Format(isoDateLayout), nil
		}
	default:
		if t, ok := parseFirst(value, wordLayouts); ok {
			return t.Format(isoDateLayout), nil
		}
	}

	if t, ok := parseFirst(value, fallbackLayouts); ok {
		return t.Format(isoDateLayout), nil
	}
	return "", ErrInvalidDate
}

// ISODateTime renders a normalized YYYY-MM-DD as a midnight-UTC ISO-8601
// timestamp, the shape stored on booking records.
func ISODateTime(date string) string {
	t, err := time.Parse(isoDateLayout, date)
	if err != nil {
		return date
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func parseFirst(value string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func monthDayYear(monthName, dayStr, yearStr string) (time.Time, bool) {
	month, ok := lookupMonth(monthName)
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (April 31 -> May 1); reject that.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func lookupMonth(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), name) {
			return m, true
		}
	}
	return 0, false
}
