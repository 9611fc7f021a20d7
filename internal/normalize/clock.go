package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidTime is returned when a time of day cannot be read.
var ErrInvalidTime = errors.New("normalize: unparseable time")

var (
	hmsRe      = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})$`)
	twelveHMRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp])\.?\s*[Mm]\.?$`)
	twelveHRe  = regexp.MustCompile(`^(\d{1,2})\s*([AaPp])\.?\s*[Mm]\.?$`)
	hmRe       = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// NormalizeTime converts "HH:MM:SS", "H:MM AM/PM" or 24-hour "H:MM" input
// to HH:MM:SS.
func NormalizeTime(raw string) (string, error) {
	value := strings.TrimSpace(raw)

	if m := hmsRe.FindStringSubmatch(value); m != nil {
		return clock(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := twelveHMRe.FindStringSubmatch(value); m != nil {
		return twelveHour(atoi(m[1]), atoi(m[2]), m[3])
	}
	if m := twelveHRe.FindStringSubmatch(value); m != nil {
		return twelveHour(atoi(m[1]), 0, m[2])
	}
	if m := hmRe.FindStringSubmatch(value); m != nil {
		return clock(atoi(m[1]), atoi(m[2]), 0)
	}
	return "", ErrInvalidTime
}

func twelveHour(hour, minute int, meridiem string) (string, error) {
	if hour < 1 || hour > 12 {
		return "", ErrInvalidTime
	}
	pm := strings.EqualFold(meridiem, "p")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return clock(hour, minute, 0)
}

func clock(hour, minute, second int) (string, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return "", ErrInvalidTime
	}
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second), nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
