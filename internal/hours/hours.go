// Package hours converts between user-facing times of day and the backend's
// canonical hour parameter.
//
// Canonical hours run from 0 to 35: 0..23 mean that hour today and 24..35
// mean hour-24 tomorrow. Display values are always folded back into 0..23.
package hours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxCanonical is the exclusive upper bound of canonical hours.
	MaxCanonical = 36
	// OptionCount is how many hourly options the time picker offers.
	OptionCount = 12
)

// ToCanonical converts a display time ("HH:MM" or "HH") into a canonical hour.
// An empty display means no selection and yields nowHour. When it is
// currently afternoon (nowHour > 12) a morning hour refers to tomorrow and
// is shifted by 24. String input is always treated as a display value, so
// "9" wraps like "09:00"; use FromCanonical for an hour that is already
// canonical.
func ToCanonical(display string, nowHour int) (int, error) {
	display = strings.TrimSpace(display)
	if display == "" {
		return nowHour, nil
	}
	h, err := parseHour(display)
	if err != nil {
		return 0, err
	}
	return Canonical(h, nowHour), nil
}

// FromCanonical passes an already canonical hour through unchanged after
// checking its range.
func FromCanonical(hour int) (int, error) {
	if hour < 0 || hour >= MaxCanonical {
		return 0, fmt.Errorf("hour out of range: %d", hour)
	}
	return hour, nil
}

// Canonical applies the wraparound rule to an already parsed hour.
func Canonical(hour, nowHour int) int {
	if nowHour > 12 && hour/12 < 1 {
		return hour + 24
	}
	return hour
}

// NextFullHour returns the next full hour after the given "HH:MM" time of day.
// It always advances, even when the input is exactly on the hour, so the
// current hour is never offered as a slot.
func NextFullHour(timeOfDay string) (string, error) {
	h, err := parseHour(timeOfDay)
	if err != nil {
		return "", err
	}
	return Display(h + 1), nil
}

// NextFullHourAt is NextFullHour for a wall-clock time.
func NextFullHourAt(now time.Time) string {
	return Display(now.Hour() + 1)
}

// Fold maps a canonical hour into 0..23.
func Fold(canonical int) int {
	f := canonical % 24
	if f < 0 {
		f += 24
	}
	return f
}

// Display formats a canonical hour as a zero-padded "HH:00" display value.
func Display(canonical int) string {
	return fmt.Sprintf("%02d:00", Fold(canonical))
}

// Options returns the hourly picker options starting at the next full hour.
func Options(now time.Time) []string {
	start := now.Hour() + 1
	out := make([]string, 0, OptionCount)
	for i := 0; i < OptionCount; i++ {
		out = append(out, Display(start+i))
	}
	return out
}

// Clock formats a wall-clock time as "HH:MM".
func Clock(now time.Time) string {
	return now.Format("15:04")
}

func parseHour(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour %q: %w", s, err)
	}
	if len(parts) > 1 {
		if _, err := strconv.Atoi(parts[1]); err != nil {
			return 0, fmt.Errorf("invalid minute %q: %w", s, err)
		}
	}
	if hour < 0 || hour >= MaxCanonical {
		return 0, fmt.Errorf("hour out of range: %s", s)
	}
	return hour, nil
}
