package schedule

import (
	"fmt"
	"strings"
	"time"
)

// The wire and storage layers describe lessons as day_of_week + HH:MM clock
// strings. Comparing those directly is fragile, so every slot is resolved
// onto a fixed reference week and all conflict math runs on absolute
// timestamps. referenceMonday is an arbitrary Monday; only the relative
// positions within the week matter.
var referenceMonday = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var dayOffsets = map[string]int{
	"MONDAY":    0,
	"TUESDAY":   1,
	"WEDNESDAY": 2,
	"THURSDAY":  3,
	"FRIDAY":    4,
	"SATURDAY":  5,
	"SUNDAY":    6,
}

// NormalizeDay uppercases and validates a day-of-week string.
func NormalizeDay(day string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(day))
	if _, ok := dayOffsets[normalized]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDay, day)
	}
	return normalized, nil
}

// ResolveRange maps a (day, start, end) slot onto the reference week and
// returns the resulting absolute TimeRange.
func ResolveRange(day, startClock, endClock string) (TimeRange, error) {
	normalized, err := NormalizeDay(day)
	if err != nil {
		return TimeRange{}, err
	}
	base := referenceMonday.AddDate(0, 0, dayOffsets[normalized])

	start, err := atClock(base, startClock)
	if err != nil {
		return TimeRange{}, err
	}
	end, err := atClock(base, endClock)
	if err != nil {
		return TimeRange{}, err
	}
	return NewTimeRange(start, end)
}

func atClock(base time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadClock, clock)
	}
	return base.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute), nil
}
