package schedule

import "errors"

var (
	// ErrInvalidRange rejects candidate intervals whose start is not strictly
	// before their end. Raised at construction time, never inside the checker.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrUnknownDay rejects day-of-week strings outside MONDAY..SUNDAY.
	ErrUnknownDay = errors.New("unknown day of week")

	// ErrBadClock rejects malformed HH:MM clock strings.
	ErrBadClock = errors.New("invalid clock value")
)
