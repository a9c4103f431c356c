package models

import "time"

// Roster represents one lesson assignment: a subject taught by a teacher to
// a class in a classroom during a weekly slot. Day and clock strings are the
// wire/storage representation; conflict math runs on absolute timestamps
// resolved by the schedule package.
type Roster struct {
	ID          string    `db:"id" json:"id"`
	TermID      string    `db:"term_id" json:"term_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RosterFilter describes query params for listing rosters.
type RosterFilter struct {
	TermID      string
	ClassID     string
	TeacherID   string
	ClassroomID string
	DayOfWeek   string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// RosterConflict describes one double-booked dimension against an existing
// roster entry.
type RosterConflict struct {
	Kind   string `json:"kind"`
	With   Roster `json:"with"`
	Detail string `json:"detail"`
}

// RosterConflictError is returned when a candidate collides with existing
// lessons. It carries the full conflict list so callers can enumerate every
// reason instead of only the first.
type RosterConflictError struct {
	Message   string           `json:"message"`
	Conflicts []RosterConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *RosterConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
