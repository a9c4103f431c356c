package models

// TimetableLesson is a roster entry joined with display names for rendering
// a weekly schedule view.
type TimetableLesson struct {
	Roster
	SubjectName   string `db:"subject_name" json:"subject_name"`
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	ClassroomName string `db:"classroom_name" json:"classroom_name"`
	ClassName     string `db:"class_name" json:"class_name"`
}

// TimetableDay groups the lessons of a single weekday, sorted by start time.
type TimetableDay struct {
	Day     string            `json:"day"`
	Lessons []TimetableLesson `json:"lessons"`
}

// Timetable is the weekly schedule view for one class or teacher.
type Timetable struct {
	TermID    string         `json:"term_id"`
	ClassID   string         `json:"class_id,omitempty"`
	TeacherID string         `json:"teacher_id,omitempty"`
	Days      []TimetableDay `json:"days"`
}
