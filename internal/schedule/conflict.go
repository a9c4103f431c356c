package schedule

import "fmt"

// ConflictKind names the double-booked resource dimension.
type ConflictKind string

const (
	ConflictTeacher   ConflictKind = "TEACHER"
	ConflictClassroom ConflictKind = "CLASSROOM"
)

// Conflict pairs a clashing dimension with the existing assignment it
// collides against.
type Conflict struct {
	Kind   ConflictKind
	With   Assignment
	Detail string
}

// FindConflicts evaluates a candidate against every assignment in the index
// and returns all conflicts, not just the first. Assignments whose id equals
// excludeID or the candidate's own id are skipped, so moving or resizing an
// existing lesson never conflicts with its prior state. A single overlapping
// assignment can contribute both a teacher and a classroom conflict.
func FindConflicts(candidate Assignment, index *Index, excludeID string) []Conflict {
	var conflicts []Conflict
	for _, other := range index.All() {
		if other.ID == excludeID || (candidate.ID != "" && other.ID == candidate.ID) {
			continue
		}
		if !candidate.Range.Overlaps(other.Range) {
			continue
		}
		if candidate.TeacherID == other.TeacherID {
			conflicts = append(conflicts, Conflict{
				Kind:   ConflictTeacher,
				With:   other,
				Detail: fmt.Sprintf("teacher %s already teaches class %s during %s", other.TeacherID, other.ClassID, other.Range),
			})
		}
		if candidate.ClassroomID == other.ClassroomID {
			conflicts = append(conflicts, Conflict{
				Kind:   ConflictClassroom,
				With:   other,
				Detail: fmt.Sprintf("classroom %s is occupied by class %s during %s", other.ClassroomID, other.ClassID, other.Range),
			})
		}
	}
	return conflicts
}
