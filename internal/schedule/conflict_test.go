package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex()
	// Teacher t1 teaches class c1 in room r1, Monday 09:00-10:00.
	ix.Load(lesson(t, "l1", "c1", "t1", "r1", "MONDAY", "09:00", "10:00"))
	return ix
}

func TestFindConflictsNoSharedResources(t *testing.T) {
	ix := seededIndex(t)
	candidate := lesson(t, "", "c2", "t2", "r2", "MONDAY", "09:30", "10:30")

	assert.Empty(t, FindConflicts(candidate, ix, ""))
}

func TestFindConflictsTeacherDoubleBooked(t *testing.T) {
	ix := seededIndex(t)
	candidate := lesson(t, "", "c2", "t1", "r2", "MONDAY", "09:30", "10:30")

	conflicts := FindConflicts(candidate, ix, "")
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTeacher, conflicts[0].Kind)
	assert.Equal(t, "l1", conflicts[0].With.ID)
}

func TestFindConflictsTeacherAndClassroom(t *testing.T) {
	ix := seededIndex(t)
	candidate := lesson(t, "", "c2", "t1", "r1", "MONDAY", "09:30", "10:30")

	conflicts := FindConflicts(candidate, ix, "")
	require.Len(t, conflicts, 2, "both dimensions must be reported, not just the first")
	kinds := []ConflictKind{conflicts[0].Kind, conflicts[1].Kind}
	assert.Contains(t, kinds, ConflictTeacher)
	assert.Contains(t, kinds, ConflictClassroom)
}

func TestFindConflictsBackToBackSlots(t *testing.T) {
	ix := seededIndex(t)
	candidate := lesson(t, "", "c2", "t1", "r1", "MONDAY", "10:00", "11:00")

	assert.Empty(t, FindConflicts(candidate, ix, ""), "touching end boundary must not conflict")
}

func TestFindConflictsDifferentDays(t *testing.T) {
	ix := seededIndex(t)
	candidate := lesson(t, "", "c2", "t1", "r1", "TUESDAY", "09:00", "10:00")

	assert.Empty(t, FindConflicts(candidate, ix, ""))
}

func TestFindConflictsExcludesOwnPriorState(t *testing.T) {
	ix := seededIndex(t)
	// Moving l1 thirty minutes later must not collide with its old slot.
	moved := lesson(t, "l1", "c1", "t1", "r1", "MONDAY", "09:30", "10:30")

	assert.Empty(t, FindConflicts(moved, ix, "l1"))
}

func TestFindConflictsReportsAllOverlappingLessons(t *testing.T) {
	ix := seededIndex(t)
	ix.Load(lesson(t, "l2", "c3", "t1", "r9", "MONDAY", "10:30", "11:30"))
	candidate := lesson(t, "", "c2", "t1", "r2", "MONDAY", "09:30", "11:00")

	conflicts := FindConflicts(candidate, ix, "")
	require.Len(t, conflicts, 2)
	assert.Equal(t, "l1", conflicts[0].With.ID, "insertion order is the reporting order")
	assert.Equal(t, "l2", conflicts[1].With.ID)
}
