package schedule

// Assignment is the canonical in-memory form of one scheduled lesson: a
// subject taught by a teacher to a class in a classroom during Range. Wire
// and database shapes are normalized into this type at the boundary.
type Assignment struct {
	ID          string
	ClassID     string
	SubjectID   string
	TeacherID   string
	ClassroomID string
	Range       TimeRange
}

type indexEntry struct {
	assignment Assignment
	dirty      bool
}

// Index is the authoritative in-memory collection of assignments for a
// loaded view. It keys strictly by id, preserves insertion order, and never
// enforces conflict-freedom itself; conflict checking is an opt-in step.
type Index struct {
	order   []string
	entries map[string]*indexEntry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]*indexEntry)}
}

// Upsert inserts the assignment or replaces the entry with the same id.
// Replacing keeps the original insertion position. Newly written entries are
// marked dirty until MarkSynced is called.
func (ix *Index) Upsert(a Assignment) {
	if entry, ok := ix.entries[a.ID]; ok {
		entry.assignment = a
		entry.dirty = true
		return
	}
	ix.entries[a.ID] = &indexEntry{assignment: a, dirty: true}
	ix.order = append(ix.order, a.ID)
}

// Load inserts an assignment already known to be persisted, leaving it clean.
func (ix *Index) Load(a Assignment) {
	ix.Upsert(a)
	ix.entries[a.ID].dirty = false
}

// Remove deletes the entry. Removing an unknown id is a no-op, matching the
// delete-then-refresh flow where a stale id is benign.
func (ix *Index) Remove(id string) {
	if _, ok := ix.entries[id]; !ok {
		return
	}
	delete(ix.entries, id)
	for i, existing := range ix.order {
		if existing == id {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
}

// Get returns the assignment for id.
func (ix *Index) Get(id string) (Assignment, bool) {
	entry, ok := ix.entries[id]
	if !ok {
		return Assignment{}, false
	}
	return entry.assignment, true
}

// All returns every assignment in insertion order. The slice is a copy and
// can be iterated any number of times.
func (ix *Index) All() []Assignment {
	out := make([]Assignment, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.entries[id].assignment)
	}
	return out
}

// ForClass returns assignments whose ClassID matches, in insertion order.
func (ix *Index) ForClass(classID string) []Assignment {
	var out []Assignment
	for _, id := range ix.order {
		if a := ix.entries[id].assignment; a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out
}

// Len reports the number of stored assignments.
func (ix *Index) Len() int { return len(ix.order) }

// Dirty reports whether the entry has local changes not yet persisted.
func (ix *Index) Dirty(id string) bool {
	entry, ok := ix.entries[id]
	return ok && entry.dirty
}

// MarkSynced clears the dirty flag after persistence succeeds.
func (ix *Index) MarkSynced(id string) {
	if entry, ok := ix.entries[id]; ok {
		entry.dirty = false
	}
}
