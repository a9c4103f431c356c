package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sekolahku/roster-api/internal/models"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
)

type mockRosterRepo struct {
	items      map[string]*models.Roster
	order      []string
	listErr    error
	nextID     int
	bulkCalls  int
	deletedIDs []string
}

func (m *mockRosterRepo) store(roster *models.Roster) {
	if m.items == nil {
		m.items = make(map[string]*models.Roster)
	}
	if _, ok := m.items[roster.ID]; !ok {
		m.order = append(m.order, roster.ID)
	}
	cp := *roster
	m.items[roster.ID] = &cp
}

func (m *mockRosterRepo) List(ctx context.Context, filter models.RosterFilter) ([]models.Roster, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	rosters, _ := m.ListByTerm(ctx, filter.TermID)
	return rosters, len(rosters), nil
}

func (m *mockRosterRepo) FindByID(ctx context.Context, id string) (*models.Roster, error) {
	if roster, ok := m.items[id]; ok {
		cp := *roster
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterRepo) ListByTerm(ctx context.Context, termID string) ([]models.Roster, error) {
	var result []models.Roster
	for _, id := range m.order {
		roster := m.items[id]
		if termID == "" || roster.TermID == termID {
			result = append(result, *roster)
		}
	}
	return result, nil
}

func (m *mockRosterRepo) Create(ctx context.Context, roster *models.Roster) error {
	m.nextID++
	roster.ID = fmt.Sprintf("roster-%d", m.nextID)
	now := time.Now()
	roster.CreatedAt = now
	roster.UpdatedAt = now
	m.store(roster)
	return nil
}

func (m *mockRosterRepo) BulkCreate(ctx context.Context, rosters []models.Roster) error {
	m.bulkCalls++
	for i := range rosters {
		if err := m.Create(ctx, &rosters[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRosterRepo) Update(ctx context.Context, roster *models.Roster) error {
	if _, ok := m.items[roster.ID]; !ok {
		return sql.ErrNoRows
	}
	roster.UpdatedAt = time.Now()
	m.store(roster)
	return nil
}

func (m *mockRosterRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

type recordingCacheRepo struct {
	patterns []string
}

func (r *recordingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (r *recordingCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (r *recordingCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func newRosterService(repo *mockRosterRepo) *RosterService {
	return NewRosterService(repo, nil, nil, validator.New(), zap.NewNop())
}

func rosterRequest(overrides func(*RosterEntryRequest)) RosterEntryRequest {
	req := RosterEntryRequest{
		TermID:      "term-1",
		ClassID:     "class-a",
		SubjectID:   "subj-math",
		TeacherID:   "teacher-1",
		ClassroomID: "room-101",
		DayOfWeek:   "MONDAY",
		StartTime:   "09:00",
		EndTime:     "10:00",
	}
	if overrides != nil {
		overrides(&req)
	}
	return req
}

func TestRosterServiceCreate(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	roster, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)
	assert.NotEmpty(t, roster.ID)
	assert.Equal(t, "MONDAY", roster.DayOfWeek)
	assert.Len(t, repo.items, 1)
}

func TestRosterServiceCreateNormalizesDay(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	roster, err := service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.DayOfWeek = "monday"
	}))
	require.NoError(t, err)
	assert.Equal(t, "MONDAY", roster.DayOfWeek)
}

func TestRosterServiceCreateTeacherConflict(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	_, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)

	_, err = service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-b"
		r.ClassroomID = "room-202"
		r.StartTime = "09:30"
		r.EndTime = "10:30"
	}))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)

	var conflictErr *models.RosterConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, "TEACHER", conflictErr.Conflicts[0].Kind)
	assert.Equal(t, "class-a", conflictErr.Conflicts[0].With.ClassID)
	assert.Len(t, repo.items, 1, "conflicting entry must not persist")
}

func TestRosterServiceCreateReportsEveryConflict(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	_, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)
	_, err = service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-b"
		r.TeacherID = "teacher-2"
		r.ClassroomID = "room-202"
		r.StartTime = "09:30"
		r.EndTime = "10:30"
	}))
	require.NoError(t, err)

	// Same teacher as the first entry, same room as the second.
	_, err = service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-c"
		r.ClassroomID = "room-202"
		r.StartTime = "09:30"
		r.EndTime = "10:00"
	}))
	require.Error(t, err)

	var conflictErr *models.RosterConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 2)
	kinds := make(map[string]int)
	for _, c := range conflictErr.Conflicts {
		kinds[c.Kind]++
	}
	assert.Equal(t, 1, kinds["TEACHER"])
	assert.Equal(t, 1, kinds["CLASSROOM"])
}

func TestRosterServiceCreateBackToBackSlots(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	_, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)

	// One lesson ends exactly when the next begins.
	_, err = service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-b"
		r.StartTime = "10:00"
		r.EndTime = "11:00"
	}))
	require.NoError(t, err)
	assert.Len(t, repo.items, 2)
}

func TestRosterServiceCreateDifferentDaysNeverConflict(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	_, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)

	_, err = service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.DayOfWeek = "TUESDAY"
	}))
	require.NoError(t, err)
}

func TestRosterServiceCreateForceOverride(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	_, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)

	roster, err := service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-b"
		r.Force = true
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, roster.ID)
	assert.Len(t, repo.items, 2)
}

func TestRosterServiceCreateInvalidRange(t *testing.T) {
	service := newRosterService(&mockRosterRepo{})

	_, err := service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.StartTime = "10:00"
		r.EndTime = "09:00"
	}))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceCreateUnknownDay(t *testing.T) {
	service := newRosterService(&mockRosterRepo{})

	_, err := service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.DayOfWeek = "FUNDAY"
	}))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestRosterServiceUpdateIgnoresOwnSlot(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	created, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)

	// Shrinking the lesson in place overlaps its own stored slot only.
	updated, err := service.Update(context.Background(), created.ID, rosterRequest(func(r *RosterEntryRequest) {
		r.StartTime = "09:15"
		r.EndTime = "09:45"
	}))
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "09:15", updated.StartTime)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestRosterServiceUpdateConflictsWithOthers(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	_, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)
	second, err := service.Create(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-b"
		r.TeacherID = "teacher-2"
		r.ClassroomID = "room-202"
		r.StartTime = "10:00"
		r.EndTime = "11:00"
	}))
	require.NoError(t, err)

	_, err = service.Update(context.Background(), second.ID, rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-b"
		r.ClassroomID = "room-202"
	}))
	require.Error(t, err)

	var conflictErr *models.RosterConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, "TEACHER", conflictErr.Conflicts[0].Kind)
}

func TestRosterServiceUpdateNotFound(t *testing.T) {
	service := newRosterService(&mockRosterRepo{})

	_, err := service.Update(context.Background(), "missing", rosterRequest(nil))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestRosterServiceDelete(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	created, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)

	require.NoError(t, service.Delete(context.Background(), created.ID))
	assert.Empty(t, repo.items)

	err = service.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestRosterServiceCheckDoesNotPersist(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	_, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)

	result, err := service.Check(context.Background(), rosterRequest(func(r *RosterEntryRequest) {
		r.ClassID = "class-b"
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Conflicts)
	assert.Len(t, repo.items, 1, "check is a dry run")
}

func TestRosterServiceCheckClearSlotReturnsEmptySlice(t *testing.T) {
	service := newRosterService(&mockRosterRepo{})

	result, err := service.Check(context.Background(), rosterRequest(nil))
	require.NoError(t, err)
	require.NotNil(t, result.Conflicts)
	assert.Empty(t, result.Conflicts)
}

func TestRosterServiceBulkCreateAtomic(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	req := BulkCreateRostersRequest{Items: []RosterEntryRequest{
		rosterRequest(nil),
		rosterRequest(func(r *RosterEntryRequest) { r.ClassID = "class-b" }),
	}}

	_, err := service.BulkCreate(context.Background(), req)
	require.Error(t, err)

	var conflictErr *models.RosterConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Empty(t, repo.items, "atomic bulk keeps nothing on conflict")
	assert.Zero(t, repo.bulkCalls)
}

func TestRosterServiceBulkCreatePartial(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	req := BulkCreateRostersRequest{
		Items: []RosterEntryRequest{
			rosterRequest(nil),
			rosterRequest(func(r *RosterEntryRequest) { r.ClassID = "class-b" }),
			rosterRequest(func(r *RosterEntryRequest) {
				r.ClassID = "class-c"
				r.TeacherID = "teacher-2"
				r.ClassroomID = "room-202"
				r.DayOfWeek = "FRIDAY"
			}),
		},
		PartialOnError: true,
	}

	result, err := service.BulkCreate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.NotEmpty(t, result.Conflicts)
	assert.Len(t, repo.items, 2)
	assert.Equal(t, 1, repo.bulkCalls)
}

func TestRosterServiceBulkCreateDetectsCrossItemConflicts(t *testing.T) {
	repo := &mockRosterRepo{}
	service := newRosterService(repo)

	// Nothing stored yet. The two items only clash with each other.
	req := BulkCreateRostersRequest{
		Items: []RosterEntryRequest{
			rosterRequest(nil),
			rosterRequest(func(r *RosterEntryRequest) { r.ClassID = "class-b" }),
		},
		PartialOnError: true,
	}

	result, err := service.BulkCreate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	require.Len(t, result.Conflicts, 2, "teacher and classroom clash against the accepted item")
	assert.Equal(t, "class-a", result.Conflicts[0].With.ClassID)
}

func TestRosterServiceBulkCreateRejectsEmpty(t *testing.T) {
	service := newRosterService(&mockRosterRepo{})

	_, err := service.BulkCreate(context.Background(), BulkCreateRostersRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestRosterServiceWritesInvalidateTimetableCache(t *testing.T) {
	repo := &mockRosterRepo{}
	cacheRepo := &recordingCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	service := NewRosterService(repo, cacheSvc, nil, validator.New(), zap.NewNop())

	created, err := service.Create(context.Background(), rosterRequest(nil))
	require.NoError(t, err)
	require.NoError(t, service.Delete(context.Background(), created.ID))

	require.Len(t, cacheRepo.patterns, 2)
	assert.Equal(t, "timetable:term-1:*", cacheRepo.patterns[0])
}

func TestRosterServiceGetNotFound(t *testing.T) {
	service := newRosterService(&mockRosterRepo{})

	_, err := service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestRosterServiceListWrapsRepoError(t *testing.T) {
	service := newRosterService(&mockRosterRepo{listErr: errors.New("boom")})

	_, _, err := service.List(context.Background(), models.RosterFilter{})
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
}
