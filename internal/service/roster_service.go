package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahku/roster-api/internal/models"
	"github.com/sekolahku/roster-api/internal/schedule"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
)

type rosterRepository interface {
	List(ctx context.Context, filter models.RosterFilter) ([]models.Roster, int, error)
	FindByID(ctx context.Context, id string) (*models.Roster, error)
	ListByTerm(ctx context.Context, termID string) ([]models.Roster, error)
	Create(ctx context.Context, roster *models.Roster) error
	BulkCreate(ctx context.Context, rosters []models.Roster) error
	Update(ctx context.Context, roster *models.Roster) error
	Delete(ctx context.Context, id string) error
}

// RosterEntryRequest describes the payload for creating or replacing one
// lesson assignment.
type RosterEntryRequest struct {
	TermID      string `json:"term_id" validate:"required"`
	ClassID     string `json:"class_id" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required"`
	TeacherID   string `json:"teacher_id" validate:"required"`
	ClassroomID string `json:"classroom_id" validate:"required"`
	DayOfWeek   string `json:"day_of_week" validate:"required"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	Force       bool   `json:"force"`
}

// BulkCreateRostersRequest holds multiple roster entries for creation.
type BulkCreateRostersRequest struct {
	Items          []RosterEntryRequest `json:"items" validate:"required,min=1,dive"`
	PartialOnError bool                 `json:"partial_on_error"`
}

// BulkCreateRostersResult summarises bulk creation results.
type BulkCreateRostersResult struct {
	Created   []models.Roster         `json:"created"`
	Conflicts []models.RosterConflict `json:"conflicts,omitempty"`
}

// CheckRosterResult reports the outcome of a dry-run conflict evaluation.
type CheckRosterResult struct {
	Conflicts []models.RosterConflict `json:"conflicts"`
}

// RosterService coordinates roster writes and conflict evaluation. Every
// mutation loads the whole term into an in-memory index first, so teacher and
// classroom clashes are detected across class boundaries.
type RosterService struct {
	repo      rosterRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService instantiates RosterService.
func NewRosterService(repo rosterRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// List returns roster entries with pagination metadata.
func (s *RosterService) List(ctx context.Context, filter models.RosterFilter) ([]models.Roster, *models.Pagination, error) {
	rosters, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rosters")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rosters, pagination, nil
}

// Get returns a single roster entry.
func (s *RosterService) Get(ctx context.Context, id string) (*models.Roster, error) {
	roster, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entry")
	}
	return roster, nil
}

// Create inserts a new roster entry after conflict evaluation. When the
// candidate collides and force is not set, the full conflict list is returned
// inside the error.
func (s *RosterService) Create(ctx context.Context, req RosterEntryRequest) (*models.Roster, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}

	roster, err := s.buildRoster("", req)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.evaluateConflicts(ctx, *roster, "")
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 && !req.Force {
		return nil, s.conflictError(conflicts)
	}

	if err := s.repo.Create(ctx, roster); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create roster entry")
	}
	s.invalidateTimetables(ctx, roster.TermID)
	return roster, nil
}

// Update replaces an existing roster entry. The entry's own prior slot never
// counts against it, so shrinking or moving a lesson in place always works.
func (s *RosterService) Update(ctx context.Context, id string, req RosterEntryRequest) (*models.Roster, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entry")
	}

	updated, err := s.buildRoster(existing.ID, req)
	if err != nil {
		return nil, err
	}
	updated.CreatedAt = existing.CreatedAt

	conflicts, err := s.evaluateConflicts(ctx, *updated, existing.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 && !req.Force {
		return nil, s.conflictError(conflicts)
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update roster entry")
	}
	s.invalidateTimetables(ctx, existing.TermID)
	if updated.TermID != existing.TermID {
		s.invalidateTimetables(ctx, updated.TermID)
	}
	return updated, nil
}

// Delete removes a roster entry.
func (s *RosterService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "roster entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entry")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete roster entry")
	}
	s.invalidateTimetables(ctx, existing.TermID)
	return nil
}

// Check evaluates a candidate without persisting anything. An empty conflict
// slice means the slot is free.
func (s *RosterService) Check(ctx context.Context, req RosterEntryRequest) (*CheckRosterResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}

	roster, err := s.buildRoster("", req)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.evaluateConflicts(ctx, *roster, "")
	if err != nil {
		return nil, err
	}
	if conflicts == nil {
		conflicts = []models.RosterConflict{}
	}
	return &CheckRosterResult{Conflicts: conflicts}, nil
}

// BulkCreate inserts multiple roster entries, optionally keeping the
// conflict-free subset when partial_on_error is set. Accepted items are
// evaluated against each other as well as against the stored term.
func (s *RosterService) BulkCreate(ctx context.Context, req BulkCreateRostersRequest) (*BulkCreateRostersResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk roster payload")
	}

	var toCreate []models.Roster
	var allConflicts []models.RosterConflict
	pending := schedule.NewIndex()
	pendingByID := make(map[string]models.Roster)

	for i, item := range req.Items {
		roster, err := s.buildRoster("", item)
		if err != nil {
			return nil, err
		}
		roster.ID = fmt.Sprintf("bulk-%d", i)

		conflicts, err := s.evaluateConflicts(ctx, *roster, "")
		if err != nil {
			return nil, err
		}

		candidate, err := toAssignment(*roster)
		if err != nil {
			return nil, s.rangeError(err)
		}
		for _, c := range schedule.FindConflicts(candidate, pending, "") {
			conflicts = append(conflicts, models.RosterConflict{
				Kind:   string(c.Kind),
				With:   pendingByID[c.With.ID],
				Detail: c.Detail,
			})
		}

		if len(conflicts) > 0 && !item.Force {
			allConflicts = append(allConflicts, conflicts...)
			if !req.PartialOnError {
				return nil, s.conflictError(allConflicts)
			}
			continue
		}

		pending.Load(candidate)
		pendingByID[roster.ID] = *roster
		roster.ID = ""
		toCreate = append(toCreate, *roster)
	}

	if len(toCreate) > 0 {
		if err := s.repo.BulkCreate(ctx, toCreate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk create rosters")
		}
		s.invalidateTimetables(ctx, toCreate[0].TermID)
	}

	return &BulkCreateRostersResult{Created: toCreate, Conflicts: allConflicts}, nil
}

// buildRoster validates the slot shape and normalizes the day string before
// anything touches storage.
func (s *RosterService) buildRoster(id string, req RosterEntryRequest) (*models.Roster, error) {
	day, err := schedule.NormalizeDay(req.DayOfWeek)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("unknown day of week %q", req.DayOfWeek))
	}
	if _, err := schedule.ResolveRange(day, req.StartTime, req.EndTime); err != nil {
		return nil, s.rangeError(err)
	}
	return &models.Roster{
		ID:          id,
		TermID:      req.TermID,
		ClassID:     req.ClassID,
		SubjectID:   req.SubjectID,
		TeacherID:   req.TeacherID,
		ClassroomID: req.ClassroomID,
		DayOfWeek:   day,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}, nil
}

// evaluateConflicts loads the candidate's term into an index and returns
// every teacher and classroom clash. The entry named by excludeID is skipped
// so updates never collide with their own stored state.
func (s *RosterService) evaluateConflicts(ctx context.Context, candidate models.Roster, excludeID string) ([]models.RosterConflict, error) {
	stored, err := s.repo.ListByTerm(ctx, candidate.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term rosters")
	}

	index := schedule.NewIndex()
	byID := make(map[string]models.Roster, len(stored))
	for _, entry := range stored {
		assignment, err := toAssignment(entry)
		if err != nil {
			s.logger.Warn("skipping stored roster entry with unresolvable slot",
				zap.String("roster_id", entry.ID), zap.Error(err))
			continue
		}
		index.Load(assignment)
		byID[entry.ID] = entry
	}

	candidateAssignment, err := toAssignment(candidate)
	if err != nil {
		return nil, s.rangeError(err)
	}

	var conflicts []models.RosterConflict
	for _, c := range schedule.FindConflicts(candidateAssignment, index, excludeID) {
		conflicts = append(conflicts, models.RosterConflict{
			Kind:   string(c.Kind),
			With:   byID[c.With.ID],
			Detail: c.Detail,
		})
	}
	s.metrics.RecordConflictCheck(len(conflicts) > 0)
	return conflicts, nil
}

func (s *RosterService) conflictError(conflicts []models.RosterConflict) error {
	domainErr := &models.RosterConflictError{
		Message:   fmt.Sprintf("%d scheduling conflict(s) detected", len(conflicts)),
		Conflicts: conflicts,
	}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, domainErr.Message)
}

func (s *RosterService) rangeError(err error) error {
	if errors.Is(err, schedule.ErrInvalidRange) {
		return appErrors.Wrap(err, appErrors.ErrInvalidRange.Code, appErrors.ErrInvalidRange.Status, appErrors.ErrInvalidRange.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson slot")
}

func (s *RosterService) invalidateTimetables(ctx context.Context, termID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, timetableKeyPattern(termID)); err != nil {
		s.logger.Warn("timetable cache invalidation failed", zap.String("term_id", termID), zap.Error(err))
	}
}

func toAssignment(roster models.Roster) (schedule.Assignment, error) {
	rng, err := schedule.ResolveRange(roster.DayOfWeek, roster.StartTime, roster.EndTime)
	if err != nil {
		return schedule.Assignment{}, err
	}
	return schedule.Assignment{
		ID:          roster.ID,
		ClassID:     roster.ClassID,
		SubjectID:   roster.SubjectID,
		TeacherID:   roster.TeacherID,
		ClassroomID: roster.ClassroomID,
		Range:       rng,
	}, nil
}
