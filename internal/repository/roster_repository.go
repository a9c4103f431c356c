package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekolahku/roster-api/internal/models"
)

const rosterColumns = "id, term_id, class_id, subject_id, teacher_id, classroom_id, day_of_week, start_time, end_time, created_at, updated_at"

// RosterRepository provides persistence for lesson assignments.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository creates a new roster repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// List returns rosters with optional filtering and pagination.
func (r *RosterRepository) List(ctx context.Context, filter models.RosterFilter) ([]models.Roster, int, error) {
	base := "FROM rosters WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"day_of_week": true,
		"start_time":  true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", rosterColumns, base, sortBy, order, size, offset)
	var rosters []models.Roster
	if err := r.db.SelectContext(ctx, &rosters, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list rosters: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count rosters: %w", err)
	}

	return rosters, total, nil
}

// FindByID loads a roster entry by id.
func (r *RosterRepository) FindByID(ctx context.Context, id string) (*models.Roster, error) {
	query := fmt.Sprintf("SELECT %s FROM rosters WHERE id = $1", rosterColumns)
	var roster models.Roster
	if err := r.db.GetContext(ctx, &roster, query, id); err != nil {
		return nil, err
	}
	return &roster, nil
}

// ListByTerm returns every roster entry of a term. Conflict evaluation loads
// the whole term so teacher and classroom clashes across classes are seen.
func (r *RosterRepository) ListByTerm(ctx context.Context, termID string) ([]models.Roster, error) {
	query := fmt.Sprintf("SELECT %s FROM rosters WHERE term_id = $1 ORDER BY created_at ASC, id ASC", rosterColumns)
	var rosters []models.Roster
	if err := r.db.SelectContext(ctx, &rosters, query, termID); err != nil {
		return nil, fmt.Errorf("list rosters by term: %w", err)
	}
	return rosters, nil
}

// ListForClassTimetable returns a class's lessons joined with display names.
func (r *RosterRepository) ListForClassTimetable(ctx context.Context, termID, classID string) ([]models.TimetableLesson, error) {
	const query = `SELECT r.id, r.term_id, r.class_id, r.subject_id, r.teacher_id, r.classroom_id, r.day_of_week, r.start_time, r.end_time, r.created_at, r.updated_at,
		s.name AS subject_name, t.full_name AS teacher_name, cr.name AS classroom_name, c.name AS class_name
		FROM rosters r
		JOIN subjects s ON s.id = r.subject_id
		JOIN teachers t ON t.id = r.teacher_id
		JOIN classrooms cr ON cr.id = r.classroom_id
		JOIN classes c ON c.id = r.class_id
		WHERE r.term_id = $1 AND r.class_id = $2
		ORDER BY r.day_of_week ASC, r.start_time ASC`
	var lessons []models.TimetableLesson
	if err := r.db.SelectContext(ctx, &lessons, query, termID, classID); err != nil {
		return nil, fmt.Errorf("list class timetable: %w", err)
	}
	return lessons, nil
}

// ListForTeacherTimetable returns a teacher's lessons joined with display names.
func (r *RosterRepository) ListForTeacherTimetable(ctx context.Context, termID, teacherID string) ([]models.TimetableLesson, error) {
	const query = `SELECT r.id, r.term_id, r.class_id, r.subject_id, r.teacher_id, r.classroom_id, r.day_of_week, r.start_time, r.end_time, r.created_at, r.updated_at,
		s.name AS subject_name, t.full_name AS teacher_name, cr.name AS classroom_name, c.name AS class_name
		FROM rosters r
		JOIN subjects s ON s.id = r.subject_id
		JOIN teachers t ON t.id = r.teacher_id
		JOIN classrooms cr ON cr.id = r.classroom_id
		JOIN classes c ON c.id = r.class_id
		WHERE r.term_id = $1 AND r.teacher_id = $2
		ORDER BY r.day_of_week ASC, r.start_time ASC`
	var lessons []models.TimetableLesson
	if err := r.db.SelectContext(ctx, &lessons, query, termID, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher timetable: %w", err)
	}
	return lessons, nil
}

// Create stores a new roster entry.
func (r *RosterRepository) Create(ctx context.Context, roster *models.Roster) error {
	if roster.ID == "" {
		roster.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if roster.CreatedAt.IsZero() {
		roster.CreatedAt = now
	}
	roster.UpdatedAt = now

	const query = `INSERT INTO rosters (id, term_id, class_id, subject_id, teacher_id, classroom_id, day_of_week, start_time, end_time, created_at, updated_at) VALUES (:id, :term_id, :class_id, :subject_id, :teacher_id, :classroom_id, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, roster); err != nil {
		return fmt.Errorf("create roster: %w", err)
	}
	return nil
}

// BulkCreate inserts many roster entries within a transaction.
func (r *RosterRepository) BulkCreate(ctx context.Context, rosters []models.Roster) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create rosters: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range rosters {
		payload := rosters[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO rosters (id, term_id, class_id, subject_id, teacher_id, classroom_id, day_of_week, start_time, end_time, created_at, updated_at) VALUES (:id, :term_id, :class_id, :subject_id, :teacher_id, :classroom_id, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`, &payload); err != nil {
			return fmt.Errorf("bulk insert roster: %w", err)
		}
		rosters[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create rosters: %w", err)
	}
	return nil
}

// Update modifies a roster entry.
func (r *RosterRepository) Update(ctx context.Context, roster *models.Roster) error {
	roster.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rosters SET term_id = :term_id, class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id, classroom_id = :classroom_id, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, roster); err != nil {
		return fmt.Errorf("update roster: %w", err)
	}
	return nil
}

// Delete removes a roster entry by id.
func (r *RosterRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rosters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete roster: %w", err)
	}
	return nil
}
