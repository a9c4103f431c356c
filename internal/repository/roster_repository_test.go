package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/roster-api/internal/models"
)

func newRosterRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func rosterRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "term_id", "class_id", "subject_id", "teacher_id", "classroom_id", "day_of_week", "start_time", "end_time", "created_at", "updated_at"}).
		AddRow("r1", "term-1", "class-a", "subj-math", "teacher-1", "room-101", "MONDAY", "09:00", "10:00", now, now)
}

func TestRosterRepositoryList(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, term_id, class_id, subject_id, teacher_id, classroom_id, day_of_week, start_time, end_time, created_at, updated_at FROM rosters WHERE 1=1 AND term_id = $1 ORDER BY day_of_week ASC, start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs("term-1").
		WillReturnRows(rosterRow())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM rosters WHERE 1=1 AND term_id = $1")).
		WithArgs("term-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.RosterFilter{TermID: "term-1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListClampsPageSize(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 20 OFFSET 0")).
		WillReturnRows(rosterRow())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), models.RosterFilter{PageSize: 500})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListByTermOrdersByInsertion(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rosters WHERE term_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("term-1").
		WillReturnRows(rosterRow())

	rosters, err := repo.ListByTerm(context.Background(), "term-1")
	require.NoError(t, err)
	require.Len(t, rosters, 1)
	assert.Equal(t, "r1", rosters[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectExec("INSERT INTO rosters").
		WithArgs(sqlmock.AnyArg(), "term-1", "class-a", "subj-math", "teacher-1", "room-101", "MONDAY", "09:00", "10:00", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	roster := &models.Roster{
		TermID:      "term-1",
		ClassID:     "class-a",
		SubjectID:   "subj-math",
		TeacherID:   "teacher-1",
		ClassroomID: "room-101",
		DayOfWeek:   "MONDAY",
		StartTime:   "09:00",
		EndTime:     "10:00",
	}
	require.NoError(t, repo.Create(context.Background(), roster))
	assert.NotEmpty(t, roster.ID)
	assert.False(t, roster.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryBulkCreateUsesTransaction(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rosters").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO rosters").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rosters := []models.Roster{
		{TermID: "term-1", ClassID: "class-a", SubjectID: "subj-math", TeacherID: "teacher-1", ClassroomID: "room-101", DayOfWeek: "MONDAY", StartTime: "09:00", EndTime: "10:00"},
		{TermID: "term-1", ClassID: "class-b", SubjectID: "subj-math", TeacherID: "teacher-2", ClassroomID: "room-202", DayOfWeek: "MONDAY", StartTime: "09:00", EndTime: "10:00"},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), rosters))
	assert.NotEmpty(t, rosters[0].ID)
	assert.NotEmpty(t, rosters[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryBulkCreateRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO rosters").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.BulkCreate(context.Background(), []models.Roster{
		{TermID: "term-1", ClassID: "class-a", SubjectID: "subj-math", TeacherID: "teacher-1", ClassroomID: "room-101", DayOfWeek: "MONDAY", StartTime: "09:00", EndTime: "10:00"},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectExec("UPDATE rosters SET").
		WithArgs("term-1", "class-a", "subj-math", "teacher-1", "room-101", "TUESDAY", "10:00", "11:00", sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	roster := &models.Roster{
		ID:          "r1",
		TermID:      "term-1",
		ClassID:     "class-a",
		SubjectID:   "subj-math",
		TeacherID:   "teacher-1",
		ClassroomID: "room-101",
		DayOfWeek:   "TUESDAY",
		StartTime:   "10:00",
		EndTime:     "11:00",
	}
	require.NoError(t, repo.Update(context.Background(), roster))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectExec("DELETE FROM rosters WHERE id").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Delete(context.Background(), "r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListForClassTimetable(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "term_id", "class_id", "subject_id", "teacher_id", "classroom_id", "day_of_week", "start_time", "end_time", "created_at", "updated_at", "subject_name", "teacher_name", "classroom_name", "class_name"}).
		AddRow("r1", "term-1", "class-a", "subj-math", "teacher-1", "room-101", "MONDAY", "09:00", "10:00", now, now, "Mathematics", "Teacher One", "Room 101", "Class A")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.term_id = $1 AND r.class_id = $2")).
		WithArgs("term-1", "class-a").
		WillReturnRows(rows)

	lessons, err := repo.ListForClassTimetable(context.Background(), "term-1", "class-a")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Mathematics", lessons[0].SubjectName)
	assert.Equal(t, "Teacher One", lessons[0].TeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
