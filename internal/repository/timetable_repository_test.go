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

	"github.com/shiksha-labs/shiksha-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRepositoryTeacherBusy(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	// Overlap predicate: existing.start < candidate.end AND existing.end > candidate.start.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("t-1", "MONDAY", "08:45", "08:00").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := repo.TeacherBusy(context.Background(), repo.DB(), "t-1", "MONDAY", "08:00", "08:45")
	require.NoError(t, err)
	assert.True(t, busy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryRoomBusy(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("R1", "TUESDAY", "09:40", "08:55").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	busy, err := repo.RoomBusy(context.Background(), repo.DB(), "R1", "TUESDAY", "08:55", "09:40")
	require.NoError(t, err)
	assert.False(t, busy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryInsertDefaults(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_entries")).
		WithArgs(sqlmock.AnyArg(), "class-1", "math", "t-1", "MONDAY", "08:00", "08:45", "", "session-1", "DRAFT", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := models.TimetableEntry{
		ClassID:   "class-1",
		SubjectID: "math",
		TeacherID: "t-1",
		DayOfWeek: "MONDAY",
		StartTime: "08:00",
		EndTime:   "08:45",
		SessionID: "session-1",
	}
	require.NoError(t, repo.Insert(context.Background(), repo.DB(), &entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.EntryStatusDraft, entry.Status)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryLockTeachersSortsIDs(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("timetable:teacher:t-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("timetable:teacher:t-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := repo.BeginTxx(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.LockTeachers(context.Background(), tx, []string{"t-2", "t-1"}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryHasAndDeleteDrafts(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("class-1", "session-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries")).
		WithArgs("class-1", "session-1").
		WillReturnResult(sqlmock.NewResult(0, 5))

	exists, err := repo.HasDrafts(context.Background(), repo.DB(), "class-1", "session-1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.DeleteDrafts(context.Background(), repo.DB(), "class-1", "session-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListByClassOrder(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	columns := []string{"id", "class_id", "subject_id", "teacher_id", "day_of_week", "start_time", "end_time", "room", "session_id", "status", "created_at"}
	rows := sqlmock.NewRows(columns).
		AddRow("e-1", "class-1", "math", "t-1", "MONDAY", "08:00", "08:45", "", "session-1", "DRAFT", time.Now()).
		AddRow("e-2", "class-1", "art", "t-2", "MONDAY", "08:55", "09:40", "", "session-1", "DRAFT", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE class_id = $1 ORDER BY CASE day_of_week")).
		WithArgs("class-1").
		WillReturnRows(rows)

	entries, err := repo.ListByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e-1", entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
