package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shiksha-labs/shiksha-api/internal/models"
)

// dayOrderCase maps day names onto their Monday-first position so listings
// come back in calendar order.
const dayOrderCase = `CASE day_of_week
	WHEN 'MONDAY' THEN 1 WHEN 'TUESDAY' THEN 2 WHEN 'WEDNESDAY' THEN 3
	WHEN 'THURSDAY' THEN 4 WHEN 'FRIDAY' THEN 5 WHEN 'SATURDAY' THEN 6
	ELSE 7 END`

// TimetableRepository persists timetable entries and answers the busy-interval
// predicates the scheduling engine and import validator share. Every predicate
// takes a sqlx.ExtContext so callers can run it against the pool or against an
// open transaction; inside a transaction the class's own freshly inserted
// entries are visible to later checks.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// DB exposes the underlying pool for callers that only need an ExtContext.
func (r *TimetableRepository) DB() sqlx.ExtContext {
	return r.db
}

// BeginTxx opens a transaction on the underlying pool.
func (r *TimetableRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// TeacherBusy reports whether the teacher has any entry overlapping
// [start,end) on the given day, regardless of draft or published status.
func (r *TimetableRepository) TeacherBusy(ctx context.Context, exec sqlx.ExtContext, teacherID, dayOfWeek, startTime, endTime string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM timetable_entries
		WHERE teacher_id = $1 AND day_of_week = $2 AND start_time < $3 AND end_time > $4)`
	var busy bool
	if err := sqlx.GetContext(ctx, exec, &busy, query, teacherID, dayOfWeek, endTime, startTime); err != nil {
		return false, fmt.Errorf("check teacher conflict: %w", err)
	}
	return busy, nil
}

// RoomBusy reports whether the room is occupied during [start,end) on the day.
func (r *TimetableRepository) RoomBusy(ctx context.Context, exec sqlx.ExtContext, room, dayOfWeek, startTime, endTime string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM timetable_entries
		WHERE room = $1 AND room <> '' AND day_of_week = $2 AND start_time < $3 AND end_time > $4)`
	var busy bool
	if err := sqlx.GetContext(ctx, exec, &busy, query, room, dayOfWeek, endTime, startTime); err != nil {
		return false, fmt.Errorf("check room conflict: %w", err)
	}
	return busy, nil
}

// ClassBusy reports whether the class already has an entry during [start,end)
// on the day.
func (r *TimetableRepository) ClassBusy(ctx context.Context, exec sqlx.ExtContext, classID, dayOfWeek, startTime, endTime string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM timetable_entries
		WHERE class_id = $1 AND day_of_week = $2 AND start_time < $3 AND end_time > $4)`
	var busy bool
	if err := sqlx.GetContext(ctx, exec, &busy, query, classID, dayOfWeek, endTime, startTime); err != nil {
		return false, fmt.Errorf("check class conflict: %w", err)
	}
	return busy, nil
}

// LockTeachers takes per-teacher advisory locks for the lifetime of the given
// transaction. Teachers are locked in sorted order so two classes sharing a
// teacher set cannot deadlock against each other.
func (r *TimetableRepository) LockTeachers(ctx context.Context, tx *sqlx.Tx, teacherIDs []string) error {
	sorted := make([]string, len(teacherIDs))
	copy(sorted, teacherIDs)
	sort.Strings(sorted)
	for _, teacherID := range sorted {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "timetable:teacher:"+teacherID); err != nil {
			return fmt.Errorf("lock teacher %s: %w", teacherID, err)
		}
	}
	return nil
}

// Insert stores a single entry using the provided executor.
func (r *TimetableRepository) Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = models.EntryStatusDraft
	}
	const query = `INSERT INTO timetable_entries (id, class_id, subject_id, teacher_id, day_of_week, start_time, end_time, room, session_id, status, created_at)
		VALUES (:id, :class_id, :subject_id, :teacher_id, :day_of_week, :start_time, :end_time, :room, :session_id, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, entry); err != nil {
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	return nil
}

// HasDrafts reports whether draft entries already exist for the class/session.
func (r *TimetableRepository) HasDrafts(ctx context.Context, exec sqlx.ExtContext, classID, sessionID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM timetable_entries WHERE class_id = $1 AND session_id = $2 AND status = 'DRAFT')`
	var exists bool
	if err := sqlx.GetContext(ctx, exec, &exists, query, classID, sessionID); err != nil {
		return false, fmt.Errorf("check draft entries: %w", err)
	}
	return exists, nil
}

// DeleteDrafts removes draft entries for the class/session. Used by REPLACE
// regeneration inside the class transaction.
func (r *TimetableRepository) DeleteDrafts(ctx context.Context, exec sqlx.ExtContext, classID, sessionID string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM timetable_entries WHERE class_id = $1 AND session_id = $2 AND status = 'DRAFT'`, classID, sessionID); err != nil {
		return fmt.Errorf("delete draft entries: %w", err)
	}
	return nil
}

// ListByClass returns a class's entries in calendar order.
func (r *TimetableRepository) ListByClass(ctx context.Context, classID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT id, class_id, subject_id, teacher_id, day_of_week, start_time, end_time, room, session_id, status, created_at
		FROM timetable_entries WHERE class_id = $1 ORDER BY %s, start_time ASC`, dayOrderCase)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID); err != nil {
		return nil, fmt.Errorf("list entries by class: %w", err)
	}
	return entries, nil
}

// ListByTeacher returns a teacher's entries in calendar order.
func (r *TimetableRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf(`SELECT id, class_id, subject_id, teacher_id, day_of_week, start_time, end_time, room, session_id, status, created_at
		FROM timetable_entries WHERE teacher_id = $1 ORDER BY %s, start_time ASC`, dayOrderCase)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list entries by teacher: %w", err)
	}
	return entries, nil
}
