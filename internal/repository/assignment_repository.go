package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shiksha-labs/shiksha-api/internal/models"
)

// StaffingAssignmentRepository persists teacher-subject-class staffing.
type StaffingAssignmentRepository struct {
	db *sqlx.DB
}

// NewStaffingAssignmentRepository constructs the repository.
func NewStaffingAssignmentRepository(db *sqlx.DB) *StaffingAssignmentRepository {
	return &StaffingAssignmentRepository{db: db}
}

// ListByClassAndSession returns assignments for a class within a session.
func (r *StaffingAssignmentRepository) ListByClassAndSession(ctx context.Context, classID, sessionID string) ([]models.StaffingAssignment, error) {
	const query = `SELECT id, teacher_id, subject_id, class_id, session_id, created_at
		FROM staffing_assignments WHERE class_id = $1 AND session_id = $2 ORDER BY created_at ASC, id ASC`
	var assignments []models.StaffingAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID, sessionID); err != nil {
		return nil, fmt.Errorf("list staffing assignments: %w", err)
	}
	return assignments, nil
}

// ListByClass returns assignments for a class regardless of session. Kept for
// callers that predate session scoping.
func (r *StaffingAssignmentRepository) ListByClass(ctx context.Context, classID string) ([]models.StaffingAssignment, error) {
	const query = `SELECT id, teacher_id, subject_id, class_id, session_id, created_at
		FROM staffing_assignments WHERE class_id = $1 ORDER BY created_at ASC, id ASC`
	var assignments []models.StaffingAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID); err != nil {
		return nil, fmt.Errorf("list staffing assignments by class: %w", err)
	}
	return assignments, nil
}

// Create inserts a new staffing assignment.
func (r *StaffingAssignmentRepository) Create(ctx context.Context, assignment *models.StaffingAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO staffing_assignments (id, teacher_id, subject_id, class_id, session_id, created_at)
		VALUES (:id, :teacher_id, :subject_id, :class_id, :session_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create staffing assignment: %w", err)
	}
	return nil
}
