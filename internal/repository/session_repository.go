package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shiksha-labs/shiksha-api/internal/models"
)

// SessionRepository persists academic sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts an academic session.
func (r *SessionRepository) Create(ctx context.Context, session *models.AcademicSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO academic_sessions (id, name, start_date, end_date, active, created_at)
		VALUES (:id, :name, :start_date, :end_date, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create academic session: %w", err)
	}
	return nil
}

// List returns sessions newest first.
func (r *SessionRepository) List(ctx context.Context) ([]models.AcademicSession, error) {
	const query = `SELECT id, name, start_date, end_date, active, created_at FROM academic_sessions ORDER BY start_date DESC`
	var sessions []models.AcademicSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("list academic sessions: %w", err)
	}
	return sessions, nil
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	const query = `SELECT id, name, start_date, end_date, active, created_at FROM academic_sessions WHERE id = $1`
	var session models.AcademicSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}
