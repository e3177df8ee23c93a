package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shiksha-labs/shiksha-api/internal/models"
)

// ClassRepository persists school classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.SchoolClass) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.CreatedAt.IsZero() {
		class.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO classes (id, name, grade, section, created_at)
		VALUES (:id, :name, :grade, :section, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// List returns all classes ordered by grade then section.
func (r *ClassRepository) List(ctx context.Context) ([]models.SchoolClass, error) {
	const query = `SELECT id, name, grade, section, created_at FROM classes ORDER BY grade ASC, section ASC`
	var classes []models.SchoolClass
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListIDs returns every class id. The session scheduler fans out over these.
func (r *ClassRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM classes ORDER BY grade ASC, section ASC`); err != nil {
		return nil, fmt.Errorf("list class ids: %w", err)
	}
	return ids, nil
}

// FindByID loads a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.SchoolClass, error) {
	const query = `SELECT id, name, grade, section, created_at FROM classes WHERE id = $1`
	var class models.SchoolClass
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
