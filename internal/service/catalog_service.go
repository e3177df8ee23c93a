package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shiksha-labs/shiksha-api/internal/dto"
	"github.com/shiksha-labs/shiksha-api/internal/models"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
)

type subjectStore interface {
	Create(ctx context.Context, subject *models.Subject) error
	List(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type classStore interface {
	Create(ctx context.Context, class *models.SchoolClass) error
	List(ctx context.Context) ([]models.SchoolClass, error)
	FindByID(ctx context.Context, id string) (*models.SchoolClass, error)
}

type sessionStore interface {
	Create(ctx context.Context, session *models.AcademicSession) error
	List(ctx context.Context) ([]models.AcademicSession, error)
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
}

type assignmentStore interface {
	Create(ctx context.Context, assignment *models.StaffingAssignment) error
	ListByClassAndSession(ctx context.Context, classID, sessionID string) ([]models.StaffingAssignment, error)
}

// CatalogService manages the reference data the scheduler consumes: subjects,
// classes, academic sessions and staffing assignments.
type CatalogService struct {
	subjects    subjectStore
	classes     classStore
	sessions    sessionStore
	assignments assignmentStore
	audits      auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCatalogService wires the catalog stores.
func NewCatalogService(subjects subjectStore, classes classStore, sessions sessionStore, assignments assignmentStore, audits auditRecorder, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		subjects:    subjects,
		classes:     classes,
		sessions:    sessions,
		assignments: assignments,
		audits:      audits,
		validator:   validate,
		logger:      logger,
	}
}

// CreateSubject stores a subject. When no category is supplied it is derived
// from the subject name, so "Advanced Mathematics" lands in CORE and
// "Painting" in ELECTIVE.
func (s *CatalogService) CreateSubject(ctx context.Context, req dto.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	category := models.SubjectCategory(req.Category)
	if category == "" {
		category = models.ClassifySubjectName(req.Name)
	}
	subject := &models.Subject{Code: req.Code, Name: req.Name, Category: category}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.recordCreate(ctx, subject.ID, "subject "+subject.Code+" created")
	return subject, nil
}

// ListSubjects returns all subjects.
func (s *CatalogService) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// CreateClass stores a school class.
func (s *CatalogService) CreateClass(ctx context.Context, req dto.CreateClassRequest) (*models.SchoolClass, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.SchoolClass{Name: req.Name, Grade: req.Grade, Section: req.Section}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.recordCreate(ctx, class.ID, "class "+class.Name+" created")
	return class, nil
}

// ListClasses returns all classes.
func (s *CatalogService) ListClasses(ctx context.Context) ([]models.SchoolClass, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// CreateSession stores an academic session. The end date must not precede
// the start date.
func (s *CatalogService) CreateSession(ctx context.Context, req dto.CreateSessionRequest) (*models.AcademicSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}
	session := &models.AcademicSession{Name: req.Name, StartDate: start, EndDate: end, Active: req.Active}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.recordCreate(ctx, session.ID, "session "+session.Name+" created")
	return session, nil
}

// ListSessions returns all academic sessions.
func (s *CatalogService) ListSessions(ctx context.Context) ([]models.AcademicSession, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// CreateAssignment stores a staffing assignment after checking its subject,
// class and session all exist.
func (s *CatalogService) CreateAssignment(ctx context.Context, req dto.CreateAssignmentRequest) (*models.StaffingAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		return nil, notFoundOrInternal(err, "subject "+req.SubjectID+" not found")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, notFoundOrInternal(err, "class "+req.ClassID+" not found")
	}
	if _, err := s.sessions.FindByID(ctx, req.SessionID); err != nil {
		return nil, notFoundOrInternal(err, "session "+req.SessionID+" not found")
	}
	assignment := &models.StaffingAssignment{
		TeacherID: req.TeacherID,
		SubjectID: req.SubjectID,
		ClassID:   req.ClassID,
		SessionID: req.SessionID,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.recordCreate(ctx, assignment.ID, "assignment for subject "+assignment.SubjectID+" created")
	return assignment, nil
}

// ListAssignments returns the staffing assignments for a class and session.
func (s *CatalogService) ListAssignments(ctx context.Context, classID, sessionID string) ([]models.StaffingAssignment, error) {
	if classID == "" || sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id and session id are required")
	}
	assignments, err := s.assignments.ListByClassAndSession(ctx, classID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

func notFoundOrInternal(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *CatalogService) recordCreate(ctx context.Context, targetID, message string) {
	if s.audits == nil {
		return
	}
	entry := &models.AuditLog{
		ActorID:  models.AuditActorSystem,
		TargetID: targetID,
		Action:   models.AuditActionEntityCreate,
		Message:  message,
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record create audit", zap.String("target_id", targetID), zap.Error(err))
	}
}
