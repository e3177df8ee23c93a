package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shiksha-labs/shiksha-api/internal/dto"
	"github.com/shiksha-labs/shiksha-api/internal/models"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
)

func TestCreateSubjectDerivesCategory(t *testing.T) {
	fixture := newCatalogFixture()

	subject, err := fixture.svc.CreateSubject(context.Background(), dto.CreateSubjectRequest{
		Code: "MATH-10",
		Name: "Advanced Mathematics",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectCategoryCore, subject.Category)

	subject, err = fixture.svc.CreateSubject(context.Background(), dto.CreateSubjectRequest{
		Code: "ART-10",
		Name: "Painting",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectCategoryElective, subject.Category)
}

func TestCreateSubjectExplicitCategoryWins(t *testing.T) {
	fixture := newCatalogFixture()

	// "Music Theory" contains no core keyword, but the operator can still
	// promote it explicitly.
	subject, err := fixture.svc.CreateSubject(context.Background(), dto.CreateSubjectRequest{
		Code:     "MUS-10",
		Name:     "Music Theory",
		Category: "CORE",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectCategoryCore, subject.Category)
}

func TestCreateSessionValidatesDates(t *testing.T) {
	fixture := newCatalogFixture()

	_, err := fixture.svc.CreateSession(context.Background(), dto.CreateSessionRequest{
		Name:      "2026/2027",
		StartDate: "2026-07-01",
		EndDate:   "2026-06-01",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	session, err := fixture.svc.CreateSession(context.Background(), dto.CreateSessionRequest{
		Name:      "2026/2027",
		StartDate: "2026-07-01",
		EndDate:   "2027-06-30",
		Active:    true,
	})
	require.NoError(t, err)
	assert.True(t, session.Active)
}

func TestCreateAssignmentChecksReferences(t *testing.T) {
	fixture := newCatalogFixture()
	fixture.subjects.items["math"] = models.Subject{ID: "math"}
	fixture.classes.items["class-1"] = models.SchoolClass{ID: "class-1"}
	fixture.sessions.items["session-1"] = models.AcademicSession{ID: "session-1"}

	assignment, err := fixture.svc.CreateAssignment(context.Background(), dto.CreateAssignmentRequest{
		TeacherID: "t-1",
		SubjectID: "math",
		ClassID:   "class-1",
		SessionID: "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", assignment.TeacherID)

	_, err = fixture.svc.CreateAssignment(context.Background(), dto.CreateAssignmentRequest{
		TeacherID: "t-1",
		SubjectID: "history",
		ClassID:   "class-1",
		SessionID: "session-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

type catalogFixture struct {
	svc      *CatalogService
	subjects *subjectStoreStub
	classes  *classStoreStub
	sessions *sessionStoreStub
}

func newCatalogFixture() *catalogFixture {
	subjects := &subjectStoreStub{items: map[string]models.Subject{}}
	classes := &classStoreStub{items: map[string]models.SchoolClass{}}
	sessions := &sessionStoreStub{items: map[string]models.AcademicSession{}}
	assignments := &assignmentStoreStub{}
	svc := NewCatalogService(subjects, classes, sessions, assignments, nil, validator.New(), zap.NewNop())
	return &catalogFixture{svc: svc, subjects: subjects, classes: classes, sessions: sessions}
}

type subjectStoreStub struct {
	items map[string]models.Subject
}

func (s *subjectStoreStub) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = subject.Code
	s.items[subject.ID] = *subject
	return nil
}

func (s *subjectStoreStub) List(ctx context.Context) ([]models.Subject, error) {
	out := make([]models.Subject, 0, len(s.items))
	for _, subject := range s.items {
		out = append(out, subject)
	}
	return out, nil
}

func (s *subjectStoreStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := s.items[id]; ok {
		return &subject, nil
	}
	return nil, sql.ErrNoRows
}

type classStoreStub struct {
	items map[string]models.SchoolClass
}

func (s *classStoreStub) Create(ctx context.Context, class *models.SchoolClass) error {
	class.ID = class.Name
	s.items[class.ID] = *class
	return nil
}

func (s *classStoreStub) List(ctx context.Context) ([]models.SchoolClass, error) {
	out := make([]models.SchoolClass, 0, len(s.items))
	for _, class := range s.items {
		out = append(out, class)
	}
	return out, nil
}

func (s *classStoreStub) FindByID(ctx context.Context, id string) (*models.SchoolClass, error) {
	if class, ok := s.items[id]; ok {
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

type sessionStoreStub struct {
	items map[string]models.AcademicSession
}

func (s *sessionStoreStub) Create(ctx context.Context, session *models.AcademicSession) error {
	session.ID = session.Name
	s.items[session.ID] = *session
	return nil
}

func (s *sessionStoreStub) List(ctx context.Context) ([]models.AcademicSession, error) {
	out := make([]models.AcademicSession, 0, len(s.items))
	for _, session := range s.items {
		out = append(out, session)
	}
	return out, nil
}

func (s *sessionStoreStub) FindByID(ctx context.Context, id string) (*models.AcademicSession, error) {
	if session, ok := s.items[id]; ok {
		return &session, nil
	}
	return nil, sql.ErrNoRows
}

type assignmentStoreStub struct {
	items []models.StaffingAssignment
}

func (s *assignmentStoreStub) Create(ctx context.Context, assignment *models.StaffingAssignment) error {
	assignment.ID = "assignment-1"
	s.items = append(s.items, *assignment)
	return nil
}

func (s *assignmentStoreStub) ListByClassAndSession(ctx context.Context, classID, sessionID string) ([]models.StaffingAssignment, error) {
	return s.items, nil
}
