package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiksha-labs/shiksha-api/internal/dto"
	"github.com/shiksha-labs/shiksha-api/internal/middleware"
	"github.com/shiksha-labs/shiksha-api/internal/models"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
	"github.com/shiksha-labs/shiksha-api/pkg/response"
)

type catalogManager interface {
	CreateSubject(ctx context.Context, req dto.CreateSubjectRequest) (*models.Subject, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	CreateClass(ctx context.Context, req dto.CreateClassRequest) (*models.SchoolClass, error)
	ListClasses(ctx context.Context) ([]models.SchoolClass, error)
	CreateSession(ctx context.Context, req dto.CreateSessionRequest) (*models.AcademicSession, error)
	ListSessions(ctx context.Context) ([]models.AcademicSession, error)
	CreateAssignment(ctx context.Context, req dto.CreateAssignmentRequest) (*models.StaffingAssignment, error)
	ListAssignments(ctx context.Context, classID, sessionID string) ([]models.StaffingAssignment, error)
}

// CatalogHandler exposes the reference-data CRUD surface.
type CatalogHandler struct {
	catalog catalogManager
}

// NewCatalogHandler wires the catalog endpoints.
func NewCatalogHandler(catalog catalogManager) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// RegisterRoutes attaches the catalog routes to the group. Creation routes
// are restricted to administrators.
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	adminOnly := middleware.RBAC(models.RoleAdmin, models.RoleSuperAdmin)
	rg.POST("/subjects", adminOnly, h.CreateSubject)
	rg.GET("/subjects", h.ListSubjects)
	rg.POST("/classes", adminOnly, h.CreateClass)
	rg.GET("/classes", h.ListClasses)
	rg.POST("/sessions", adminOnly, h.CreateSession)
	rg.GET("/sessions", h.ListSessions)
	rg.POST("/assignments", adminOnly, h.CreateAssignment)
	rg.GET("/assignments", h.ListAssignments)
}

// CreateSubject stores a subject.
func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	var req dto.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	subject, err := h.catalog.CreateSubject(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// ListSubjects returns all subjects.
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.catalog.ListSubjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects)
}

// CreateClass stores a class.
func (h *CatalogHandler) CreateClass(c *gin.Context) {
	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	class, err := h.catalog.CreateClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// ListClasses returns all classes.
func (h *CatalogHandler) ListClasses(c *gin.Context) {
	classes, err := h.catalog.ListClasses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes)
}

// CreateSession stores an academic session.
func (h *CatalogHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	session, err := h.catalog.CreateSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// ListSessions returns all academic sessions.
func (h *CatalogHandler) ListSessions(c *gin.Context) {
	sessions, err := h.catalog.ListSessions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions)
}

// CreateAssignment stores a staffing assignment.
func (h *CatalogHandler) CreateAssignment(c *gin.Context) {
	var req dto.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	assignment, err := h.catalog.CreateAssignment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListAssignments returns the assignments for a class and session, both given
// as query parameters.
func (h *CatalogHandler) ListAssignments(c *gin.Context) {
	assignments, err := h.catalog.ListAssignments(c.Request.Context(), c.Query("classId"), c.Query("sessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments)
}
