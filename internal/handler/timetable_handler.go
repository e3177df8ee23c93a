package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiksha-labs/shiksha-api/internal/dto"
	"github.com/shiksha-labs/shiksha-api/internal/middleware"
	"github.com/shiksha-labs/shiksha-api/internal/models"
	"github.com/shiksha-labs/shiksha-api/internal/service"
	appErrors "github.com/shiksha-labs/shiksha-api/pkg/errors"
	"github.com/shiksha-labs/shiksha-api/pkg/jobs"
	"github.com/shiksha-labs/shiksha-api/pkg/response"
)

// JobTypeSessionGeneration is the queue job type for session-wide generation.
const JobTypeSessionGeneration = "session_generation"

type classGenerator interface {
	GenerateForClass(ctx context.Context, req dto.GenerateClassRequest) (*dto.GenerationOutcome, error)
}

type timetableReader interface {
	GetClassTimetable(ctx context.Context, classID string) ([]models.TimetableEntry, error)
	GetTeacherTimetable(ctx context.Context, teacherID string) ([]models.TimetableEntry, error)
	ExportClassTimetable(ctx context.Context, classID, format string) ([]byte, string, error)
}

type timetableImporter interface {
	Import(ctx context.Context, sessionID string, reader io.Reader) (*dto.ImportResult, error)
}

type sessionJobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// TimetableHandler exposes generation, import and read endpoints. Session
// generation is asynchronous: the request is queued and acknowledged with a
// job id while the queue worker fans out over classes.
type TimetableHandler struct {
	engine   classGenerator
	reader   timetableReader
	importer timetableImporter
	queue    sessionJobEnqueuer
	logger   *zap.Logger
}

// NewTimetableHandler wires the timetable endpoints.
func NewTimetableHandler(engine classGenerator, reader timetableReader, importer timetableImporter, queue sessionJobEnqueuer, logger *zap.Logger) *TimetableHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableHandler{engine: engine, reader: reader, importer: importer, queue: queue, logger: logger}
}

// RegisterRoutes attaches the timetable routes to the group. Generation and
// import mutate the schedule and are restricted to administrators.
func (h *TimetableHandler) RegisterRoutes(rg *gin.RouterGroup) {
	adminOnly := middleware.RBAC(models.RoleAdmin, models.RoleSuperAdmin)
	timetables := rg.Group("/timetables")
	timetables.POST("/generate/class", adminOnly, h.GenerateClass)
	timetables.POST("/generate/session", adminOnly, h.GenerateSession)
	timetables.POST("/import", adminOnly, h.Import)
	timetables.GET("/class/:id", h.ClassTimetable)
	timetables.GET("/teacher/:id", h.TeacherTimetable)
	timetables.GET("/class/:id/export", h.ExportClass)
}

// GenerateClass runs generation for one class synchronously.
func (h *TimetableHandler) GenerateClass(c *gin.Context) {
	var req dto.GenerateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	outcome, err := h.engine.GenerateForClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome)
}

// GenerateSession queues generation for every class in the session and
// returns 202 with the job id.
func (h *TimetableHandler) GenerateSession(c *gin.Context) {
	var req dto.GenerateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if req.SessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "sessionId is required"))
		return
	}

	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeSessionGeneration,
		Payload: req,
	}
	if err := h.queue.Enqueue(job); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue session generation"))
		return
	}
	h.logger.Info("session generation queued", zap.String("job_id", job.ID), zap.String("session_id", req.SessionID))
	response.Accepted(c, gin.H{"jobId": job.ID, "sessionId": req.SessionID})
}

// Import ingests a timetable CSV for the session given in the form field or
// query parameter. A rejected batch answers 422 with the error report inline.
func (h *TimetableHandler) Import(c *gin.Context) {
	sessionID := c.PostForm("sessionId")
	if sessionID == "" {
		sessionID = c.Query("sessionId")
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "csv file is required"))
		return
	}
	defer file.Close()

	result, err := h.importer.Import(c.Request.Context(), sessionID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Success {
		rejected := appErrors.ErrImportRejected
		c.JSON(rejected.Status, response.Envelope{Data: result, Error: rejected})
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ClassTimetable returns the entries for a class.
func (h *TimetableHandler) ClassTimetable(c *gin.Context) {
	entries, err := h.reader.GetClassTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// TeacherTimetable returns the entries for a teacher.
func (h *TimetableHandler) TeacherTimetable(c *gin.Context) {
	entries, err := h.reader.GetTeacherTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

// ExportClass streams the class timetable as csv (default) or pdf.
func (h *TimetableHandler) ExportClass(c *gin.Context) {
	classID := c.Param("id")
	format := c.DefaultQuery("format", "csv")
	data, contentType, err := h.reader.ExportClassTimetable(c.Request.Context(), classID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("timetable-%s.%s", classID, format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// SessionGenerationHandler adapts the engine to the jobs queue.
func SessionGenerationHandler(engine *service.TimetableEngine, logger *zap.Logger) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		req, ok := job.Payload.(dto.GenerateSessionRequest)
		if !ok {
			logger.Error("unexpected session generation payload", zap.String("job_id", job.ID))
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return engine.GenerateForSession(ctx, req)
	}
}
