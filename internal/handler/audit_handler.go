package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiksha-labs/shiksha-api/internal/models"
	"github.com/shiksha-labs/shiksha-api/pkg/response"
)

type auditReader interface {
	ListByTarget(ctx context.Context, targetID string) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	audits auditReader
}

// NewAuditHandler wires the audit endpoints.
func NewAuditHandler(audits auditReader) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// RegisterRoutes attaches the audit routes to the group.
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audits/:targetId", h.ListByTarget)
}

// ListByTarget returns the audit trail for one entity.
func (h *AuditHandler) ListByTarget(c *gin.Context) {
	logs, err := h.audits.ListByTarget(c.Request.Context(), c.Param("targetId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs)
}
