package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context, actor models.Identity) ([]models.ActivityEntry, error)
	Export(ctx context.Context, actor models.Identity, format string) (*service.ExportFile, error)
}

// ActivityHandler serves the audit trail to admins.
type ActivityHandler struct {
	activities activityService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activities activityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// List godoc
// @Summary List activity logs
// @Description Newest first; actions by accounts that are currently admins are excluded
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	entries, err := h.activities.List(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination := paginate(c, entries)
	response.JSON(c, http.StatusOK, items, pagination)
}

// Export godoc
// @Summary Export activity logs
// @Description Same rows as the list, as a CSV (default) or PDF attachment
// @Tags Activities
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /activities/export [get]
func (h *ActivityHandler) Export(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	file, err := h.activities.Export(c.Request.Context(), identity, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Payload)
}
