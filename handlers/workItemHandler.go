package handlers

import (
	"CareChain/middlewares"
	"CareChain/models"
	"CareChain/services"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WorkQueue is the dispatch service as seen by the HTTP layer.
type WorkQueue interface {
	SubmitReport(ctx context.Context, caller services.Caller, id string, report services.ReportInput) (*models.WorkItem, error)
	List(ctx context.Context, caller services.Caller, query models.WorkItemQuery) ([]models.WorkItem, error)
}

type WorkItemHandler struct {
	service WorkQueue
	log     *zap.Logger
}

func NewWorkItemHandler(service WorkQueue, log *zap.Logger) *WorkItemHandler {
	return &WorkItemHandler{service: service, log: log}
}

// ListWorkItems returns the caller's queue, or any queue for admins.
func (h *WorkItemHandler) ListWorkItems(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	query := models.WorkItemQuery{
		TechnicianID:  c.Query("technician_id"),
		AppointmentID: c.Query("appointment_id"),
		Status:        models.WorkStatus(c.Query("status")),
		Kind:          models.WorkKind(c.Query("kind")),
	}

	items, err := h.service.List(c.Request.Context(), who, query)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, items, http.StatusOK)
}

func (h *WorkItemHandler) SubmitReport(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var report services.ReportInput
	if err := c.ShouldBindJSON(&report); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	item, err := h.service.SubmitReport(c.Request.Context(), who, c.Param("id"), report)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, item, http.StatusOK)
}
