package handlers

import (
	"CareChain/middlewares"
	"CareChain/models"
	"CareChain/services"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppointmentWorkflow is the appointment service as seen by the HTTP layer.
type AppointmentWorkflow interface {
	Create(ctx context.Context, caller services.Caller, input services.CreateAppointmentInput) (*models.Appointment, error)
	Update(ctx context.Context, caller services.Caller, id string, input services.UpdateAppointmentInput) (*models.Appointment, error)
	Approve(ctx context.Context, reviewer services.Caller, id string) (*models.Appointment, error)
	Reject(ctx context.Context, reviewer services.Caller, id, reason string) (*models.Appointment, error)
	Cancel(ctx context.Context, requester services.Caller, id string) (*models.Appointment, error)
	Complete(ctx context.Context, caller services.Caller, id string, orders []models.Order) (*services.CompletionResult, error)
	Delete(ctx context.Context, caller services.Caller, id string) error
	UpdatePayment(ctx context.Context, caller services.Caller, id string, status models.PaymentStatus, amount *float64) (*models.Appointment, error)
	Get(ctx context.Context, caller services.Caller, id string) (*models.Appointment, error)
	ListByDoctor(ctx context.Context, caller services.Caller, doctorID string, status models.AppointmentStatus, date string) ([]models.Appointment, error)
	Schedule(ctx context.Context, caller services.Caller, doctorID, from, to string) ([]models.Appointment, error)
	ListByPatient(ctx context.Context, caller services.Caller, patientID string) ([]models.Appointment, error)
	List(ctx context.Context, caller services.Caller, query models.AppointmentQuery) (*services.AppointmentPage, error)
}

type AppointmentHandler struct {
	service AppointmentWorkflow
	log     *zap.Logger
}

func NewAppointmentHandler(service AppointmentWorkflow, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{service: service, log: log}
}

func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var input services.CreateAppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	appointment, err := h.service.Create(c.Request.Context(), who, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointment, http.StatusCreated)
}

func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	appointment, err := h.service.Get(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointment, http.StatusOK)
}

func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var input services.UpdateAppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	appointment, err := h.service.Update(c.Request.Context(), who, c.Param("id"), input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointment, http.StatusOK)
}

func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), who, c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AppointmentHandler) ApproveAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	appointment, err := h.service.Approve(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointment, http.StatusOK)
}

func (h *AppointmentHandler) RejectAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	appointment, err := h.service.Reject(c.Request.Context(), who, c.Param("id"), body.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointment, http.StatusOK)
}

func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	appointment, err := h.service.Cancel(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointment, http.StatusOK)
}

// CompleteAppointment accepts an optional body with follow-up orders.
func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var body struct {
		Orders []models.Order `json:"orders"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	result, err := h.service.Complete(c.Request.Context(), who, c.Param("id"), body.Orders)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, result, http.StatusOK)
}

func (h *AppointmentHandler) UpdatePayment(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var body struct {
		Status models.PaymentStatus `json:"status"`
		Amount *float64             `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	appointment, err := h.service.UpdatePayment(c.Request.Context(), who, c.Param("id"), body.Status, body.Amount)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointment, http.StatusOK)
}

// ListAppointments serves the admin listing. Filters: status (comma
// separated), priority, from, to, page, limit.
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	query := models.AppointmentQuery{
		Priority: models.Priority(c.Query("priority")),
		From:     c.Query("from"),
		To:       c.Query("to"),
	}
	for _, status := range strings.Split(c.Query("status"), ",") {
		if status = strings.TrimSpace(status); status != "" {
			query.Statuses = append(query.Statuses, models.AppointmentStatus(status))
		}
	}
	var err error
	if query.Page, err = intQuery(c, "page"); err != nil {
		badRequest(c, "page must be a number")
		return
	}
	if query.Limit, err = intQuery(c, "limit"); err != nil {
		badRequest(c, "limit must be a number")
		return
	}

	page, err := h.service.List(c.Request.Context(), who, query)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, page, http.StatusOK)
}

func (h *AppointmentHandler) ListDoctorAppointments(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	status := models.AppointmentStatus(c.Query("status"))
	appointments, err := h.service.ListByDoctor(c.Request.Context(), who, c.Param("id"), status, c.Query("date"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointments, http.StatusOK)
}

func (h *AppointmentHandler) DoctorSchedule(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	appointments, err := h.service.Schedule(c.Request.Context(), who, c.Param("id"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointments, http.StatusOK)
}

func (h *AppointmentHandler) ListPatientAppointments(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	appointments, err := h.service.ListByPatient(c.Request.Context(), who, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	middlewares.RespondJSON(c, appointments, http.StatusOK)
}

func intQuery(c *gin.Context, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
