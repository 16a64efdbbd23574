package services

import (
	"CareChain/config"
	"CareChain/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AppointmentStore persists appointments. Get methods return nil, nil when
// the id does not resolve.
type AppointmentStore interface {
	DoctorDayLister
	Create(ctx context.Context, appointment *models.Appointment) error
	// GetByID may serve from cache.
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	// GetCurrent always reads the persisted record.
	GetCurrent(ctx context.Context, id string) (*models.Appointment, error)
	// UpdateIfMatch writes appointment only if the stored row still has the
	// expected status and version. It reports whether a row was written.
	UpdateIfMatch(ctx context.Context, appointment *models.Appointment, status models.AppointmentStatus, version int) (bool, error)
	DeleteIfMatch(ctx context.Context, id string, status models.AppointmentStatus, version int) (bool, error)
	List(ctx context.Context, query models.AppointmentQuery) ([]models.Appointment, int64, error)
}

// Directory resolves users owned by the identity service.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListActiveTechnicians(ctx context.Context, staffRole models.StaffRole) ([]models.User, error)
}

// Locker serializes work on a key across instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Alerter notifies operators about work that needs a human.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// EventPublisher broadcasts workflow events.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{}) error
}

// Dispatcher turns an order into a technician work item.
type Dispatcher interface {
	Dispatch(ctx context.Context, order WorkOrder) (*models.WorkItem, error)
}

// Workflow events.
const (
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentUpdated   = "appointment.updated"
	EventAppointmentApproved  = "appointment.approved"
	EventAppointmentRejected  = "appointment.rejected"
	EventAppointmentCancelled = "appointment.cancelled"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentDeleted   = "appointment.deleted"
	EventPaymentUpdated       = "appointment.payment_updated"
	EventWorkItemDispatched   = "work_item.dispatched"
	EventWorkItemReported     = "work_item.reported"
	EventOrderUndispatched    = "work_item.undispatched"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// DispatchWarning reports an order that could not be routed when its
// appointment was completed.
type DispatchWarning struct {
	Order   models.Order `json:"order"`
	Kind    ErrorKind    `json:"kind"`
	Message string       `json:"message"`
}

// CompletionResult is the outcome of completing an appointment. The
// appointment is completed even when Warnings is not empty.
type CompletionResult struct {
	Appointment *models.Appointment `json:"appointment"`
	WorkItems   []models.WorkItem   `json:"work_items"`
	Warnings    []DispatchWarning   `json:"warnings,omitempty"`
}

// AppointmentPage is one page of a filtered listing.
type AppointmentPage struct {
	Appointments []models.Appointment `json:"appointments"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	Limit        int                  `json:"limit"`
	Pages        int                  `json:"pages"`
}

type AppointmentServiceDeps struct {
	Store      AppointmentStore
	Directory  Directory
	Locker     Locker
	Dispatcher Dispatcher
	Alerter    Alerter
	Events     EventPublisher
	Logger     *zap.Logger
	Now        func() time.Time
	// Location resolves appointment wall-clock times for the advance notice
	// cancellation policy. Defaults to time.Local.
	Location *time.Location
}

// AppointmentService owns the appointment state machine.
type AppointmentService struct {
	store      AppointmentStore
	directory  Directory
	locker     Locker
	dispatcher Dispatcher
	alerter    Alerter
	events     EventPublisher
	checker    *AdmissionChecker
	graph      StateGraph
	cfg        config.WorkflowConfig
	log        *zap.Logger
	now        func() time.Time
	loc        *time.Location
}

func NewAppointmentService(cfg config.WorkflowConfig, deps AppointmentServiceDeps) (*AppointmentService, error) {
	graph, err := GraphFor(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Directory == nil || deps.Dispatcher == nil {
		return nil, errors.New("appointment service needs a store, a directory and a dispatcher")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &AppointmentService{
		store:      deps.Store,
		directory:  deps.Directory,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		alerter:    deps.Alerter,
		events:     deps.Events,
		checker:    NewAdmissionChecker(deps.Store, cfg.ConflictThreshold, deps.Logger),
		graph:      graph,
		cfg:        cfg,
		log:        deps.Logger,
		now:        deps.Now,
		loc:        deps.Location,
	}, nil
}

// Graph returns the state graph in effect.
func (s *AppointmentService) Graph() StateGraph {
	return s.graph
}

// Create books an appointment in the initial state of the workflow.
func (s *AppointmentService) Create(ctx context.Context, caller Caller, input CreateAppointmentInput) (*models.Appointment, error) {
	switch caller.Role {
	case models.RolePatient:
		if input.PatientID != "" && input.PatientID != caller.ID {
			return nil, forbidden("patients can only book for themselves")
		}
		input.PatientID = caller.ID
	case models.RoleAdmin:
	default:
		return nil, forbidden("only patients and admins can book appointments")
	}

	input.applyDefaults(s.cfg)
	if err := input.validate(s.cfg); err != nil {
		return nil, err
	}
	date, _ := NormalizeDate(input.Date)
	slot, _ := NormalizeTime(input.Time)

	if err := s.requireActiveDoctor(ctx, input.DoctorID); err != nil {
		return nil, err
	}

	release, err := s.lockSlot(ctx, input.DoctorID, date)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.checker.CheckSlotAvailable(ctx, input.DoctorID, date, slot, ""); err != nil {
		return nil, err
	}

	now := s.now()
	appointment := &models.Appointment{
		PatientID:      input.PatientID,
		DoctorID:       input.DoctorID,
		Date:           date,
		Time:           slot,
		Duration:       input.Duration,
		Type:           input.Type,
		Priority:       input.Priority,
		Problem:        strings.TrimSpace(input.Problem),
		Symptoms:       input.Symptoms,
		MedicalHistory: input.MedicalHistory,
		Notes:          input.Notes,
		Status:         s.graph.Initial(),
		PaymentAmount:  input.PaymentAmount,
		PaymentStatus:  models.PaymentPending,
		Attachments:    input.Attachments,
		Orders:         input.Orders,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	appointment.Notify(models.NotificationSubmitted, "Application submitted successfully", now)

	if err := s.store.Create(ctx, appointment); err != nil {
		return nil, internal("failed to create appointment", err)
	}

	s.log.Info("appointment created",
		zap.String("appointment_id", appointment.ID),
		zap.String("doctor_id", appointment.DoctorID),
		zap.String("date", appointment.Date),
		zap.String("time", appointment.Time))
	s.publish(ctx, EventAppointmentCreated, appointment)
	return appointment, nil
}

// Update changes the details of an appointment still in the initial state.
// A new date or time goes through the admission check again.
func (s *AppointmentService) Update(ctx context.Context, caller Caller, id string, input UpdateAppointmentInput) (*models.Appointment, error) {
	if err := input.validate(s.cfg); err != nil {
		return nil, err
	}
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.PatientID != caller.ID {
		return nil, forbidden("only the patient who booked the appointment can change it")
	}
	if appointment.Status != s.graph.Initial() {
		return nil, invalidTransition("update", appointment.Status)
	}

	prevStatus, prevVersion := appointment.Status, appointment.Version
	date, slot := appointment.Date, appointment.Time
	if input.Date != nil {
		date, _ = NormalizeDate(*input.Date)
	}
	if input.Time != nil {
		slot, _ = NormalizeTime(*input.Time)
	}
	if date != appointment.Date || slot != appointment.Time {
		release, err := s.lockSlot(ctx, appointment.DoctorID, date)
		if err != nil {
			return nil, err
		}
		defer release()
		if err := s.checker.CheckSlotAvailable(ctx, appointment.DoctorID, date, slot, appointment.ID); err != nil {
			return nil, err
		}
		appointment.Date, appointment.Time = date, slot
	}

	if input.Duration != nil {
		appointment.Duration = *input.Duration
	}
	if input.Type != nil {
		appointment.Type = *input.Type
	}
	if input.Priority != nil {
		appointment.Priority = *input.Priority
	}
	if input.Problem != nil {
		appointment.Problem = strings.TrimSpace(*input.Problem)
	}
	if input.Symptoms != nil {
		appointment.Symptoms = input.Symptoms
	}
	if input.MedicalHistory != nil {
		appointment.MedicalHistory = *input.MedicalHistory
	}
	if input.Notes != nil {
		appointment.Notes = *input.Notes
	}
	if input.Attachments != nil {
		appointment.Attachments = input.Attachments
	}
	appointment.UpdatedAt = s.now()
	appointment.Version++

	if err := s.commit(ctx, appointment, prevStatus, prevVersion); err != nil {
		return nil, err
	}
	s.publish(ctx, EventAppointmentUpdated, appointment)
	return appointment, nil
}

// Approve accepts a pending appointment on behalf of its doctor.
func (s *AppointmentService) Approve(ctx context.Context, reviewer Caller, id string) (*models.Appointment, error) {
	appointment, err := s.transition(ctx, id, ActionApprove, s.authorizeReviewer(reviewer),
		func(a *models.Appointment, now time.Time) {
			a.ReviewedAt = &now
			a.ReviewedBy = &reviewer.ID
			a.Notify(models.NotificationApproved, "Your application has been approved", now)
		})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventAppointmentApproved, appointment)
	if appointment.Status == models.StatusCompleted {
		s.publish(ctx, EventAppointmentCompleted, appointment)
		items, warnings := s.dispatchOrders(ctx, appointment, appointment.Orders)
		s.log.Info("appointment closed on approval",
			zap.String("appointment_id", appointment.ID),
			zap.Int("work_items", len(items)),
			zap.Int("undispatched", len(warnings)))
	}
	return appointment, nil
}

// Reject declines a pending appointment. The reason is required.
func (s *AppointmentService) Reject(ctx context.Context, reviewer Caller, id, reason string) (*models.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &Error{
			Kind:    KindValidation,
			Message: "rejection reason is required",
			Details: map[string]interface{}{"reason": "cannot be blank"},
		}
	}
	appointment, err := s.transition(ctx, id, ActionReject, s.authorizeReviewer(reviewer),
		func(a *models.Appointment, now time.Time) {
			a.ReviewedAt = &now
			a.ReviewedBy = &reviewer.ID
			a.RejectionReason = &reason
			a.Notify(models.NotificationRejected, fmt.Sprintf("Your application has been rejected. Reason: %s", reason), now)
		})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventAppointmentRejected, appointment)
	return appointment, nil
}

// Cancel withdraws an appointment on behalf of the patient who booked it.
func (s *AppointmentService) Cancel(ctx context.Context, requester Caller, id string) (*models.Appointment, error) {
	authorize := func(a *models.Appointment) error {
		if a.PatientID != requester.ID {
			return forbidden("only the patient who booked the appointment can cancel it")
		}
		if s.cfg.CancelPolicy != config.CancelPolicyAdvanceNotice {
			return nil
		}
		at, err := a.ScheduledAt(s.loc)
		if err != nil {
			return internal("stored appointment has an invalid schedule", err)
		}
		if at.Sub(s.now()) < s.cfg.CancelNotice {
			return &Error{
				Kind:    KindInvalidTransition,
				Message: fmt.Sprintf("appointments can only be cancelled %s in advance", s.cfg.CancelNotice),
				Details: map[string]interface{}{"current_status": a.Status, "action": ActionCancel},
			}
		}
		return nil
	}
	appointment, err := s.transition(ctx, id, ActionCancel, authorize,
		func(a *models.Appointment, now time.Time) {
			a.Notify(models.NotificationCancelled, "Appointment cancelled by patient", now)
		})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventAppointmentCancelled, appointment)
	return appointment, nil
}

// Complete closes a consultation and dispatches its scan and lab orders.
// Orders given here are added to the ones recorded at booking. Dispatch is
// best effort: a failed order becomes a warning and the appointment stays
// completed.
func (s *AppointmentService) Complete(ctx context.Context, caller Caller, id string, orders []models.Order) (*CompletionResult, error) {
	for i, order := range orders {
		if err := order.Validate(); err != nil {
			return nil, asValidationError(err, fmt.Sprintf("invalid order %d", i))
		}
	}

	var requested []models.Order
	appointment, err := s.transition(ctx, id, ActionComplete, s.authorizeReviewer(caller),
		func(a *models.Appointment, now time.Time) {
			requested = append(append(requested, a.Orders...), orders...)
			a.Orders = requested
			a.Notify(models.NotificationCompleted, "Your appointment has been completed", now)
		})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventAppointmentCompleted, appointment)

	result := &CompletionResult{Appointment: appointment}
	result.WorkItems, result.Warnings = s.dispatchOrders(ctx, appointment, requested)
	return result, nil
}

// dispatchOrders routes each order to a technician. Orders that cannot be
// routed come back as warnings and are reported to operators.
func (s *AppointmentService) dispatchOrders(ctx context.Context, appointment *models.Appointment, orders []models.Order) ([]models.WorkItem, []DispatchWarning) {
	items := []models.WorkItem{}
	if len(orders) == 0 {
		return items, nil
	}

	var warnings []DispatchWarning
	doctorName, patientName := s.displayName(ctx, appointment.DoctorID), s.displayName(ctx, appointment.PatientID)
	for _, order := range orders {
		item, err := s.dispatcher.Dispatch(ctx, WorkOrder{
			AppointmentID: appointment.ID,
			DoctorID:      appointment.DoctorID,
			DoctorName:    doctorName,
			PatientID:     appointment.PatientID,
			PatientName:   patientName,
			Kind:          order.Kind,
			TestType:      order.TestType,
			Observations:  order.Observations,
		})
		if err != nil {
			warnings = append(warnings, s.undispatched(ctx, appointment, order, err))
			continue
		}
		items = append(items, *item)
	}
	return items, warnings
}

// Delete removes an appointment nobody has acted on yet.
func (s *AppointmentService) Delete(ctx context.Context, caller Caller, id string) error {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() && appointment.PatientID != caller.ID {
		return forbidden("only the patient who booked the appointment can delete it")
	}
	if appointment.Status != s.graph.Initial() {
		return invalidTransition("delete", appointment.Status)
	}
	ok, err := s.store.DeleteIfMatch(ctx, appointment.ID, appointment.Status, appointment.Version)
	if err != nil {
		return internal("failed to delete appointment", err)
	}
	if !ok {
		return conflictingUpdate(appointment.ID)
	}
	s.log.Info("appointment deleted", zap.String("appointment_id", appointment.ID), zap.String("by", caller.ID))
	s.publish(ctx, EventAppointmentDeleted, appointment)
	return nil
}

// UpdatePayment settles a pending payment as completed or failed.
func (s *AppointmentService) UpdatePayment(ctx context.Context, caller Caller, id string, status models.PaymentStatus, amount *float64) (*models.Appointment, error) {
	if !caller.IsAdmin() {
		return nil, forbidden("only admins can record payments")
	}
	if status != models.PaymentCompleted && status != models.PaymentFailed {
		return nil, validationError("payment status must be %s or %s", models.PaymentCompleted, models.PaymentFailed)
	}
	if amount != nil && *amount < 0 {
		return nil, validationError("payment amount must not be negative")
	}
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.PaymentStatus != models.PaymentPending {
		return nil, &Error{
			Kind:    KindInvalidTransition,
			Message: fmt.Sprintf("payment is already %s", appointment.PaymentStatus),
			Details: map[string]interface{}{"current_status": appointment.PaymentStatus},
		}
	}

	prevStatus, prevVersion := appointment.Status, appointment.Version
	appointment.PaymentStatus = status
	if amount != nil {
		appointment.PaymentAmount = *amount
	}
	appointment.UpdatedAt = s.now()
	appointment.Version++
	if err := s.commit(ctx, appointment, prevStatus, prevVersion); err != nil {
		return nil, err
	}
	s.publish(ctx, EventPaymentUpdated, appointment)
	return appointment, nil
}

// Get returns an appointment visible to the caller.
func (s *AppointmentService) Get(ctx context.Context, caller Caller, id string) (*models.Appointment, error) {
	appointment, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, internal("failed to load appointment", err)
	}
	if appointment == nil {
		return nil, notFound("appointment", id)
	}
	if !caller.IsAdmin() && caller.ID != appointment.PatientID && caller.ID != appointment.DoctorID {
		return nil, forbidden("not allowed to view this appointment")
	}
	return appointment, nil
}

// ListByDoctor returns a doctor's appointments ordered by slot.
func (s *AppointmentService) ListByDoctor(ctx context.Context, caller Caller, doctorID string, status models.AppointmentStatus, date string) ([]models.Appointment, error) {
	if !caller.IsAdmin() && caller.ID != doctorID {
		return nil, forbidden("doctors can only list their own appointments")
	}
	query := models.AppointmentQuery{DoctorID: doctorID, OrderBySlot: true}
	if status != "" {
		query.Statuses = []models.AppointmentStatus{status}
	}
	if date != "" {
		day, err := NormalizeDate(date)
		if err != nil {
			return nil, validationError("date must be YYYY-MM-DD")
		}
		query.Date = day
	}
	return s.list(ctx, query)
}

// Schedule returns the doctor's upcoming commitments between from and to.
func (s *AppointmentService) Schedule(ctx context.Context, caller Caller, doctorID, from, to string) ([]models.Appointment, error) {
	if !caller.IsAdmin() && caller.ID != doctorID {
		return nil, forbidden("doctors can only view their own schedule")
	}
	query := models.AppointmentQuery{DoctorID: doctorID, OrderBySlot: true}
	query.Statuses = []models.AppointmentStatus{s.graph.Initial()}
	if s.graph.Mode() == config.WorkflowReview {
		query.Statuses = append(query.Statuses, models.StatusApproved)
	}
	var err error
	if query.From, query.To, err = dateRange(from, to); err != nil {
		return nil, err
	}
	return s.list(ctx, query)
}

// ListByPatient returns a patient's history, newest first.
func (s *AppointmentService) ListByPatient(ctx context.Context, caller Caller, patientID string) ([]models.Appointment, error) {
	if !caller.IsAdmin() && caller.ID != patientID {
		return nil, forbidden("patients can only view their own history")
	}
	return s.list(ctx, models.AppointmentQuery{PatientID: patientID})
}

// List pages through all appointments. Admin only.
func (s *AppointmentService) List(ctx context.Context, caller Caller, query models.AppointmentQuery) (*AppointmentPage, error) {
	if !caller.IsAdmin() {
		return nil, forbidden("only admins can list all appointments")
	}
	var err error
	if query.From, query.To, err = dateRange(query.From, query.To); err != nil {
		return nil, err
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit < 1 {
		query.Limit = defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}

	appointments, total, err := s.store.List(ctx, query)
	if err != nil {
		return nil, internal("failed to list appointments", err)
	}
	pages := int((total + int64(query.Limit) - 1) / int64(query.Limit))
	return &AppointmentPage{
		Appointments: appointments,
		Total:        total,
		Page:         query.Page,
		Limit:        query.Limit,
		Pages:        pages,
	}, nil
}

func (s *AppointmentService) list(ctx context.Context, query models.AppointmentQuery) ([]models.Appointment, error) {
	appointments, _, err := s.store.List(ctx, query)
	if err != nil {
		return nil, internal("failed to list appointments", err)
	}
	return appointments, nil
}

// transition reads the persisted record, checks the graph and writes the
// result conditionally on the status and version that were read.
func (s *AppointmentService) transition(
	ctx context.Context,
	id string,
	action Action,
	authorize func(*models.Appointment) error,
	apply func(*models.Appointment, time.Time),
) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(appointment); err != nil {
		return nil, err
	}
	next, err := s.graph.Next(action, appointment.Status)
	if err != nil {
		return nil, err
	}

	prevStatus, prevVersion := appointment.Status, appointment.Version
	now := s.now()
	appointment.Status = next
	appointment.UpdatedAt = now
	appointment.Version++
	apply(appointment, now)

	if err := s.commit(ctx, appointment, prevStatus, prevVersion); err != nil {
		return nil, err
	}
	s.log.Info("appointment transitioned",
		zap.String("appointment_id", appointment.ID),
		zap.String("action", string(action)),
		zap.String("from", string(prevStatus)),
		zap.String("to", string(next)))
	return appointment, nil
}

func (s *AppointmentService) commit(ctx context.Context, appointment *models.Appointment, status models.AppointmentStatus, version int) error {
	ok, err := s.store.UpdateIfMatch(ctx, appointment, status, version)
	if err != nil {
		return internal("failed to save appointment", err)
	}
	if !ok {
		return conflictingUpdate(appointment.ID)
	}
	return nil
}

func (s *AppointmentService) load(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.store.GetCurrent(ctx, id)
	if err != nil {
		return nil, internal("failed to load appointment", err)
	}
	if appointment == nil {
		return nil, notFound("appointment", id)
	}
	return appointment, nil
}

func (s *AppointmentService) authorizeReviewer(caller Caller) func(*models.Appointment) error {
	return func(a *models.Appointment) error {
		if caller.IsAdmin() || (caller.Role == models.RoleDoctor && caller.ID == a.DoctorID) {
			return nil
		}
		return forbidden("only the appointment's doctor or an admin can do this")
	}
}

func (s *AppointmentService) requireActiveDoctor(ctx context.Context, doctorID string) error {
	doctor, err := s.directory.GetUser(ctx, doctorID)
	if err != nil {
		return internal("failed to look up doctor", err)
	}
	if doctor == nil {
		return notFound("doctor", doctorID)
	}
	if doctor.Role != models.RoleDoctor {
		return &Error{
			Kind:    KindValidation,
			Message: "referenced user is not a doctor",
			Details: map[string]interface{}{"doctor_id": doctorID},
		}
	}
	if !doctor.IsActive() {
		return &Error{
			Kind:    KindValidation,
			Message: "doctor is not accepting appointments",
			Details: map[string]interface{}{"doctor_id": doctorID, "status": doctor.Status},
		}
	}
	return nil
}

func (s *AppointmentService) lockSlot(ctx context.Context, doctorID, date string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, fmt.Sprintf("slot_lock:%s:%s", doctorID, date))
	if err != nil {
		s.log.Warn("slot lock not acquired", zap.String("doctor_id", doctorID), zap.String("date", date), zap.Error(err))
		return nil, &Error{
			Kind:    KindConflictingUpdate,
			Message: "another booking for this doctor and day is in progress, retry",
			Details: map[string]interface{}{"doctor_id": doctorID, "date": date},
			Err:     err,
		}
	}
	return release, nil
}

func (s *AppointmentService) displayName(ctx context.Context, userID string) string {
	user, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		s.log.Warn("directory lookup failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if user == nil {
		return ""
	}
	return user.Name
}

func (s *AppointmentService) undispatched(ctx context.Context, appointment *models.Appointment, order models.Order, err error) DispatchWarning {
	warning := DispatchWarning{Order: order, Kind: KindOf(err), Message: "order could not be dispatched"}
	var e *Error
	if errors.As(err, &e) {
		warning.Message = e.Message
	}
	s.log.Warn("order not dispatched",
		zap.String("appointment_id", appointment.ID),
		zap.String("kind", string(order.Kind)),
		zap.String("test_type", order.TestType),
		zap.Error(err))

	if s.alerter != nil {
		subject := fmt.Sprintf("Undispatched %s order for appointment %s", order.Kind, appointment.ID)
		body := fmt.Sprintf("Appointment %s on %s at %s was completed but its %s order (%s) could not be assigned: %s",
			appointment.ID, appointment.Date, appointment.Time, order.Kind, order.TestType, warning.Message)
		if alertErr := s.alerter.Alert(ctx, subject, body); alertErr != nil {
			s.log.Error("failed to send operator alert", zap.String("appointment_id", appointment.ID), zap.Error(alertErr))
		}
	}
	s.publish(ctx, EventOrderUndispatched, map[string]interface{}{
		"appointment_id": appointment.ID,
		"order":          order,
		"kind":           warning.Kind,
	})
	return warning
}

func (s *AppointmentService) publish(ctx context.Context, event string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, payload); err != nil {
		s.log.Warn("failed to publish event", zap.String("event", event), zap.Error(err))
	}
}

func invalidTransition(action string, current models.AppointmentStatus) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot %s an appointment that is %s", action, current),
		Details: map[string]interface{}{"current_status": current, "action": action},
	}
}

func conflictingUpdate(id string) *Error {
	return &Error{
		Kind:    KindConflictingUpdate,
		Message: "appointment was modified concurrently, reload and retry",
		Details: map[string]interface{}{"appointment_id": id},
	}
}

func dateRange(from, to string) (string, string, error) {
	var err error
	if from != "" {
		if from, err = NormalizeDate(from); err != nil {
			return "", "", validationError("from must be YYYY-MM-DD")
		}
	}
	if to != "" {
		if to, err = NormalizeDate(to); err != nil {
			return "", "", validationError("to must be YYYY-MM-DD")
		}
	}
	if from != "" && to != "" && from > to {
		return "", "", validationError("from must not be after to")
	}
	return from, to, nil
}
