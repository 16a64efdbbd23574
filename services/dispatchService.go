package services

import (
	"CareChain/config"
	"CareChain/models"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WorkItemStore persists technician work items.
type WorkItemStore interface {
	Create(ctx context.Context, item *models.WorkItem) error
	// GetByID returns nil, nil when the id does not resolve.
	GetByID(ctx context.Context, id string) (*models.WorkItem, error)
	// CompleteIfPending stores the report only while the item is still
	// pending. It reports whether a row was written.
	CompleteIfPending(ctx context.Context, item *models.WorkItem) (bool, error)
	CountPending(ctx context.Context, technicianIDs []string) (map[string]int64, error)
	List(ctx context.Context, query models.WorkItemQuery) ([]models.WorkItem, error)
}

// Counter hands out increasing numbers per key.
type Counter interface {
	Next(ctx context.Context, key string) (int64, error)
}

// WorkOrder is a doctor's order enriched with the parties it concerns.
type WorkOrder struct {
	AppointmentID string
	DoctorID      string
	DoctorName    string
	PatientID     string
	PatientName   string
	Kind          models.WorkKind
	TestType      string
	Observations  string
}

// AssignmentPolicy chooses one technician among qualified candidates.
// candidates is never empty.
type AssignmentPolicy interface {
	Pick(ctx context.Context, staffRole models.StaffRole, candidates []models.User) (models.User, error)
}

type firstMatch struct{}

func (firstMatch) Pick(_ context.Context, _ models.StaffRole, candidates []models.User) (models.User, error) {
	return candidates[0], nil
}

type roundRobin struct {
	counter Counter
}

func (p roundRobin) Pick(ctx context.Context, staffRole models.StaffRole, candidates []models.User) (models.User, error) {
	n, err := p.counter.Next(ctx, "dispatch_rr:"+string(staffRole))
	if err != nil {
		return models.User{}, err
	}
	// counters start at 1
	idx := (n - 1) % int64(len(candidates))
	if idx < 0 {
		idx += int64(len(candidates))
	}
	return candidates[idx], nil
}

type leastLoaded struct {
	items WorkItemStore
}

// Pick returns the candidate with the fewest pending items; ties go to the
// earlier candidate.
func (p leastLoaded) Pick(ctx context.Context, _ models.StaffRole, candidates []models.User) (models.User, error) {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	load, err := p.items.CountPending(ctx, ids)
	if err != nil {
		return models.User{}, err
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if load[c.ID] < load[best.ID] {
			best = c
		}
	}
	return best, nil
}

// NewAssignmentPolicy builds the named policy. counter backs round robin;
// an in-process counter is used when it is nil.
func NewAssignmentPolicy(name string, items WorkItemStore, counter Counter) (AssignmentPolicy, error) {
	switch name {
	case config.AssignFirst:
		return firstMatch{}, nil
	case config.AssignRoundRobin, "":
		if counter == nil {
			counter = NewMemoryCounter()
		}
		return roundRobin{counter: counter}, nil
	case config.AssignLeastLoaded:
		return leastLoaded{items: items}, nil
	}
	return nil, fmt.Errorf("unknown assignment policy %q", name)
}

// MemoryCounter is a Counter local to the process.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

func (c *MemoryCounter) Next(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key]++
	return c.values[key], nil
}

// DispatchService routes orders to technicians and accepts their reports.
type DispatchService struct {
	directory Directory
	items     WorkItemStore
	policy    AssignmentPolicy
	events    EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewDispatchService(directory Directory, items WorkItemStore, policy AssignmentPolicy, events EventPublisher, log *zap.Logger) *DispatchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DispatchService{
		directory: directory,
		items:     items,
		policy:    policy,
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *DispatchService) WithClock(now func() time.Time) *DispatchService {
	s.now = now
	return s
}

// Dispatch assigns the order to an active technician of the matching staff
// role and queues a pending work item for them.
func (s *DispatchService) Dispatch(ctx context.Context, order WorkOrder) (*models.WorkItem, error) {
	staffRole, ok := order.Kind.StaffRole()
	if !ok {
		return nil, validationError("unknown order kind %q", order.Kind)
	}
	if order.TestType == "" {
		return nil, validationError("order test type is required")
	}

	candidates, err := s.directory.ListActiveTechnicians(ctx, staffRole)
	if err != nil {
		return nil, internal("failed to look up technicians", err)
	}
	if len(candidates) == 0 {
		return nil, &Error{
			Kind:    KindNoQualifiedTechnician,
			Message: fmt.Sprintf("no active %s available for %s", staffRole, order.TestType),
			Details: map[string]interface{}{"staff_role": staffRole, "test_type": order.TestType},
		}
	}
	technician, err := s.policy.Pick(ctx, staffRole, candidates)
	if err != nil {
		return nil, internal("failed to choose a technician", err)
	}

	now := s.now()
	item := &models.WorkItem{
		AppointmentID: order.AppointmentID,
		DoctorID:      order.DoctorID,
		DoctorName:    order.DoctorName,
		PatientID:     order.PatientID,
		PatientName:   order.PatientName,
		TechnicianID:  technician.ID,
		Kind:          order.Kind,
		TestType:      order.TestType,
		Observations:  order.Observations,
		Status:        models.WorkPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, internal("failed to queue work item", err)
	}

	s.log.Info("work item dispatched",
		zap.String("work_item_id", item.ID),
		zap.String("appointment_id", item.AppointmentID),
		zap.String("technician_id", item.TechnicianID),
		zap.String("kind", string(item.Kind)))
	s.publish(ctx, EventWorkItemDispatched, item)
	return item, nil
}

// SubmitReport completes a pending work item. Only the assigned technician
// or an admin may report, and only once.
func (s *DispatchService) SubmitReport(ctx context.Context, caller Caller, id string, report ReportInput) (*models.WorkItem, error) {
	if err := report.validate(); err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, internal("failed to load work item", err)
	}
	if item == nil {
		return nil, notFound("work item", id)
	}
	if !caller.IsAdmin() && caller.ID != item.TechnicianID {
		return nil, forbidden("only the assigned technician can report on this item")
	}
	if item.Status == models.WorkCompleted {
		return nil, alreadyCompleted(item)
	}

	now := s.now()
	item.Status = models.WorkCompleted
	item.ReportType = report.ReportType
	if item.ReportType == "" {
		item.ReportType = models.ReportFinal
	}
	item.Findings = report.Findings
	item.Impression = report.Impression
	item.ReportRef = report.ReportRef
	item.ReportedAt = &now
	item.UpdatedAt = now

	ok, err := s.items.CompleteIfPending(ctx, item)
	if err != nil {
		return nil, internal("failed to save report", err)
	}
	if !ok {
		// another submission won the race
		return nil, alreadyCompleted(item)
	}

	s.log.Info("work item reported",
		zap.String("work_item_id", item.ID),
		zap.String("technician_id", caller.ID))
	s.publish(ctx, EventWorkItemReported, item)
	return item, nil
}

// List returns work items. Technicians only see their own queue.
func (s *DispatchService) List(ctx context.Context, caller Caller, query models.WorkItemQuery) ([]models.WorkItem, error) {
	switch caller.Role {
	case models.RoleAdmin:
	case models.RoleTechnician:
		if query.TechnicianID != "" && query.TechnicianID != caller.ID {
			return nil, forbidden("technicians can only list their own queue")
		}
		query.TechnicianID = caller.ID
	default:
		return nil, forbidden("only technicians and admins can list work items")
	}
	if query.Status != "" && query.Status != models.WorkPending && query.Status != models.WorkCompleted {
		return nil, validationError("status must be %s or %s", models.WorkPending, models.WorkCompleted)
	}
	items, err := s.items.List(ctx, query)
	if err != nil {
		return nil, internal("failed to list work items", err)
	}
	return items, nil
}

func (s *DispatchService) publish(ctx context.Context, event string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event, payload); err != nil {
		s.log.Warn("failed to publish event", zap.String("event", event), zap.Error(err))
	}
}

func alreadyCompleted(item *models.WorkItem) *Error {
	return &Error{
		Kind:    KindAlreadyCompleted,
		Message: "a report has already been submitted for this work item",
		Details: map[string]interface{}{"work_item_id": item.ID},
	}
}
