package services

import (
	"CareChain/config"
	"CareChain/models"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// memAppointments is an in-memory AppointmentStore with the same conditional
// write semantics as the gorm repository.
type memAppointments struct {
	mu   sync.Mutex
	rows map[string]models.Appointment
	seq  int
	err  error
}

func newMemAppointments() *memAppointments {
	return &memAppointments{rows: make(map[string]models.Appointment)}
}

func cloneAppointment(a models.Appointment) models.Appointment {
	a.Symptoms = append(datatypes.JSONSlice[string](nil), a.Symptoms...)
	a.Attachments = append(datatypes.JSONSlice[models.Attachment](nil), a.Attachments...)
	a.Notifications = append(datatypes.JSONSlice[models.Notification](nil), a.Notifications...)
	a.Orders = append(datatypes.JSONSlice[models.Order](nil), a.Orders...)
	return a
}

func (m *memAppointments) put(a models.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Version == 0 {
		a.Version = 1
	}
	m.rows[a.ID] = cloneAppointment(a)
}

func (m *memAppointments) get(id string) models.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAppointment(m.rows[id])
}

func (m *memAppointments) Create(_ context.Context, a *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if a.ID == "" {
		m.seq++
		a.ID = fmt.Sprintf("appt-%d", m.seq)
	}
	m.rows[a.ID] = cloneAppointment(*a)
	return nil
}

func (m *memAppointments) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	return m.GetCurrent(ctx, id)
}

func (m *memAppointments) GetCurrent(_ context.Context, id string) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	a := cloneAppointment(row)
	return &a, nil
}

func (m *memAppointments) UpdateIfMatch(_ context.Context, a *models.Appointment, status models.AppointmentStatus, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[a.ID]
	if !ok || row.Status != status || row.Version != version {
		return false, nil
	}
	m.rows[a.ID] = cloneAppointment(*a)
	return true, nil
}

func (m *memAppointments) DeleteIfMatch(_ context.Context, id string, status models.AppointmentStatus, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != status || row.Version != version {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memAppointments) ListActiveByDoctorAndDate(_ context.Context, doctorID, date string) ([]models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	for _, a := range m.rows {
		if a.DoctorID != doctorID || a.Date != date {
			continue
		}
		if a.Status == models.StatusCancelled || a.Status == models.StatusRejected {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	return out, nil
}

func (m *memAppointments) List(_ context.Context, q models.AppointmentQuery) ([]models.Appointment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Appointment
	for _, a := range m.rows {
		if q.DoctorID != "" && a.DoctorID != q.DoctorID {
			continue
		}
		if q.PatientID != "" && a.PatientID != q.PatientID {
			continue
		}
		if q.Priority != "" && a.Priority != q.Priority {
			continue
		}
		if q.Date != "" && a.Date != q.Date {
			continue
		}
		if q.From != "" && a.Date < q.From {
			continue
		}
		if q.To != "" && a.Date > q.To {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, a.Status) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	total := int64(len(out))
	if q.Limit > 0 {
		start := (q.Page - 1) * q.Limit
		if start > len(out) {
			start = len(out)
		}
		end := start + q.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func containsStatus(list []models.AppointmentStatus, s models.AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memDirectory struct {
	users map[string]models.User
	order []string
}

func newMemDirectory(users ...models.User) *memDirectory {
	d := &memDirectory{users: make(map[string]models.User)}
	for _, u := range users {
		d.add(u)
	}
	return d
}

func (d *memDirectory) add(u models.User) {
	if u.Status == "" {
		u.Status = models.UserActive
	}
	if _, ok := d.users[u.ID]; !ok {
		d.order = append(d.order, u.ID)
	}
	d.users[u.ID] = u
}

func (d *memDirectory) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (d *memDirectory) ListActiveTechnicians(_ context.Context, staffRole models.StaffRole) ([]models.User, error) {
	var out []models.User
	for _, id := range d.order {
		u := d.users[id]
		if u.Role == models.RoleTechnician && u.StaffRole == staffRole && u.IsActive() {
			out = append(out, u)
		}
	}
	return out, nil
}

type memWorkItems struct {
	mu   sync.Mutex
	rows map[string]models.WorkItem
	ids  []string
	seq  int
}

func newMemWorkItems() *memWorkItems {
	return &memWorkItems{rows: make(map[string]models.WorkItem)}
}

func (m *memWorkItems) Create(_ context.Context, item *models.WorkItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == "" {
		m.seq++
		item.ID = fmt.Sprintf("work-%d", m.seq)
	}
	m.rows[item.ID] = *item
	m.ids = append(m.ids, item.ID)
	return nil
}

func (m *memWorkItems) GetByID(_ context.Context, id string) (*models.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *memWorkItems) CompleteIfPending(_ context.Context, item *models.WorkItem) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[item.ID]
	if !ok || row.Status != models.WorkPending {
		return false, nil
	}
	m.rows[item.ID] = *item
	return true, nil
}

func (m *memWorkItems) CountPending(_ context.Context, ids []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for _, item := range m.rows {
		if item.Status == models.WorkPending {
			counts[item.TechnicianID]++
		}
	}
	return counts, nil
}

func (m *memWorkItems) List(_ context.Context, q models.WorkItemQuery) ([]models.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorkItem
	for _, id := range m.ids {
		item := m.rows[id]
		if q.TechnicianID != "" && item.TechnicianID != q.TechnicianID {
			continue
		}
		if q.Status != "" && item.Status != q.Status {
			continue
		}
		if q.AppointmentID != "" && item.AppointmentID != q.AppointmentID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

type recordingAlerter struct {
	subjects []string
}

func (a *recordingAlerter) Alert(_ context.Context, subject, _ string) error {
	a.subjects = append(a.subjects, subject)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) Publish(_ context.Context, event string, _ interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string) (func(), error) {
	return nil, errors.New("lock is held by another request")
}

const (
	doctorID  = "doc-1"
	patientID = "pat-1"
	adminID   = "admin-1"
)

var (
	fixedNow = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

	patient = Caller{ID: patientID, Role: models.RolePatient}
	doctor  = Caller{ID: doctorID, Role: models.RoleDoctor}
	admin   = Caller{ID: adminID, Role: models.RoleAdmin}
)

type harness struct {
	svc        *AppointmentService
	dispatcher *DispatchService
	store      *memAppointments
	items      *memWorkItems
	directory  *memDirectory
	alerts     *recordingAlerter
	events     *recordingEvents
}

func workflowConfig(mode string) config.WorkflowConfig {
	return config.WorkflowConfig{
		Mode:              mode,
		ConflictThreshold: 15,
		MinDuration:       15,
		MaxDuration:       120,
		DefaultDuration:   30,
		CancelPolicy:      config.CancelPolicyStatus,
		CancelNotice:      24 * time.Hour,
		AssignmentPolicy:  config.AssignRoundRobin,
	}
}

func newHarness(t *testing.T, cfg config.WorkflowConfig, technicians ...models.User) *harness {
	t.Helper()
	h := &harness{
		store: newMemAppointments(),
		items: newMemWorkItems(),
		directory: newMemDirectory(
			models.User{ID: doctorID, Name: "Dr. Grey", Role: models.RoleDoctor},
			models.User{ID: patientID, Name: "Pat Doe", Role: models.RolePatient},
			models.User{ID: adminID, Name: "Admin", Role: models.RoleAdmin},
		),
		alerts: &recordingAlerter{},
		events: &recordingEvents{},
	}
	for _, tech := range technicians {
		h.directory.add(tech)
	}

	policy, err := NewAssignmentPolicy(cfg.AssignmentPolicy, h.items, nil)
	require.NoError(t, err)
	h.dispatcher = NewDispatchService(h.directory, h.items, policy, h.events, nil).
		WithClock(func() time.Time { return fixedNow })

	h.svc, err = NewAppointmentService(cfg, AppointmentServiceDeps{
		Store:      h.store,
		Directory:  h.directory,
		Dispatcher: h.dispatcher,
		Alerter:    h.alerts,
		Events:     h.events,
		Now:        func() time.Time { return fixedNow },
		Location:   time.UTC,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) book(t *testing.T, date, slot string) *models.Appointment {
	t.Helper()
	a, err := h.svc.Create(context.Background(), patient, CreateAppointmentInput{
		DoctorID: doctorID,
		Date:     date,
		Time:     slot,
		Problem:  "persistent headache",
	})
	require.NoError(t, err)
	return a
}

func technician(id string, role models.StaffRole) models.User {
	return models.User{ID: id, Name: "Tech " + id, Role: models.RoleTechnician, StaffRole: role, Status: models.UserActive}
}
