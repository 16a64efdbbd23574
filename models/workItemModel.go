package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkKind string

const (
	KindScan    WorkKind = "Scan"
	KindLabTest WorkKind = "Lab Test"
)

// StaffRole returns the technician specialty that handles the kind.
func (k WorkKind) StaffRole() (StaffRole, bool) {
	switch k {
	case KindScan:
		return StaffScan, true
	case KindLabTest:
		return StaffLab, true
	}
	return "", false
}

// Order is a scan or lab request written by the doctor during a consultation.
type Order struct {
	Kind         WorkKind `json:"kind"`
	TestType     string   `json:"test_type"`
	Observations string   `json:"observations,omitempty"`
}

func (o Order) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Kind, validation.Required, validation.In(KindScan, KindLabTest)),
		validation.Field(&o.TestType, validation.Required, validation.Length(1, 100)),
		validation.Field(&o.Observations, validation.Length(0, 2000)),
	)
}

type WorkStatus string

const (
	WorkPending   WorkStatus = "Pending"
	WorkCompleted WorkStatus = "Completed"
)

type ReportType string

const (
	ReportPreliminary ReportType = "Preliminary"
	ReportFinal       ReportType = "Final"
)

// WorkItem is a scan or lab request queued for one technician.
// Status is Completed exactly when ReportRef is set.
type WorkItem struct {
	ID            string     `gorm:"primaryKey;type:varchar(36);column:id" json:"id"`
	AppointmentID string     `gorm:"column:appointment_id;type:varchar(36);not null;index" json:"appointment_id"`
	DoctorID      string     `gorm:"column:doctor_id;type:varchar(36);not null" json:"doctor_id"`
	DoctorName    string     `gorm:"column:doctor_name;size:150" json:"doctor_name"`
	PatientID     string     `gorm:"column:patient_id;type:varchar(36);not null" json:"patient_id"`
	PatientName   string     `gorm:"column:patient_name;size:150" json:"patient_name"`
	TechnicianID  string     `gorm:"column:technician_id;type:varchar(36);not null;index:idx_technician_status" json:"technician_id"`
	Kind          WorkKind   `gorm:"column:kind;size:20;not null" json:"kind"`
	TestType      string     `gorm:"column:test_type;size:100;not null" json:"test_type"`
	Observations  string     `gorm:"column:observations;type:text" json:"observations,omitempty"`
	Status        WorkStatus `gorm:"column:status;size:20;not null;index:idx_technician_status" json:"status"`
	ReportType    ReportType `gorm:"column:report_type;size:20" json:"report_type,omitempty"`
	Findings      string     `gorm:"column:findings;type:text" json:"findings,omitempty"`
	Impression    string     `gorm:"column:impression;type:text" json:"impression,omitempty"`
	ReportRef     string     `gorm:"column:report_ref;size:500" json:"report_ref,omitempty"`
	ReportedAt    *time.Time `gorm:"column:reported_at" json:"reported_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (WorkItem) TableName() string {
	return "work_items"
}

func (w *WorkItem) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}
