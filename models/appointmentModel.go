package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AppointmentStatus is a node of the appointment state graph.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusScheduled AppointmentStatus = "scheduled"
	StatusApproved  AppointmentStatus = "approved"
	StatusRejected  AppointmentStatus = "rejected"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// InactiveStatuses never occupy a doctor's time.
var InactiveStatuses = []AppointmentStatus{StatusCancelled, StatusRejected}

type AppointmentType string

const (
	TypeConsultation   AppointmentType = "consultation"
	TypeFollowUp       AppointmentType = "follow-up"
	TypeEmergency      AppointmentType = "emergency"
	TypeRoutineCheckup AppointmentType = "routine-checkup"
)

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityMedium    Priority = "medium"
	PriorityHigh      Priority = "high"
	PriorityEmergency Priority = "emergency"
)

// PaymentStatus moves pending -> completed | failed independently of the appointment status.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type NotificationType string

const (
	NotificationSubmitted NotificationType = "submitted"
	NotificationApproved  NotificationType = "approved"
	NotificationRejected  NotificationType = "rejected"
	NotificationCancelled NotificationType = "cancelled"
	NotificationCompleted NotificationType = "completed"
)

// Notification is an entry of the appointment's notification log. Delivery is
// handled outside this service.
type Notification struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
	SentAt  time.Time        `json:"sent_at"`
	Status  string           `json:"status"`
}

// Attachment is metadata for a file held by the attachment store.
type Attachment struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (a Attachment) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&a.URL, validation.Required, is.URL),
		validation.Field(&a.Size, validation.Min(int64(0))),
	)
}

// Appointment model
type Appointment struct {
	ID              string                            `gorm:"primaryKey;type:varchar(36);column:id" json:"id"`
	PatientID       string                            `gorm:"column:patient_id;type:varchar(36);not null;index" json:"patient_id"`
	DoctorID        string                            `gorm:"column:doctor_id;type:varchar(36);not null;index:idx_doctor_date" json:"doctor_id"`
	Date            string                            `gorm:"column:date;type:varchar(10);not null;index:idx_doctor_date" json:"date"`
	Time            string                            `gorm:"column:time;type:varchar(5);not null" json:"time"`
	Duration        int                               `gorm:"column:duration;not null" json:"duration"`
	Type            AppointmentType                   `gorm:"column:type;size:20;not null" json:"type"`
	Priority        Priority                          `gorm:"column:priority;size:20;not null;default:'medium'" json:"priority"`
	Problem         string                            `gorm:"column:problem;type:text;not null" json:"problem"`
	Symptoms        datatypes.JSONSlice[string]       `gorm:"column:symptoms" json:"symptoms"`
	MedicalHistory  string                            `gorm:"column:medical_history;type:text" json:"medical_history,omitempty"`
	Notes           string                            `gorm:"column:notes;type:text" json:"notes,omitempty"`
	Status          AppointmentStatus                 `gorm:"column:status;size:20;not null;index" json:"status"`
	RejectionReason *string                           `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time                        `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy      *string                           `gorm:"column:reviewed_by;type:varchar(36)" json:"reviewed_by,omitempty"`
	FollowUpNeeded  bool                              `gorm:"column:follow_up_needed;not null;default:false" json:"follow_up_needed"`
	PaymentAmount   float64                           `gorm:"column:payment_amount" json:"payment_amount"`
	PaymentStatus   PaymentStatus                     `gorm:"column:payment_status;size:20;not null;default:'pending'" json:"payment_status"`
	Attachments     datatypes.JSONSlice[Attachment]   `gorm:"column:attachments" json:"attachments"`
	Notifications   datatypes.JSONSlice[Notification] `gorm:"column:notifications" json:"notifications"`
	Orders          datatypes.JSONSlice[Order]        `gorm:"column:orders" json:"orders,omitempty"`
	Version         int                               `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt       time.Time                         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time                         `gorm:"column:updated_at" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// BeforeCreate assigns a UUID when the caller did not.
func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// Notify appends an entry to the notification log.
func (a *Appointment) Notify(kind NotificationType, message string, at time.Time) {
	a.Notifications = append(a.Notifications, Notification{
		Type:    kind,
		Message: message,
		SentAt:  at,
		Status:  "sent",
	})
}

// ScheduledAt resolves the timezone-naive date and time in loc.
func (a *Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
}
