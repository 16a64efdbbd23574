package services

import (
	"CareChain/config"
	"CareChain/models"
	"CareChain/utils"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Caller is the authenticated user behind a request.
type Caller struct {
	ID   string
	Role models.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// CreateAppointmentInput is the payload of an appointment request.
// PatientID is taken from the caller unless an admin books on behalf of a
// patient.
type CreateAppointmentInput struct {
	PatientID      string                 `json:"patient_id"`
	DoctorID       string                 `json:"doctor_id"`
	Date           string                 `json:"date"`
	Time           string                 `json:"time"`
	Duration       int                    `json:"duration"`
	Type           models.AppointmentType `json:"type"`
	Priority       models.Priority        `json:"priority"`
	Problem        string                 `json:"problem"`
	Symptoms       []string               `json:"symptoms"`
	MedicalHistory string                 `json:"medical_history"`
	Notes          string                 `json:"notes"`
	Attachments    []models.Attachment    `json:"attachments"`
	Orders         []models.Order         `json:"orders"`
	PaymentAmount  float64                `json:"payment_amount"`
}

// UpdateAppointmentInput changes the details of an appointment that has not
// been acted on yet. Nil fields are left as they are.
type UpdateAppointmentInput struct {
	Date           *string                 `json:"date"`
	Time           *string                 `json:"time"`
	Duration       *int                    `json:"duration"`
	Type           *models.AppointmentType `json:"type"`
	Priority       *models.Priority        `json:"priority"`
	Problem        *string                 `json:"problem"`
	Symptoms       []string                `json:"symptoms"`
	MedicalHistory *string                 `json:"medical_history"`
	Notes          *string                 `json:"notes"`
	Attachments    []models.Attachment     `json:"attachments"`
}

// ReportInput is a technician's result for a work item.
type ReportInput struct {
	ReportType models.ReportType `json:"report_type"`
	Findings   string            `json:"findings"`
	Impression string            `json:"impression"`
	ReportRef  string            `json:"report_ref"`
}

var (
	appointmentTypes = []interface{}{
		models.TypeConsultation, models.TypeFollowUp, models.TypeEmergency, models.TypeRoutineCheckup,
	}
	priorities = []interface{}{
		models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityEmergency,
	}
)

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}

func timeRule(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if _, err := NormalizeTime(s); err != nil {
		return errors.New("must be a valid time of day")
	}
	return nil
}

func dateRule(value interface{}) error {
	s := stringValue(value)
	if s == "" {
		return nil
	}
	if _, err := NormalizeDate(s); err != nil {
		return errors.New("must be a date in YYYY-MM-DD format")
	}
	return nil
}

func (in *CreateAppointmentInput) applyDefaults(cfg config.WorkflowConfig) {
	if in.Duration == 0 {
		in.Duration = cfg.DefaultDuration
	}
	if in.Type == "" {
		in.Type = models.TypeConsultation
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
}

func (in CreateAppointmentInput) validate(cfg config.WorkflowConfig) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.PatientID, validation.Required),
		validation.Field(&in.DoctorID, validation.Required),
		validation.Field(&in.Date, validation.Required, validation.By(dateRule)),
		validation.Field(&in.Time, validation.Required, validation.By(timeRule)),
		validation.Field(&in.Duration, validation.Min(cfg.MinDuration), validation.Max(cfg.MaxDuration)),
		validation.Field(&in.Type, validation.In(appointmentTypes...)),
		validation.Field(&in.Priority, validation.In(priorities...)),
		validation.Field(&in.Problem, validation.Required, validation.Length(1, 2000)),
		validation.Field(&in.Symptoms, validation.Each(validation.Length(1, 200))),
		validation.Field(&in.Attachments),
		validation.Field(&in.Orders),
		validation.Field(&in.PaymentAmount, validation.Min(0.0)),
	)
	return asValidationError(err, "invalid appointment request")
}

func (in UpdateAppointmentInput) validate(cfg config.WorkflowConfig) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Date, validation.NilOrNotEmpty, validation.By(dateRule)),
		validation.Field(&in.Time, validation.NilOrNotEmpty, validation.By(timeRule)),
		validation.Field(&in.Duration, validation.Min(cfg.MinDuration), validation.Max(cfg.MaxDuration)),
		validation.Field(&in.Type, validation.In(appointmentTypes...)),
		validation.Field(&in.Priority, validation.In(priorities...)),
		validation.Field(&in.Problem, validation.NilOrNotEmpty, validation.Length(1, 2000)),
		validation.Field(&in.Symptoms, validation.Each(validation.Length(1, 200))),
		validation.Field(&in.Attachments),
	)
	return asValidationError(err, "invalid appointment update")
}

func (in ReportInput) validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.ReportType, validation.In(models.ReportPreliminary, models.ReportFinal)),
		validation.Field(&in.Findings, validation.Required),
		validation.Field(&in.Impression, validation.Required),
		validation.Field(&in.ReportRef, validation.Required, validation.Length(1, 500)),
	)
	return asValidationError(err, "invalid report")
}

func asValidationError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Details: utils.ValidationDetails(err),
		Err:     err,
	}
}
