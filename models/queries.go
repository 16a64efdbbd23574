package models

// AppointmentQuery filters appointment listings. Empty fields are ignored.
type AppointmentQuery struct {
	DoctorID  string
	PatientID string
	Statuses  []AppointmentStatus
	Priority  Priority
	Date      string
	// From and To bound Date inclusively.
	From string
	To   string
	// OrderBySlot sorts by date and time instead of newest first.
	OrderBySlot bool
	Page        int
	Limit       int
}

// WorkItemQuery filters technician queues.
type WorkItemQuery struct {
	TechnicianID  string
	AppointmentID string
	Status        WorkStatus
	Kind          WorkKind
}
