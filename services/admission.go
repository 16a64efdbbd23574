package services

import (
	"CareChain/models"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultConflictThreshold is the minimum separation, in minutes, between two
// appointments of the same doctor on the same day.
const DefaultConflictThreshold = 15

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

var timeFormats = []string{
	"15:04:05",
	"15:04",
	"3:04PM",
	"3:04 PM",
	"3PM",
	"3 PM",
	"3:04:05PM",
	"3:04:05 PM",
}

// NormalizeTime converts a wall-clock string into zero-padded "HH:MM".
func NormalizeTime(value string) (string, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if m := clockPattern.FindStringSubmatch(value); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%02d:%02d", h, mins), nil
	}
	for _, format := range timeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()), nil
		}
	}
	return "", fmt.Errorf("unsupported time format %q", value)
}

// MinutesSinceMidnight parses a wall-clock string.
func MinutesSinceMidnight(value string) (int, error) {
	normalized, err := NormalizeTime(value)
	if err != nil {
		return 0, err
	}
	t, err := time.Parse("15:04", normalized)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// NormalizeDate returns the calendar day of value as "YYYY-MM-DD". A full
// timestamp keeps the day as written; no timezone conversion is applied.
func NormalizeDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.Format("2006-01-02"), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unsupported date format %q", value)
}

// DoctorDayLister loads a doctor's appointments that still hold their slot.
type DoctorDayLister interface {
	ListActiveByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error)
}

// AdmissionChecker decides whether a proposed slot is free.
type AdmissionChecker struct {
	store     DoctorDayLister
	threshold int
	log       *zap.Logger
}

func NewAdmissionChecker(store DoctorDayLister, threshold int, log *zap.Logger) *AdmissionChecker {
	if threshold <= 0 {
		threshold = DefaultConflictThreshold
	}
	return &AdmissionChecker{store: store, threshold: threshold, log: log}
}

// CheckSlotAvailable returns nil when the doctor has no active appointment on
// date within the threshold of slot. The boundary is inclusive. exceptID
// excludes one appointment, used when rescheduling it.
func (c *AdmissionChecker) CheckSlotAvailable(ctx context.Context, doctorID, date, slot, exceptID string) error {
	proposed, err := MinutesSinceMidnight(slot)
	if err != nil {
		return &Error{
			Kind:    KindValidation,
			Message: "time must be a valid time of day",
			Details: map[string]interface{}{"time": slot},
		}
	}
	day, err := NormalizeDate(date)
	if err != nil {
		return &Error{
			Kind:    KindValidation,
			Message: "date must be YYYY-MM-DD",
			Details: map[string]interface{}{"date": date},
		}
	}

	existing, err := c.store.ListActiveByDoctorAndDate(ctx, doctorID, day)
	if err != nil {
		return internal("failed to load doctor schedule", err)
	}

	for _, appt := range existing {
		if appt.ID == exceptID {
			continue
		}
		booked, err := MinutesSinceMidnight(appt.Time)
		if err != nil {
			c.log.Error("stored appointment has unparsable time",
				zap.String("appointment_id", appt.ID), zap.String("time", appt.Time))
			return &Error{
				Kind:    KindValidation,
				Message: "existing appointment has an unparsable time",
				Details: map[string]interface{}{"appointment_id": appt.ID, "time": appt.Time},
			}
		}
		if abs(proposed-booked) <= c.threshold {
			return &Error{
				Kind:    KindSchedulingConflict,
				Message: fmt.Sprintf("doctor already has an appointment at %s", appt.Time),
				Details: map[string]interface{}{
					"appointment_id":   appt.ID,
					"conflicting_time": appt.Time,
					"date":             day,
				},
			}
		}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
