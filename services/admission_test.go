package services

import (
	"CareChain/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeTime(t *testing.T) {
	cases := map[string]string{
		"10:00":       "10:00",
		"9:05":        "09:05",
		" 14:30 ":     "14:30",
		"14:30:59":    "14:30",
		"3:04PM":      "15:04",
		"3:04 pm":     "15:04",
		"3PM":         "15:00",
		"11 AM":       "11:00",
		"12:15:00 AM": "00:15",
	}
	for in, want := range cases {
		got, err := NormalizeTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "25:00", "10:60", "noon", "10.30"} {
		_, err := NormalizeTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeDate(t *testing.T) {
	got, err := NormalizeDate("2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", got)

	// the written day is kept, no conversion to local time
	got, err = NormalizeDate("2024-06-01T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", got)

	_, err = NormalizeDate("01/06/2024")
	assert.Error(t, err)
}

func newChecker(existing ...models.Appointment) *AdmissionChecker {
	store := newMemAppointments()
	for _, a := range existing {
		store.put(a)
	}
	return NewAdmissionChecker(store, DefaultConflictThreshold, zap.NewNop())
}

func booked(id, date, slot string, status models.AppointmentStatus) models.Appointment {
	return models.Appointment{ID: id, DoctorID: doctorID, PatientID: patientID, Date: date, Time: slot, Status: status}
}

func TestCheckSlotAvailable_InclusiveBoundary(t *testing.T) {
	checker := newChecker(booked("a1", "2024-06-01", "10:00", models.StatusPending))
	ctx := context.Background()

	err := checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "10:15", "")
	require.Error(t, err)
	assert.Equal(t, KindSchedulingConflict, KindOf(err))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "10:00", e.Details["conflicting_time"])
	assert.Equal(t, "a1", e.Details["appointment_id"])

	assert.NoError(t, checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "10:16", ""))
	assert.True(t, IsKind(checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "9:45", ""), KindSchedulingConflict))
	assert.NoError(t, checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "9:44", ""))
}

func TestCheckSlotAvailable_InactiveSlotsAreFree(t *testing.T) {
	ctx := context.Background()
	for _, status := range models.InactiveStatuses {
		checker := newChecker(booked("a1", "2024-06-01", "10:00", status))
		assert.NoError(t, checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "10:10", ""), status)
	}
	for _, status := range []models.AppointmentStatus{models.StatusPending, models.StatusScheduled, models.StatusApproved, models.StatusCompleted} {
		checker := newChecker(booked("a1", "2024-06-01", "10:00", status))
		assert.True(t, IsKind(checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "10:10", ""), KindSchedulingConflict), status)
	}
}

func TestCheckSlotAvailable_OtherDayOrDoctor(t *testing.T) {
	checker := newChecker(booked("a1", "2024-06-01", "10:00", models.StatusApproved))
	ctx := context.Background()

	assert.NoError(t, checker.CheckSlotAvailable(ctx, doctorID, "2024-06-02", "10:00", ""))
	assert.NoError(t, checker.CheckSlotAvailable(ctx, "doc-2", "2024-06-01", "10:00", ""))
}

func TestCheckSlotAvailable_ExceptSelf(t *testing.T) {
	checker := newChecker(booked("a1", "2024-06-01", "10:00", models.StatusPending))
	assert.NoError(t, checker.CheckSlotAvailable(context.Background(), doctorID, "2024-06-01", "10:05", "a1"))
}

func TestCheckSlotAvailable_MixedFormats(t *testing.T) {
	checker := newChecker(booked("a1", "2024-06-01", "2:00 PM", models.StatusPending))
	err := checker.CheckSlotAvailable(context.Background(), doctorID, "2024-06-01", "14:10", "")
	assert.True(t, IsKind(err, KindSchedulingConflict))
}

func TestCheckSlotAvailable_FailsClosedOnBadStoredTime(t *testing.T) {
	checker := newChecker(booked("broken", "2024-06-01", "ten o'clock", models.StatusPending))
	err := checker.CheckSlotAvailable(context.Background(), doctorID, "2024-06-01", "18:00", "")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCheckSlotAvailable_RejectsBadInput(t *testing.T) {
	checker := newChecker()
	ctx := context.Background()

	assert.True(t, IsKind(checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "later", ""), KindValidation))
	assert.True(t, IsKind(checker.CheckSlotAvailable(ctx, doctorID, "June 1st", "10:00", ""), KindValidation))
}

func TestNewAdmissionChecker_NonPositiveThresholdUsesDefault(t *testing.T) {
	store := newMemAppointments()
	store.put(booked("a1", "2024-06-01", "10:00", models.StatusPending))
	ctx := context.Background()

	for _, threshold := range []int{0, -5} {
		checker := NewAdmissionChecker(store, threshold, zap.NewNop())
		err := checker.CheckSlotAvailable(ctx, doctorID, "2024-06-01", "10:10", "")
		assert.Equal(t, KindSchedulingConflict, KindOf(err), "threshold %d", threshold)
	}
}
