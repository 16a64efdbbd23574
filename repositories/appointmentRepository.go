package repositories

import (
	"CareChain/cache"
	"CareChain/models"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	AppointmentCacheExpiry = 10 * time.Minute
	queryTimeout           = 5 * time.Second
)

type AppointmentRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *zap.Logger
}

func NewAppointmentRepository(db *gorm.DB, cache *cache.Cache, log *zap.Logger) *AppointmentRepository {
	return &AppointmentRepository{db: db, cache: cache, log: log}
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(appointment).Error; err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// GetByID serves reads from the cache and falls back to the database.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cacheKey := r.getAppointmentCacheKey(id)
	if r.cache != nil {
		var cached models.Appointment
		found, err := r.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			r.log.Warn("failed to get appointment from cache", zap.String("appointment_id", id), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	appointment, err := r.GetCurrent(ctx, id)
	if err != nil || appointment == nil {
		return appointment, err
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, cacheKey, appointment, AppointmentCacheExpiry); err != nil {
			r.log.Warn("failed to set appointment in cache", zap.String("appointment_id", id), zap.Error(err))
		}
	}
	return appointment, nil
}

// GetCurrent reads the persisted row, bypassing the cache.
func (r *AppointmentRepository) GetCurrent(ctx context.Context, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.WithContext(ctx).First(&appointment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// UpdateIfMatch writes every column of appointment when the stored row still
// has the given status and version.
func (r *AppointmentRepository) UpdateIfMatch(ctx context.Context, appointment *models.Appointment, status models.AppointmentStatus, version int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ? AND version = ?", appointment.ID, status, version).
		Select("*").
		Omit("id", "created_at").
		Updates(appointment)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update appointment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	r.invalidate(ctx, appointment.ID)
	return true, nil
}

func (r *AppointmentRepository) DeleteIfMatch(ctx context.Context, id string, status models.AppointmentStatus, version int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ? AND version = ?", id, status, version).
		Delete(&models.Appointment{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete appointment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	r.invalidate(ctx, id)
	return true, nil
}

// ListActiveByDoctorAndDate returns the appointments that hold a slot of the
// doctor on the given day.
func (r *AppointmentRepository) ListActiveByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Select("id, doctor_id, date, time, status").
		Where("doctor_id = ? AND date = ? AND status NOT IN ?", doctorID, date, models.InactiveStatuses).
		Order("time ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list doctor appointments: %w", err)
	}
	return appointments, nil
}

func (r *AppointmentRepository) List(ctx context.Context, query models.AppointmentQuery) ([]models.Appointment, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx := r.db.WithContext(ctx).Model(&models.Appointment{})
	if query.DoctorID != "" {
		tx = tx.Where("doctor_id = ?", query.DoctorID)
	}
	if query.PatientID != "" {
		tx = tx.Where("patient_id = ?", query.PatientID)
	}
	if len(query.Statuses) > 0 {
		tx = tx.Where("status IN ?", query.Statuses)
	}
	if query.Priority != "" {
		tx = tx.Where("priority = ?", query.Priority)
	}
	if query.Date != "" {
		tx = tx.Where("date = ?", query.Date)
	}
	// dates are stored as YYYY-MM-DD so string order is calendar order
	if query.From != "" {
		tx = tx.Where("date >= ?", query.From)
	}
	if query.To != "" {
		tx = tx.Where("date <= ?", query.To)
	}

	var total int64
	if query.Limit > 0 {
		if err := tx.Count(&total).Error; err != nil {
			return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
		}
		tx = tx.Offset((query.Page - 1) * query.Limit).Limit(query.Limit)
	}

	if query.OrderBySlot {
		tx = tx.Order("date ASC").Order("time ASC")
	} else {
		tx = tx.Order("created_at DESC")
	}

	var appointments []models.Appointment
	if err := tx.Find(&appointments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list appointments: %w", err)
	}
	if query.Limit <= 0 {
		total = int64(len(appointments))
	}
	return appointments, total, nil
}

func (r *AppointmentRepository) invalidate(ctx context.Context, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, r.getAppointmentCacheKey(id)); err != nil {
		r.log.Warn("failed to delete appointment cache", zap.String("appointment_id", id), zap.Error(err))
	}
}

func (r *AppointmentRepository) getAppointmentCacheKey(id string) string {
	return fmt.Sprintf("appointment_cache:%s", id)
}
