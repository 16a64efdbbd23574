package repositories

import (
	"CareChain/models"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type WorkItemRepository struct {
	db *gorm.DB
}

func NewWorkItemRepository(db *gorm.DB) *WorkItemRepository {
	return &WorkItemRepository{db: db}
}

func (r *WorkItemRepository) Create(ctx context.Context, item *models.WorkItem) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create work item: %w", err)
	}
	return nil
}

func (r *WorkItemRepository) GetByID(ctx context.Context, id string) (*models.WorkItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var item models.WorkItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return &item, nil
}

// CompleteIfPending stores the report fields only while the row is pending.
func (r *WorkItemRepository) CompleteIfPending(ctx context.Context, item *models.WorkItem) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result := r.db.WithContext(ctx).
		Model(&models.WorkItem{}).
		Where("id = ? AND status = ?", item.ID, models.WorkPending).
		Updates(map[string]interface{}{
			"status":      item.Status,
			"report_type": item.ReportType,
			"findings":    item.Findings,
			"impression":  item.Impression,
			"report_ref":  item.ReportRef,
			"reported_at": item.ReportedAt,
			"updated_at":  item.UpdatedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete work item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountPending returns the number of pending items per technician.
func (r *WorkItemRepository) CountPending(ctx context.Context, technicianIDs []string) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		TechnicianID string
		Pending      int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.WorkItem{}).
		Select("technician_id, COUNT(*) AS pending").
		Where("technician_id IN ? AND status = ?", technicianIDs, models.WorkPending).
		Group("technician_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending work items: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.TechnicianID] = row.Pending
	}
	return counts, nil
}

func (r *WorkItemRepository) List(ctx context.Context, query models.WorkItemQuery) ([]models.WorkItem, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx := r.db.WithContext(ctx).Model(&models.WorkItem{})
	if query.TechnicianID != "" {
		tx = tx.Where("technician_id = ?", query.TechnicianID)
	}
	if query.AppointmentID != "" {
		tx = tx.Where("appointment_id = ?", query.AppointmentID)
	}
	if query.Status != "" {
		tx = tx.Where("status = ?", query.Status)
	}
	if query.Kind != "" {
		tx = tx.Where("kind = ?", query.Kind)
	}

	var items []models.WorkItem
	if err := tx.Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list work items: %w", err)
	}
	return items, nil
}
