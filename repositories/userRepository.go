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

const UserCacheExpiry = 5 * time.Minute

// UserRepository reads the directory maintained by the identity service.
type UserRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	log   *zap.Logger
}

func NewUserRepository(db *gorm.DB, cache *cache.Cache, log *zap.Logger) *UserRepository {
	return &UserRepository{db: db, cache: cache, log: log}
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cacheKey := fmt.Sprintf("user_cache:%s", id)
	if r.cache != nil {
		var cached models.User
		found, err := r.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			r.log.Warn("failed to get user from cache", zap.String("user_id", id), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Select("id, name, email, role, status, staff_role, created_at").
		First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, cacheKey, user, UserCacheExpiry); err != nil {
			r.log.Warn("failed to set user in cache", zap.String("user_id", id), zap.Error(err))
		}
	}
	return &user, nil
}

// ListActiveTechnicians returns active technicians of a staff role in a
// stable order.
func (r *UserRepository) ListActiveTechnicians(ctx context.Context, staffRole models.StaffRole) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var users []models.User
	err := r.db.WithContext(ctx).
		Select("id, name, email, role, status, staff_role, created_at").
		Where("role = ? AND staff_role = ? AND status = ?", models.RoleTechnician, staffRole, models.UserActive).
		Order("created_at ASC").
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	return users, nil
}

// InvalidateUser drops the cached directory entry of the user.
func (r *UserRepository) InvalidateUser(ctx context.Context, id string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, fmt.Sprintf("user_cache:%s", id))
}

// InvalidateAllUsers drops every cached directory entry.
func (r *UserRepository) InvalidateAllUsers(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.DeletePattern(ctx, "user_cache:*")
}
