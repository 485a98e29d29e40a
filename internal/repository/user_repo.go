package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// UserRepository provides access to school members.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	ListIDsByRole(ctx context.Context, role string) ([]uint, error)
	ListStudentsWithParents(ctx context.Context) ([]models.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) ListIDsByRole(ctx context.Context, role string) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", role).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *userRepository) ListStudentsWithParents(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", models.RoleStudent).
		Where("parent_email <> ''").
		Order("id ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}
