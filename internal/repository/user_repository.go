package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/utils"
	"gorm.io/gorm"
)

type UserRepository interface {
	BaseRepository[models.User]
	GetByEmail(ctx context.Context, email string, dest *models.User) error
	ListByRole(ctx context.Context, role models.Role, page utils.Page) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, fields map[string]any) error
}

type userRepository struct {
	BaseRepository[models.User]
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository[models.User](db), db: db}
}

func (r *userRepository) GetByEmail(ctx context.Context, email string, dest *models.User) error {
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(dest).Error; err != nil {
		return notFoundOr(err, "user not found", "get user by email failed")
	}
	return nil
}

// ListByRole pages through users of one role in creation order.
func (r *userRepository) ListByRole(ctx context.Context, role models.Role, page utils.Page) ([]models.User, error) {
	var out []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at ASC, id ASC").
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list users by role failed")
	}
	return out, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update user profile failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "user not found")
	}
	return nil
}
