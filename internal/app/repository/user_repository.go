package repository

import (
	"context"
	"errors"

	"github.com/mkteagle/teaglink/internal/app/model"
	"gorm.io/gorm"
)

// ErrUserNotFound signals that the opaque user id is unknown to the store.
var ErrUserNotFound = errors.New("user not found")

// UserRepository is the read-side of the identity collaborator: the service
// only needs "does this id exist" and "is it an admin".
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	IsAdmin(ctx context.Context, id string) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a GORM-backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) IsAdmin(ctx context.Context, id string) (bool, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Role == model.RoleAdmin, nil
}
