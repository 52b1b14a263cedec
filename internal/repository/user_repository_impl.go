package repository

import (
	"errors"

	"referharmony/internal/domain/entity"
	domainRepo "referharmony/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct{}

func NewUserRepository() domainRepo.UserRepository {
	return &userRepository{}
}

func (r *userRepository) Create(db *gorm.DB, user *entity.User) error {
	return db.Create(user).Error
}

func (r *userRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	err := db.Preload("Role").Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(db *gorm.DB, email string) (*entity.User, error) {
	var user entity.User
	err := db.Preload("Role").Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(db *gorm.DB, user *entity.User) error {
	return db.Save(user).Error
}

func (r *userRepository) FindProviders(db *gorm.DB, specialty string) ([]entity.User, error) {
	var providers []entity.User
	query := db.Where("role_id = ? AND is_active = ?", entity.RoleIDProvider, true)
	if specialty != "" {
		query = query.Where("specialty ILIKE ?", "%"+specialty+"%")
	}
	err := query.Order("last_name ASC, first_name ASC").Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}
