package repository

import (
	"referharmony/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationLogRepository interface {
	Create(db *gorm.DB, log *entity.NotificationLog) error
	FindByReferralID(db *gorm.DB, referralID uuid.UUID) ([]entity.NotificationLog, error)
}
