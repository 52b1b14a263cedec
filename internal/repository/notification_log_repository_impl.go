package repository

import (
	"referharmony/internal/domain/entity"
	domainRepo "referharmony/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type notificationLogRepository struct{}

func NewNotificationLogRepository() domainRepo.NotificationLogRepository {
	return &notificationLogRepository{}
}

func (r *notificationLogRepository) Create(db *gorm.DB, log *entity.NotificationLog) error {
	return db.Create(log).Error
}

func (r *notificationLogRepository) FindByReferralID(db *gorm.DB, referralID uuid.UUID) ([]entity.NotificationLog, error) {
	var logs []entity.NotificationLog
	err := db.Where("referral_id = ?", referralID).Order("created_at ASC").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
