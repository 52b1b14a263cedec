package repository

import (
	"errors"
	"time"

	"referharmony/internal/domain/entity"
	domainRepo "referharmony/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type referralRepository struct{}

func NewReferralRepository() domainRepo.ReferralRepository {
	return &referralRepository{}
}

func (r *referralRepository) Create(db *gorm.DB, referral *entity.Referral) error {
	return db.Create(referral).Error
}

func (r *referralRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Referral, error) {
	var referral entity.Referral
	err := db.Preload("Patient").Preload("ReferringProvider").Preload("ReceivingProvider").
		Where("id = ?", id).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

func (r *referralRepository) FindAll(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.Referral, error) {
	var referrals []entity.Referral
	err := applyFilter(db, filter).
		Preload("Patient").Preload("ReferringProvider").Preload("ReceivingProvider").
		Order("created_at DESC").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

func (r *referralRepository) Update(db *gorm.DB, referral *entity.Referral) error {
	return db.Save(referral).Error
}

func (r *referralRepository) CountByCreatedRange(db *gorm.DB, start, end time.Time) (int64, error) {
	var count int64
	err := db.Model(&entity.Referral{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}

func (r *referralRepository) Count(db *gorm.DB, filter *entity.ReferralFilter) (int64, error) {
	var count int64
	err := applyFilter(db.Model(&entity.Referral{}), filter).Count(&count).Error
	return count, err
}

func (r *referralRepository) CountByStatus(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.StatusCount, error) {
	var results []entity.StatusCount
	err := applyFilter(db.Model(&entity.Referral{}), filter).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *referralRepository) CountByUrgency(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.UrgencyCount, error) {
	var results []entity.UrgencyCount
	err := applyFilter(db.Model(&entity.Referral{}), filter).
		Select("urgency, COUNT(*) as count").
		Group("urgency").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *referralRepository) AverageTimings(db *gorm.DB, filter *entity.ReferralFilter) (*entity.TimingAverages, error) {
	var averages entity.TimingAverages
	err := applyFilter(db.Model(&entity.Referral{}), filter).
		Select(`
			AVG(time_to_acknowledge) as avg_time_to_acknowledge,
			AVG(time_to_schedule) as avg_time_to_schedule,
			AVG(time_to_complete) as avg_time_to_complete
		`).
		Scan(&averages).Error
	if err != nil {
		return nil, err
	}
	return &averages, nil
}

// applyFilter translates the domain filter into query conditions shared
// by listing and the analytics aggregations
func applyFilter(db *gorm.DB, filter *entity.ReferralFilter) *gorm.DB {
	if filter == nil {
		return db
	}
	if filter.PatientID != nil {
		db = db.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.ParticipantID != nil {
		db = db.Where("referring_provider_id = ? OR receiving_provider_id = ?",
			*filter.ParticipantID, *filter.ParticipantID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Urgency != "" {
		db = db.Where("urgency = ?", filter.Urgency)
	}
	if filter.Specialty != "" {
		db = db.Where("specialty = ?", filter.Specialty)
	}
	if filter.StartDate != nil {
		db = db.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("created_at <= ?", *filter.EndDate)
	}
	return db
}
