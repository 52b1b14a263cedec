package repository

import (
	"time"

	"referharmony/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReferralRepository interface {
	Create(db *gorm.DB, referral *entity.Referral) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Referral, error)
	FindAll(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.Referral, error)
	Update(db *gorm.DB, referral *entity.Referral) error

	// CountByCreatedRange counts referrals created in [start, end).
	// Feeds the monthly sequence when Redis has no counter yet.
	CountByCreatedRange(db *gorm.DB, start, end time.Time) (int64, error)

	// Analytics aggregations, all honoring the same filter semantics
	// as FindAll
	Count(db *gorm.DB, filter *entity.ReferralFilter) (int64, error)
	CountByStatus(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.StatusCount, error)
	CountByUrgency(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.UrgencyCount, error)
	AverageTimings(db *gorm.DB, filter *entity.ReferralFilter) (*entity.TimingAverages, error)
}
