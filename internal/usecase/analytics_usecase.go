package usecase

import (
	"context"
	"errors"

	"referharmony/internal/delivery/dto"
	"referharmony/internal/delivery/http/middleware"
	"referharmony/internal/domain/entity"
	"referharmony/internal/domain/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AnalyticsUsecase interface {
	Overview(ctx context.Context, filter *entity.ReferralFilter) (*dto.AnalyticsOverviewResponse, error)
}

type analyticsUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	referralRepo repository.ReferralRepository
}

func NewAnalyticsUsecase(db *gorm.DB, log *logrus.Logger, referralRepo repository.ReferralRepository) AnalyticsUsecase {
	return &analyticsUsecase{
		db:           db,
		log:          log,
		referralRepo: referralRepo,
	}
}

// Overview aggregates referral counts, status and urgency breakdowns,
// and average workflow timings. The aggregation is scoped the same way
// listing is: patients over their own referrals, providers over
// referrals they sent or received, admins over everything.
func (u *analyticsUsecase) Overview(ctx context.Context, filter *entity.ReferralFilter) (*dto.AnalyticsOverviewResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	if filter == nil {
		filter = &entity.ReferralFilter{}
	}

	roleID, _ := middleware.GetRoleIDFromContext(ctx)
	switch roleID {
	case entity.RoleIDPatient:
		filter.PatientID = &userID
	case entity.RoleIDProvider:
		filter.ParticipantID = &userID
	}

	db := u.db.WithContext(ctx)

	total, err := u.referralRepo.Count(db, filter)
	if err != nil {
		u.log.Warnf("Failed to count referrals: %+v", err)
		return nil, err
	}

	statusCounts, err := u.referralRepo.CountByStatus(db, filter)
	if err != nil {
		u.log.Warnf("Failed to aggregate referral statuses: %+v", err)
		return nil, err
	}

	urgencyCounts, err := u.referralRepo.CountByUrgency(db, filter)
	if err != nil {
		u.log.Warnf("Failed to aggregate referral urgencies: %+v", err)
		return nil, err
	}

	timings, err := u.referralRepo.AverageTimings(db, filter)
	if err != nil {
		u.log.Warnf("Failed to aggregate referral timings: %+v", err)
		return nil, err
	}

	overview := &dto.AnalyticsOverviewResponse{
		TotalReferrals:   total,
		StatusBreakdown:  make([]dto.StatusCountResponse, len(statusCounts)),
		UrgencyBreakdown: make([]dto.UrgencyCountResponse, len(urgencyCounts)),
	}
	for i, sc := range statusCounts {
		overview.StatusBreakdown[i] = dto.StatusCountResponse{Status: string(sc.Status), Count: sc.Count}
	}
	for i, uc := range urgencyCounts {
		overview.UrgencyBreakdown[i] = dto.UrgencyCountResponse{Urgency: string(uc.Urgency), Count: uc.Count}
	}
	if timings != nil {
		overview.AverageTimes = dto.AverageTimesResponse{
			AvgTimeToAcknowledge: timings.AvgTimeToAcknowledge,
			AvgTimeToSchedule:    timings.AvgTimeToSchedule,
			AvgTimeToComplete:    timings.AvgTimeToComplete,
		}
	}

	return overview, nil
}
