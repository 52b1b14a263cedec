package usecase

import (
	"context"

	"referharmony/internal/converter"
	"referharmony/internal/delivery/dto"
	"referharmony/internal/delivery/http/middleware"
	"referharmony/internal/domain/entity"
	"referharmony/internal/domain/repository"
	"referharmony/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserUsecase interface {
	ListProviders(ctx context.Context, specialty string) (*dto.ProviderListResponse, error)
	UpdateProfile(ctx context.Context, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
}

type userUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	userRepo     repository.UserRepository
	auditService service.AuditService
}

func NewUserUsecase(db *gorm.DB, log *logrus.Logger, userRepo repository.UserRepository, auditService service.AuditService) UserUsecase {
	return &userUsecase{
		db:           db,
		log:          log,
		userRepo:     userRepo,
		auditService: auditService,
	}
}

// ListProviders returns active providers, optionally narrowed by
// specialty. Referring providers use this to find a receiving provider
// before creating a referral.
func (u *userUsecase) ListProviders(ctx context.Context, specialty string) (*dto.ProviderListResponse, error) {
	providers, err := u.userRepo.FindProviders(u.db.WithContext(ctx), specialty)
	if err != nil {
		u.log.Warnf("Failed to list providers: %+v", err)
		return nil, err
	}

	return &dto.ProviderListResponse{
		Providers: converter.UsersToResponses(providers),
		Total:     len(providers),
	}, nil
}

// UpdateProfile updates the mutable parts of the caller's own profile:
// phone, organization, location, and notification preferences.
func (u *userUsecase) UpdateProfile(ctx context.Context, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrUserNotFound
	}

	user, err := u.userRepo.FindByID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to find user %s: %+v", userID, err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	old := map[string]interface{}{
		"phone":        user.Phone,
		"organization": user.Organization,
	}

	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Organization != "" {
		user.Organization = req.Organization
	}
	if req.Location != nil {
		user.Location = locationFromRequest(req.Location)
	}
	if req.Notifications != nil {
		user.Notifications = entity.NotificationPrefs{
			Email: req.Notifications.Email,
			SMS:   req.Notifications.SMS,
		}
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.userRepo.Update(tx, user); err != nil {
		u.log.Warnf("Failed to update user %s: %+v", userID, err)
		return nil, err
	}

	if err := u.auditService.LogUpdate(ctx, tx, &userID, entity.AuditActionProfileUpdate,
		"user", userID.String(), old, map[string]interface{}{
			"phone":        user.Phone,
			"organization": user.Organization,
		}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return converter.UserToResponse(user), nil
}
