package usecase

import (
	"context"
	"errors"
	"time"

	"referharmony/config"
	"referharmony/internal/converter"
	"referharmony/internal/delivery/dto"
	"referharmony/internal/delivery/http/middleware"
	"referharmony/internal/domain/entity"
	"referharmony/internal/domain/repository"
	"referharmony/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrReferralNotFound       = errors.New("referral not found")
	ErrReferralNotAccessible  = errors.New("referral does not involve you")
	ErrPatientNotFound        = errors.New("patient not found")
	ErrProviderNotFound       = errors.New("receiving provider not found")
	ErrInvalidStatus          = errors.New("invalid referral status")
	ErrInvalidUrgency         = errors.New("invalid referral urgency")
	ErrCorruptReferral        = errors.New("referral timeline is corrupted")
	ErrNumberConflict         = errors.New("could not allocate a unique referral number")
	ErrInvalidAppointmentDate = errors.New("invalid appointment date format, use RFC 3339")
	ErrInvalidDateRange       = errors.New("invalid date filter format, use RFC 3339")
)

type ReferralUsecase interface {
	CreateReferral(ctx context.Context, req *dto.CreateReferralRequest) (*dto.ReferralResponse, error)
	GetReferral(ctx context.Context, id uuid.UUID) (*dto.ReferralResponse, error)
	ListReferrals(ctx context.Context, filter *entity.ReferralFilter) (*dto.ReferralListResponse, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req *dto.UpdateReferralStatusRequest) (*dto.ReferralResponse, error)
}

type referralUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	cfg          config.ReferralConfig
	referralRepo repository.ReferralRepository
	userRepo     repository.UserRepository
	scorer       *service.MatchScorer
	sequence     *service.SequenceService
	dispatcher   *service.NotificationDispatcher
	auditService service.AuditService
}

func NewReferralUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	cfg config.ReferralConfig,
	referralRepo repository.ReferralRepository,
	userRepo repository.UserRepository,
	scorer *service.MatchScorer,
	sequence *service.SequenceService,
	dispatcher *service.NotificationDispatcher,
	auditService service.AuditService,
) ReferralUsecase {
	return &referralUsecase{
		db:           db,
		log:          log,
		cfg:          cfg,
		referralRepo: referralRepo,
		userRepo:     userRepo,
		scorer:       scorer,
		sequence:     sequence,
		dispatcher:   dispatcher,
		auditService: auditService,
	}
}

// CreateReferral creates a referral on behalf of the logged-in provider.
//
// Flow:
// 1. Resolve and role-check patient and receiving provider
// 2. Score the patient/provider match (once, never re-scored)
// 3. Allocate the monthly sequence and insert
// 4. On a referral-number collision, re-seed the sequence and retry
//    up to the configured bound
// 5. Fire creation notifications (non-blocking)
func (u *referralUsecase) CreateReferral(ctx context.Context, req *dto.CreateReferralRequest) (*dto.ReferralResponse, error) {
	referringID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, ErrPatientNotFound
	}
	receivingID, err := uuid.Parse(req.ReceivingProviderID)
	if err != nil {
		return nil, ErrProviderNotFound
	}

	// Step 1: Resolve participants; the lifecycle itself trusts these
	// references, so the role checks live here
	patient, err := u.userRepo.FindByID(u.db.WithContext(ctx), patientID)
	if err != nil {
		u.log.Warnf("Failed to find patient %s: %+v", patientID, err)
		return nil, err
	}
	if patient == nil || !patient.IsPatient() {
		return nil, ErrPatientNotFound
	}

	receiving, err := u.userRepo.FindByID(u.db.WithContext(ctx), receivingID)
	if err != nil {
		u.log.Warnf("Failed to find receiving provider %s: %+v", receivingID, err)
		return nil, err
	}
	if receiving == nil || !receiving.IsProvider() {
		return nil, ErrProviderNotFound
	}

	urgency := entity.Urgency(req.Urgency)
	if req.Urgency == "" {
		urgency = entity.UrgencyRoutine
	}
	if !urgency.IsValid() {
		return nil, ErrInvalidUrgency
	}

	var insurance *entity.Insurance
	if req.PatientInsurance != nil {
		insurance = &entity.Insurance{
			Provider: req.PatientInsurance.Provider,
			MemberID: req.PatientInsurance.MemberID,
		}
	}

	// Step 2: Match scoring; creation path, specialty already filtered
	match := u.scorer.Score(patient, receiving, insurance)

	// Steps 3-4: Allocate number and insert, retrying on collision.
	// A collision means the counter fell behind the table (Redis flush
	// or the count fallback racing), so re-seed before the next try.
	var referral *entity.Referral
	for attempt := 0; attempt < u.cfg.NumberRetries; attempt++ {
		now := time.Now().UTC()

		seq, err := u.sequence.Next(ctx, now)
		if err != nil {
			u.log.Warnf("Failed to allocate referral sequence: %+v", err)
			return nil, err
		}

		candidate := &entity.Referral{
			ReferralNumber:      entity.FormatReferralNumber(now, seq),
			PatientID:           patientID,
			ReferringProviderID: referringID,
			ReceivingProviderID: receivingID,
			Specialty:           req.Specialty,
			Reason:              req.Reason,
			ClinicalNotes:       req.ClinicalNotes,
			Urgency:             urgency,
			MatchScore:          match.Score,
			MatchingCriteria:    match.Criteria,
			PatientInsurance:    insurance,
			CreatedAt:           now,
		}
		candidate.InitTimeline(now)

		err = u.insertReferral(ctx, candidate, referringID)
		if err == nil {
			referral = candidate
			break
		}

		if isDuplicateKeyError(err, "referral_number") {
			u.log.Warnf("Referral number %s collided, re-seeding sequence (attempt %d)", candidate.ReferralNumber, attempt+1)
			if _, resyncErr := u.sequence.ResyncMonth(ctx, now); resyncErr != nil {
				u.log.Warnf("Failed to re-seed referral sequence: %+v", resyncErr)
			}
			continue
		}

		u.log.Errorf("Failed to create referral: %+v", err)
		return nil, err
	}

	if referral == nil {
		return nil, ErrNumberConflict
	}

	// Step 5: Creation notifications, best-effort
	u.dispatcher.DispatchCreated(service.ReferralCreated{
		ReferralID:             referral.ID,
		ReferralNumber:         referral.ReferralNumber,
		Urgency:                referral.Urgency,
		PatientName:            patient.FullName(),
		PatientEmail:           patient.Email,
		PatientPrefs:           patient.Notifications,
		ReceivingProviderName:  receiving.FullName(),
		ReceivingProviderEmail: receiving.Email,
	})

	// Reload with participants for the response
	full, err := u.referralRepo.FindByID(u.db.WithContext(ctx), referral.ID)
	if err != nil || full == nil {
		u.log.Warnf("Failed to reload referral %s: %+v", referral.ID, err)
		return converter.ReferralToResponse(referral), nil
	}

	u.log.Infof("Referral created: number=%s, patient=%s, receiving=%s, score=%d",
		referral.ReferralNumber, patientID, receivingID, referral.MatchScore)
	return converter.ReferralToResponse(full), nil
}

// insertReferral writes the referral and its audit entry in one
// transaction so a failed insert leaves no trail
func (u *referralUsecase) insertReferral(ctx context.Context, referral *entity.Referral, actorID uuid.UUID) error {
	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.referralRepo.Create(tx, referral); err != nil {
		return err
	}

	if err := u.auditService.LogCreate(ctx, tx, &actorID, entity.AuditActionReferralCreate,
		"referral", referral.ID.String(), map[string]interface{}{
			"referral_number": referral.ReferralNumber,
			"patient_id":      referral.PatientID.String(),
			"urgency":         string(referral.Urgency),
			"match_score":     referral.MatchScore,
		}); err != nil {
		return err
	}

	return tx.Commit().Error
}

// GetReferral loads one referral, restricted to its participants
// (admins see everything)
func (u *referralUsecase) GetReferral(ctx context.Context, id uuid.UUID) (*dto.ReferralResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	referral, err := u.referralRepo.FindByID(u.db.WithContext(ctx), id)
	if err != nil {
		u.log.Warnf("Failed to find referral %s: %+v", id, err)
		return nil, err
	}
	if referral == nil {
		return nil, ErrReferralNotFound
	}

	roleID, _ := middleware.GetRoleIDFromContext(ctx)
	if roleID != entity.RoleIDAdmin && !referral.InvolvesUser(userID) {
		return nil, ErrReferralNotAccessible
	}

	return converter.ReferralToResponse(referral), nil
}

// ListReferrals returns referrals visible to the caller: patients see
// their own, providers see referrals they sent or received, admins see
// all. The filter narrows by status/urgency/specialty/date range.
func (u *referralUsecase) ListReferrals(ctx context.Context, filter *entity.ReferralFilter) (*dto.ReferralListResponse, error) {
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

	referrals, err := u.referralRepo.FindAll(u.db.WithContext(ctx), filter)
	if err != nil {
		u.log.Warnf("Failed to list referrals for user %s: %+v", userID, err)
		return nil, err
	}

	return &dto.ReferralListResponse{
		Referrals: converter.ReferralsToResponses(referrals),
		Total:     len(referrals),
	}, nil
}

// UpdateStatus moves a referral to a new status.
//
// Every change is recorded on the timeline with actor attribution; the
// workflow graph is advisory, so off-graph jumps are logged but not
// rejected. Statuses outside the enum are rejected. The patient
// notification fires after commit and never affects the outcome.
func (u *referralUsecase) UpdateStatus(ctx context.Context, id uuid.UUID, req *dto.UpdateReferralStatusRequest) (*dto.ReferralResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("user not found in context")
	}

	referral, err := u.referralRepo.FindByID(u.db.WithContext(ctx), id)
	if err != nil {
		u.log.Warnf("Failed to find referral %s: %+v", id, err)
		return nil, err
	}
	if referral == nil {
		return nil, ErrReferralNotFound
	}

	newStatus := entity.ReferralStatus(req.Status)
	oldStatus := referral.Status

	if !oldStatus.CanTransitionTo(newStatus) {
		u.log.Warnf("Referral %s: unexpected transition %s -> %s by user %s",
			referral.ReferralNumber, oldStatus, newStatus, userID)
	}

	if req.AppointmentDate != "" {
		appointmentDate, err := time.Parse(time.RFC3339, req.AppointmentDate)
		if err != nil {
			return nil, ErrInvalidAppointmentDate
		}
		referral.AppointmentDate = &appointmentDate
	}
	if req.AppointmentLocation != "" {
		referral.AppointmentLocation = req.AppointmentLocation
	}

	if err := referral.ApplyTransition(newStatus, req.Note, &userID, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, entity.ErrUnknownStatus):
			return nil, ErrInvalidStatus
		case errors.Is(err, entity.ErrCorruptTimeline):
			u.log.Errorf("Referral %s has an empty timeline", referral.ReferralNumber)
			return nil, ErrCorruptReferral
		}
		return nil, err
	}

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.referralRepo.Update(tx, referral); err != nil {
		u.log.Warnf("Failed to update referral %s: %+v", id, err)
		return nil, err
	}

	if err := u.auditService.LogUpdate(ctx, tx, &userID, entity.AuditActionReferralStatusUpdate,
		"referral", referral.ID.String(),
		map[string]interface{}{"status": string(oldStatus)},
		map[string]interface{}{"status": string(newStatus), "note": req.Note},
	); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	// Notify the patient after commit; the transition is the source of
	// truth regardless of delivery outcome
	u.dispatcher.DispatchStatusUpdate(service.StatusUpdate{
		ReferralID:      referral.ID,
		ReferralNumber:  referral.ReferralNumber,
		NewStatus:       newStatus,
		AppointmentDate: referral.AppointmentDate,
		PatientEmail:    referral.Patient.Email,
		PatientPhone:    referral.Patient.Phone,
		Prefs:           referral.Patient.Notifications,
		ProviderName:    referral.ReceivingProvider.FullName(),
	})

	u.log.Infof("Referral status updated: number=%s, %s -> %s", referral.ReferralNumber, oldStatus, newStatus)
	return converter.ReferralToResponse(referral), nil
}
