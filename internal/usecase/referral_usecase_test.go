package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"referharmony/config"
	"referharmony/internal/delivery/dto"
	"referharmony/internal/delivery/http/middleware"
	"referharmony/internal/domain/entity"
	"referharmony/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newTestDB returns a gorm handle backed by sqlmock. Repositories are
// faked, so the only SQL that reaches the mock is transaction control.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	return db, mock
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ctxAs builds a request context as the auth middleware would
func ctxAs(userID uuid.UUID, roleID int) context.Context {
	ctx := context.WithValue(context.Background(), middleware.UserIDKey, userID)
	return context.WithValue(ctx, middleware.RoleIDKey, roleID)
}

type userRepoMock struct {
	users     map[uuid.UUID]*entity.User
	createErr error // returned once by the next Create
}

func newUserRepoMock() *userRepoMock {
	return &userRepoMock{users: make(map[uuid.UUID]*entity.User)}
}

func (m *userRepoMock) add(user *entity.User) *entity.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users[user.ID] = user
	return user
}

func (m *userRepoMock) Create(db *gorm.DB, user *entity.User) error {
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return err
	}
	m.add(user)
	return nil
}

func (m *userRepoMock) FindByID(db *gorm.DB, id uuid.UUID) (*entity.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *userRepoMock) FindByEmail(db *gorm.DB, email string) (*entity.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *userRepoMock) Update(db *gorm.DB, user *entity.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *userRepoMock) FindProviders(db *gorm.DB, specialty string) ([]entity.User, error) {
	var out []entity.User
	for _, user := range m.users {
		if user.IsProvider() && (specialty == "" || user.Specialty == specialty) {
			out = append(out, *user)
		}
	}
	return out, nil
}

type referralRepoMock struct {
	mu          sync.Mutex
	referrals   map[uuid.UUID]*entity.Referral
	createErrs  []error // popped per Create call
	createCalls int
	lastFilter  *entity.ReferralFilter
	findAllOut  []entity.Referral
}

func newReferralRepoMock() *referralRepoMock {
	return &referralRepoMock{referrals: make(map[uuid.UUID]*entity.Referral)}
}

func (m *referralRepoMock) Create(db *gorm.DB, referral *entity.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if referral.ID == uuid.Nil {
		referral.ID = uuid.New()
	}
	copied := *referral
	m.referrals[referral.ID] = &copied
	return nil
}

func (m *referralRepoMock) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	referral, ok := m.referrals[id]
	if !ok {
		return nil, nil
	}
	copied := *referral
	return &copied, nil
}

func (m *referralRepoMock) FindAll(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.Referral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	return m.findAllOut, nil
}

func (m *referralRepoMock) Update(db *gorm.DB, referral *entity.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *referral
	m.referrals[referral.ID] = &copied
	return nil
}

func (m *referralRepoMock) CountByCreatedRange(db *gorm.DB, start, end time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, referral := range m.referrals {
		if !referral.CreatedAt.Before(start) && referral.CreatedAt.Before(end) {
			count++
		}
	}
	return count, nil
}

func (m *referralRepoMock) Count(db *gorm.DB, filter *entity.ReferralFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = filter
	return int64(len(m.referrals)), nil
}

func (m *referralRepoMock) CountByStatus(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.StatusCount, error) {
	return nil, nil
}

func (m *referralRepoMock) CountByUrgency(db *gorm.DB, filter *entity.ReferralFilter) ([]entity.UrgencyCount, error) {
	return nil, nil
}

func (m *referralRepoMock) AverageTimings(db *gorm.DB, filter *entity.ReferralFilter) (*entity.TimingAverages, error) {
	return &entity.TimingAverages{}, nil
}

type notificationLogRepoMock struct{}

func (notificationLogRepoMock) Create(db *gorm.DB, log *entity.NotificationLog) error { return nil }
func (notificationLogRepoMock) FindByReferralID(db *gorm.DB, referralID uuid.UUID) ([]entity.NotificationLog, error) {
	return nil, nil
}

type auditServiceMock struct {
	mu      sync.Mutex
	creates int
	updates int
}

func (m *auditServiceMock) LogCreate(ctx context.Context, tx *gorm.DB, userID *uuid.UUID, action string, entityName string, entityID string, newValue interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	return nil
}

func (m *auditServiceMock) LogUpdate(ctx context.Context, tx *gorm.DB, userID *uuid.UUID, action string, entityName string, entityID string, oldValue, newValue interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	return nil
}

type referralFixture struct {
	usecase      ReferralUsecase
	mock         sqlmock.Sqlmock
	userRepo     *userRepoMock
	referralRepo *referralRepoMock
	audit        *auditServiceMock
	dispatcher   *service.NotificationDispatcher

	patient   *entity.User
	referring *entity.User
	receiving *entity.User
}

func newReferralFixture(t *testing.T) *referralFixture {
	t.Helper()
	db, mock := newTestDB(t)
	log := testLogger()

	userRepo := newUserRepoMock()
	referralRepo := newReferralRepoMock()
	audit := &auditServiceMock{}

	// A Redis client pointed at a closed port exercises the counting
	// fallback for sequence allocation
	badRedis := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	sequence := service.NewSequenceService(db, badRedis, log, referralRepo)
	dispatcher := service.NewNotificationDispatcher(db, log, notificationLogRepoMock{}, nil, nil)

	f := &referralFixture{
		mock:         mock,
		userRepo:     userRepo,
		referralRepo: referralRepo,
		audit:        audit,
		dispatcher:   dispatcher,
	}
	f.patient = userRepo.add(&entity.User{
		RoleID:    entity.RoleIDPatient,
		Email:     "jane@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	f.referring = userRepo.add(&entity.User{
		RoleID:    entity.RoleIDProvider,
		Email:     "referring@example.com",
		FirstName: "Rob",
		LastName:  "Referring",
		Specialty: "Internal Medicine",
	})
	f.receiving = userRepo.add(&entity.User{
		RoleID:    entity.RoleIDProvider,
		Email:     "receiving@example.com",
		FirstName: "Cara",
		LastName:  "Cardiologist",
		Specialty: "Cardiology",
	})

	f.usecase = NewReferralUsecase(
		db, log,
		config.ReferralConfig{NumberRetries: 3},
		referralRepo, userRepo,
		service.NewMatchScorer(config.MatchConfig{
			InsurancePoints:    30,
			SameCityPoints:     30,
			SameStatePoints:    15,
			SpecialtyPoints:    20,
			AvailabilityPoints: 20,
		}),
		sequence, dispatcher, audit,
	)
	return f
}

func (f *referralFixture) createRequest() *dto.CreateReferralRequest {
	return &dto.CreateReferralRequest{
		PatientID:           f.patient.ID.String(),
		ReceivingProviderID: f.receiving.ID.String(),
		Specialty:           "Cardiology",
		Reason:              "Irregular heartbeat",
		Urgency:             "urgent",
		PatientInsurance:    &dto.InsuranceRequest{Provider: "Aetna", MemberID: "A123"},
	}
}

func TestCreateReferral_Success(t *testing.T) {
	f := newReferralFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), f.createRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != string(entity.ReferralStatusPending) {
		t.Errorf("expected pending, got %q", resp.Status)
	}
	if len(resp.Timeline) != 1 {
		t.Errorf("expected 1 timeline event, got %d", len(resp.Timeline))
	}
	want := entity.FormatReferralNumber(time.Now().UTC(), 1)
	if resp.ReferralNumber != want {
		t.Errorf("expected referral number %q, got %q", want, resp.ReferralNumber)
	}
	// Insurance 30 + specialty 20 + availability 20, no locations
	if resp.MatchScore != 70 {
		t.Errorf("expected match score 70, got %d", resp.MatchScore)
	}
	if f.audit.creates != 1 {
		t.Errorf("expected 1 audit entry, got %d", f.audit.creates)
	}
	f.dispatcher.Wait()
}

func TestCreateReferral_PatientNotFound(t *testing.T) {
	f := newReferralFixture(t)

	req := f.createRequest()
	req.PatientID = uuid.NewString()
	if _, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), req); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}

	// A provider cannot stand in as the patient
	req = f.createRequest()
	req.PatientID = f.receiving.ID.String()
	if _, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), req); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound for non-patient role, got %v", err)
	}
}

func TestCreateReferral_ReceivingMustBeProvider(t *testing.T) {
	f := newReferralFixture(t)

	req := f.createRequest()
	req.ReceivingProviderID = f.patient.ID.String()
	if _, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), req); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}

func TestCreateReferral_InvalidUrgency(t *testing.T) {
	f := newReferralFixture(t)

	req := f.createRequest()
	req.Urgency = "whenever"
	if _, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), req); !errors.Is(err, ErrInvalidUrgency) {
		t.Fatalf("expected ErrInvalidUrgency, got %v", err)
	}
}

func TestCreateReferral_DefaultsToRoutine(t *testing.T) {
	f := newReferralFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	req := f.createRequest()
	req.Urgency = ""
	resp, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Urgency != string(entity.UrgencyRoutine) {
		t.Errorf("expected routine urgency, got %q", resp.Urgency)
	}
	f.dispatcher.Wait()
}

func TestCreateReferral_RetriesOnNumberConflict(t *testing.T) {
	f := newReferralFixture(t)
	f.referralRepo.createErrs = []error{&pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_referrals_referral_number",
	}}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), f.createRequest())
	if err != nil {
		t.Fatalf("expected conflict to be retried, got %v", err)
	}
	if resp == nil || resp.ReferralNumber == "" {
		t.Fatal("expected a referral after retry")
	}
	if f.referralRepo.createCalls != 2 {
		t.Errorf("expected 2 insert attempts, got %d", f.referralRepo.createCalls)
	}
	f.dispatcher.Wait()
}

func TestCreateReferral_ExhaustsRetries(t *testing.T) {
	f := newReferralFixture(t)
	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "idx_referrals_referral_number"}
	f.referralRepo.createErrs = []error{conflict, conflict, conflict}

	for i := 0; i < 3; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
	}

	if _, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), f.createRequest()); !errors.Is(err, ErrNumberConflict) {
		t.Fatalf("expected ErrNumberConflict, got %v", err)
	}
	if f.referralRepo.createCalls != 3 {
		t.Errorf("expected 3 insert attempts, got %d", f.referralRepo.createCalls)
	}
}

func TestCreateReferral_OtherDBErrorIsNotRetried(t *testing.T) {
	f := newReferralFixture(t)
	f.referralRepo.createErrs = []error{errors.New("connection reset")}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	if _, err := f.usecase.CreateReferral(ctxAs(f.referring.ID, entity.RoleIDProvider), f.createRequest()); err == nil {
		t.Fatal("expected error to propagate")
	}
	if f.referralRepo.createCalls != 1 {
		t.Errorf("expected a single insert attempt, got %d", f.referralRepo.createCalls)
	}
}

func (f *referralFixture) seedReferral(t *testing.T) *entity.Referral {
	t.Helper()
	created := time.Now().UTC().Add(-4 * time.Hour)
	referral := &entity.Referral{
		ID:                  uuid.New(),
		ReferralNumber:      entity.FormatReferralNumber(created, 1),
		PatientID:           f.patient.ID,
		ReferringProviderID: f.referring.ID,
		ReceivingProviderID: f.receiving.ID,
		Specialty:           "Cardiology",
		Reason:              "Irregular heartbeat",
		Urgency:             entity.UrgencyUrgent,
		CreatedAt:           created,
	}
	referral.InitTimeline(created)
	f.referralRepo.referrals[referral.ID] = referral
	return referral
}

func TestUpdateStatus_AppendsTimelineAndMetrics(t *testing.T) {
	f := newReferralFixture(t)
	seeded := f.seedReferral(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.usecase.UpdateStatus(ctxAs(f.receiving.ID, entity.RoleIDProvider), seeded.ID, &dto.UpdateReferralStatusRequest{
		Status: "acknowledged",
		Note:   "will review",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Status != string(entity.ReferralStatusAcknowledged) {
		t.Errorf("expected acknowledged, got %q", resp.Status)
	}
	if len(resp.Timeline) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(resp.Timeline))
	}
	last := resp.Timeline[1]
	if last.Note != "will review" {
		t.Errorf("expected note on last event, got %q", last.Note)
	}
	if last.UpdatedBy == nil || *last.UpdatedBy != f.receiving.ID {
		t.Errorf("expected actor %s, got %v", f.receiving.ID, last.UpdatedBy)
	}
	if resp.TimeToAcknowledge == nil || *resp.TimeToAcknowledge < 3.9 || *resp.TimeToAcknowledge > 4.1 {
		t.Errorf("expected roughly 4h to acknowledge, got %v", resp.TimeToAcknowledge)
	}
	if f.audit.updates != 1 {
		t.Errorf("expected 1 audit entry, got %d", f.audit.updates)
	}

	// Persisted referral carries the same state
	stored, _ := f.referralRepo.FindByID(nil, seeded.ID)
	if stored.Status != entity.ReferralStatusAcknowledged {
		t.Errorf("expected stored status acknowledged, got %q", stored.Status)
	}
	f.dispatcher.Wait()
}

func TestUpdateStatus_SetsAppointmentFields(t *testing.T) {
	f := newReferralFixture(t)
	seeded := f.seedReferral(t)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.usecase.UpdateStatus(ctxAs(f.receiving.ID, entity.RoleIDProvider), seeded.ID, &dto.UpdateReferralStatusRequest{
		Status:              "scheduled",
		AppointmentDate:     "2025-04-03T10:00:00Z",
		AppointmentLocation: "Main Street Clinic",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.AppointmentDate == nil || !resp.AppointmentDate.Equal(time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected appointment date: %v", resp.AppointmentDate)
	}
	if resp.AppointmentLocation != "Main Street Clinic" {
		t.Errorf("unexpected appointment location: %q", resp.AppointmentLocation)
	}
	f.dispatcher.Wait()
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	f := newReferralFixture(t)
	seeded := f.seedReferral(t)

	if _, err := f.usecase.UpdateStatus(ctxAs(f.receiving.ID, entity.RoleIDProvider), seeded.ID, &dto.UpdateReferralStatusRequest{
		Status: "archived",
	}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatus_BadAppointmentDate(t *testing.T) {
	f := newReferralFixture(t)
	seeded := f.seedReferral(t)

	if _, err := f.usecase.UpdateStatus(ctxAs(f.receiving.ID, entity.RoleIDProvider), seeded.ID, &dto.UpdateReferralStatusRequest{
		Status:          "scheduled",
		AppointmentDate: "tomorrow",
	}); !errors.Is(err, ErrInvalidAppointmentDate) {
		t.Fatalf("expected ErrInvalidAppointmentDate, got %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	f := newReferralFixture(t)

	if _, err := f.usecase.UpdateStatus(ctxAs(f.receiving.ID, entity.RoleIDProvider), uuid.New(), &dto.UpdateReferralStatusRequest{
		Status: "acknowledged",
	}); !errors.Is(err, ErrReferralNotFound) {
		t.Fatalf("expected ErrReferralNotFound, got %v", err)
	}
}

func TestGetReferral_ParticipantAccess(t *testing.T) {
	f := newReferralFixture(t)
	seeded := f.seedReferral(t)

	// All three participants can read it
	for _, participant := range []struct {
		id   uuid.UUID
		role int
	}{
		{f.patient.ID, entity.RoleIDPatient},
		{f.referring.ID, entity.RoleIDProvider},
		{f.receiving.ID, entity.RoleIDProvider},
	} {
		if _, err := f.usecase.GetReferral(ctxAs(participant.id, participant.role), seeded.ID); err != nil {
			t.Errorf("expected participant %s to read the referral, got %v", participant.id, err)
		}
	}

	// A provider outside the referral cannot
	stranger := f.userRepo.add(&entity.User{RoleID: entity.RoleIDProvider, Email: "other@example.com"})
	if _, err := f.usecase.GetReferral(ctxAs(stranger.ID, entity.RoleIDProvider), seeded.ID); !errors.Is(err, ErrReferralNotAccessible) {
		t.Errorf("expected ErrReferralNotAccessible, got %v", err)
	}

	// Admins can read anything
	admin := f.userRepo.add(&entity.User{RoleID: entity.RoleIDAdmin, Email: "admin@example.com"})
	if _, err := f.usecase.GetReferral(ctxAs(admin.ID, entity.RoleIDAdmin), seeded.ID); err != nil {
		t.Errorf("expected admin access, got %v", err)
	}
}

func TestGetReferral_NotFound(t *testing.T) {
	f := newReferralFixture(t)

	if _, err := f.usecase.GetReferral(ctxAs(f.patient.ID, entity.RoleIDPatient), uuid.New()); !errors.Is(err, ErrReferralNotFound) {
		t.Fatalf("expected ErrReferralNotFound, got %v", err)
	}
}

func TestListReferrals_RoleScoping(t *testing.T) {
	f := newReferralFixture(t)

	// Patient listing is pinned to their own referrals
	if _, err := f.usecase.ListReferrals(ctxAs(f.patient.ID, entity.RoleIDPatient), &entity.ReferralFilter{Status: "pending"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filter := f.referralRepo.lastFilter
	if filter.PatientID == nil || *filter.PatientID != f.patient.ID {
		t.Errorf("expected patient scope, got %+v", filter)
	}
	if filter.Status != "pending" {
		t.Errorf("expected status filter preserved, got %q", filter.Status)
	}

	// Provider listing covers sent and received
	if _, err := f.usecase.ListReferrals(ctxAs(f.receiving.ID, entity.RoleIDProvider), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filter = f.referralRepo.lastFilter
	if filter.ParticipantID == nil || *filter.ParticipantID != f.receiving.ID {
		t.Errorf("expected participant scope, got %+v", filter)
	}
	if filter.PatientID != nil {
		t.Errorf("expected no patient scope for providers, got %+v", filter)
	}

	// Admin listing is unscoped
	admin := f.userRepo.add(&entity.User{RoleID: entity.RoleIDAdmin})
	if _, err := f.usecase.ListReferrals(ctxAs(admin.ID, entity.RoleIDAdmin), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	filter = f.referralRepo.lastFilter
	if filter.PatientID != nil || filter.ParticipantID != nil {
		t.Errorf("expected unscoped admin listing, got %+v", filter)
	}
}
