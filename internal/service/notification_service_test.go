package service

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"referharmony/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []string // "to|subject"
	err  error
}

func (f *fakeEmailSender) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+subject)
	return f.err
}

func (f *fakeEmailSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSMSSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSMSSender) Send(to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return f.err
}

func (f *fakeSMSSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type capturingLogRepo struct {
	mu      sync.Mutex
	entries []entity.NotificationLog
}

func (r *capturingLogRepo) Create(db *gorm.DB, log *entity.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *log)
	return nil
}

func (r *capturingLogRepo) FindByReferralID(db *gorm.DB, referralID uuid.UUID) ([]entity.NotificationLog, error) {
	return nil, nil
}

func (r *capturingLogRepo) all() []entity.NotificationLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.NotificationLog, len(r.entries))
	copy(out, r.entries)
	return out
}

func TestDispatchStatusUpdate_RespectsPrefs(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}
	logRepo := &capturingLogRepo{}
	d := NewNotificationDispatcher(newTestGormDB(t), newTestLogger(), logRepo, email, sms)

	d.DispatchStatusUpdate(StatusUpdate{
		ReferralID:     uuid.New(),
		ReferralNumber: "REF-202503-00001",
		NewStatus:      entity.ReferralStatusAcknowledged,
		PatientEmail:   "pat@example.com",
		PatientPhone:   "+15551234567",
		Prefs:          entity.NotificationPrefs{Email: true, SMS: false},
	})
	d.Wait()

	if email.count() != 1 {
		t.Errorf("expected 1 email, got %d", email.count())
	}
	if sms.count() != 0 {
		t.Errorf("expected no SMS with SMS opted out, got %d", sms.count())
	}

	entries := logRepo.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 delivery record, got %d", len(entries))
	}
	if entries[0].Channel != entity.NotificationChannelEmail {
		t.Errorf("expected email channel, got %q", entries[0].Channel)
	}
	if !entries[0].Delivered {
		t.Error("expected delivery to be recorded as successful")
	}
}

func TestDispatchStatusUpdate_BothChannels(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}
	d := NewNotificationDispatcher(newTestGormDB(t), newTestLogger(), &capturingLogRepo{}, email, sms)

	d.DispatchStatusUpdate(StatusUpdate{
		ReferralID:     uuid.New(),
		ReferralNumber: "REF-202503-00002",
		NewStatus:      entity.ReferralStatusScheduled,
		PatientEmail:   "pat@example.com",
		PatientPhone:   "+15551234567",
		Prefs:          entity.NotificationPrefs{Email: true, SMS: true},
	})
	d.Wait()

	if email.count() != 1 || sms.count() != 1 {
		t.Errorf("expected 1 email and 1 SMS, got %d and %d", email.count(), sms.count())
	}
}

func TestDispatchStatusUpdate_DisabledChannelIsSkipped(t *testing.T) {
	logRepo := &capturingLogRepo{}
	// Both senders nil: channels disabled, dispatch must not panic and
	// must not record anything
	d := NewNotificationDispatcher(newTestGormDB(t), newTestLogger(), logRepo, nil, nil)

	d.DispatchStatusUpdate(StatusUpdate{
		ReferralID:   uuid.New(),
		NewStatus:    entity.ReferralStatusCompleted,
		PatientEmail: "pat@example.com",
		PatientPhone: "+15551234567",
		Prefs:        entity.NotificationPrefs{Email: true, SMS: true},
	})
	d.Wait()

	if len(logRepo.all()) != 0 {
		t.Errorf("expected no delivery records for disabled channels, got %d", len(logRepo.all()))
	}
}

func TestDispatchStatusUpdate_RecordsFailure(t *testing.T) {
	email := &fakeEmailSender{err: errors.New("smtp: connection refused")}
	logRepo := &capturingLogRepo{}
	d := NewNotificationDispatcher(newTestGormDB(t), newTestLogger(), logRepo, email, nil)

	d.DispatchStatusUpdate(StatusUpdate{
		ReferralID:   uuid.New(),
		NewStatus:    entity.ReferralStatusCancelled,
		PatientEmail: "pat@example.com",
		Prefs:        entity.NotificationPrefs{Email: true},
	})
	d.Wait()

	entries := logRepo.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 delivery record, got %d", len(entries))
	}
	if entries[0].Delivered {
		t.Error("expected failed delivery to be recorded as undelivered")
	}
	if !strings.Contains(entries[0].Error, "connection refused") {
		t.Errorf("expected the send error on the record, got %q", entries[0].Error)
	}
}

func TestDispatchCreated_NotifiesProviderAndPatient(t *testing.T) {
	email := &fakeEmailSender{}
	d := NewNotificationDispatcher(newTestGormDB(t), newTestLogger(), &capturingLogRepo{}, email, nil)

	d.DispatchCreated(ReferralCreated{
		ReferralID:             uuid.New(),
		ReferralNumber:         "REF-202503-00003",
		Urgency:                entity.UrgencyUrgent,
		PatientName:            "Jane Doe",
		PatientEmail:           "jane@example.com",
		PatientPrefs:           entity.NotificationPrefs{Email: true},
		ReceivingProviderName:  "Dr. Smith",
		ReceivingProviderEmail: "smith@example.com",
	})
	d.Wait()

	if email.count() != 2 {
		t.Fatalf("expected provider and patient emails, got %d", email.count())
	}
}

func TestDispatchCreated_PatientOptedOut(t *testing.T) {
	email := &fakeEmailSender{}
	d := NewNotificationDispatcher(newTestGormDB(t), newTestLogger(), &capturingLogRepo{}, email, nil)

	d.DispatchCreated(ReferralCreated{
		ReferralID:             uuid.New(),
		PatientEmail:           "jane@example.com",
		PatientPrefs:           entity.NotificationPrefs{Email: false},
		ReceivingProviderEmail: "smith@example.com",
	})
	d.Wait()

	if email.count() != 1 {
		t.Errorf("expected only the provider email, got %d", email.count())
	}
}

func TestStatusMessage_ScheduledIncludesDate(t *testing.T) {
	date := time.Date(2025, time.April, 3, 10, 0, 0, 0, time.UTC)
	msg := statusMessage(entity.ReferralStatusScheduled, &date)
	if !strings.Contains(msg, "April 3, 2025") {
		t.Errorf("expected formatted appointment date in message, got %q", msg)
	}

	noDate := statusMessage(entity.ReferralStatusScheduled, nil)
	if !strings.Contains(noDate, "a future date") {
		t.Errorf("expected placeholder without a date, got %q", noDate)
	}
}
