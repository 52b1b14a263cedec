package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"referharmony/config"
	"referharmony/internal/domain/entity"
	"referharmony/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// EmailSender delivers one email message
type EmailSender interface {
	Send(to, subject, body string) error
}

// SMSSender delivers one SMS message
type SMSSender interface {
	Send(to, body string) error
}

// SMTPEmailSender sends mail through the configured SMTP relay
type SMTPEmailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPEmailSender(cfg config.SMTPConfig) *SMTPEmailSender {
	return &SMTPEmailSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPEmailSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// TwilioSMSSender sends SMS through Twilio. NewTwilioSMSSender returns
// nil when credentials are absent or malformed; the dispatcher treats a
// nil sender as a disabled channel.
type TwilioSMSSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSMSSender(cfg config.TwilioConfig) *TwilioSMSSender {
	// Valid Twilio account SIDs start with "AC"
	if cfg.AccountSID == "" || cfg.AuthToken == "" || !strings.HasPrefix(cfg.AccountSID, "AC") {
		return nil
	}
	return &TwilioSMSSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		from: cfg.FromNumber,
	}
}

func (s *TwilioSMSSender) Send(to, body string) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)
	_, err := s.client.Api.CreateMessage(params)
	return err
}

// StatusUpdate is the data packet a transition hands to the dispatcher.
// It carries everything needed to render and route a message without
// reaching back into the referral.
type StatusUpdate struct {
	ReferralID      uuid.UUID
	ReferralNumber  string
	NewStatus       entity.ReferralStatus
	AppointmentDate *time.Time
	PatientEmail    string
	PatientPhone    string
	Prefs           entity.NotificationPrefs
	ProviderName    string
}

// ReferralCreated is the data packet for creation-time notifications
type ReferralCreated struct {
	ReferralID             uuid.UUID
	ReferralNumber         string
	Urgency                entity.Urgency
	PatientName            string
	PatientEmail           string
	PatientPrefs           entity.NotificationPrefs
	ReceivingProviderName  string
	ReceivingProviderEmail string
}

// NotificationDispatcher delivers status messages over email and SMS.
//
// Delivery is at-most-once and best-effort: every dispatch runs on its
// own goroutine, failures are logged and recorded but never propagate
// to the transition that triggered them.
type NotificationDispatcher struct {
	db      *gorm.DB
	log     *logrus.Logger
	logRepo repository.NotificationLogRepository
	email   EmailSender
	sms     SMSSender

	wg sync.WaitGroup
}

func NewNotificationDispatcher(
	db *gorm.DB,
	log *logrus.Logger,
	logRepo repository.NotificationLogRepository,
	email EmailSender,
	sms SMSSender,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		db:      db,
		log:     log,
		logRepo: logRepo,
		email:   email,
		sms:     sms,
	}
}

// statusMessage renders the patient-facing text for a status change
func statusMessage(status entity.ReferralStatus, appointmentDate *time.Time) string {
	switch status {
	case entity.ReferralStatusPending:
		return "Your referral has been created and is pending review."
	case entity.ReferralStatusAcknowledged:
		return "Your referral has been acknowledged by the receiving provider."
	case entity.ReferralStatusScheduled:
		when := "a future date"
		if appointmentDate != nil {
			when = appointmentDate.Format("January 2, 2006")
		}
		return fmt.Sprintf("Your appointment has been scheduled for %s.", when)
	case entity.ReferralStatusCompleted:
		return "Your referral appointment has been completed."
	case entity.ReferralStatusCancelled:
		return "Your referral has been cancelled."
	case entity.ReferralStatusRejected:
		return "Your referral has been rejected. Please contact your provider for more information."
	}
	return "Your referral status has been updated."
}

// DispatchStatusUpdate notifies the patient about a status change on the
// channels they opted into. Returns immediately; delivery happens in the
// background.
func (d *NotificationDispatcher) DispatchStatusUpdate(update StatusUpdate) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		message := statusMessage(update.NewStatus, update.AppointmentDate)
		subject := fmt.Sprintf("Referral %s Status Update", update.ReferralNumber)
		purpose := "status." + string(update.NewStatus)

		if update.Prefs.Email && update.PatientEmail != "" {
			d.sendEmail(update.ReferralID, update.PatientEmail, subject, message, purpose)
		}
		if update.Prefs.SMS && update.PatientPhone != "" {
			d.sendSMS(update.ReferralID, update.PatientPhone, message, purpose)
		}
	}()
}

// DispatchCreated notifies the receiving provider and the patient that
// a referral was created. Returns immediately.
func (d *NotificationDispatcher) DispatchCreated(created ReferralCreated) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if created.ReceivingProviderEmail != "" {
			d.sendEmail(
				created.ReferralID,
				created.ReceivingProviderEmail,
				"New Referral Received",
				fmt.Sprintf("You have received a new %s referral for %s.", created.Urgency, created.PatientName),
				"referral.received",
			)
		}

		if created.PatientPrefs.Email && created.PatientEmail != "" {
			d.sendEmail(
				created.ReferralID,
				created.PatientEmail,
				"Referral Created",
				fmt.Sprintf("Your referral to %s has been created.", created.ReceivingProviderName),
				"referral.created",
			)
		}
	}()
}

// Wait blocks until in-flight deliveries finish. Called during graceful
// shutdown.
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

func (d *NotificationDispatcher) sendEmail(referralID uuid.UUID, to, subject, body, purpose string) {
	if d.email == nil {
		d.log.Debugf("Email channel disabled, skipping notification to %s", to)
		return
	}
	sendErr := d.email.Send(to, subject, body)
	if sendErr != nil {
		d.log.Warnf("Failed to send email notification to %s: %+v", to, sendErr)
	}
	d.record(referralID, entity.NotificationChannelEmail, to, purpose, sendErr)
}

func (d *NotificationDispatcher) sendSMS(referralID uuid.UUID, to, body, purpose string) {
	if d.sms == nil {
		d.log.Debugf("SMS channel disabled, skipping notification to %s", to)
		return
	}
	sendErr := d.sms.Send(to, body)
	if sendErr != nil {
		d.log.Warnf("Failed to send SMS notification to %s: %+v", to, sendErr)
	}
	d.record(referralID, entity.NotificationChannelSMS, to, purpose, sendErr)
}

// record persists the delivery attempt. A failure here is logged and
// dropped; the log is audit data, not the source of truth.
func (d *NotificationDispatcher) record(referralID uuid.UUID, channel entity.NotificationChannel, recipient, purpose string, sendErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := &entity.NotificationLog{
		ReferralID: referralID,
		Channel:    channel,
		Recipient:  recipient,
		Purpose:    purpose,
		Delivered:  sendErr == nil,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}

	if err := d.logRepo.Create(d.db.WithContext(ctx), entry); err != nil {
		d.log.Warnf("Failed to record notification log for referral %s: %+v", referralID, err)
	}
}
