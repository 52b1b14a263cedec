package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReferralStatus represents the workflow state of a referral
type ReferralStatus string

const (
	ReferralStatusPending      ReferralStatus = "pending"
	ReferralStatusAcknowledged ReferralStatus = "acknowledged"
	ReferralStatusScheduled    ReferralStatus = "scheduled"
	ReferralStatusCompleted    ReferralStatus = "completed"
	ReferralStatusCancelled    ReferralStatus = "cancelled"
	ReferralStatusRejected     ReferralStatus = "rejected"
)

// Urgency represents the priority tier of a referral, independent of status
type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

var (
	ErrUnknownStatus   = errors.New("unknown referral status")
	ErrUnknownUrgency  = errors.New("unknown referral urgency")
	ErrCorruptTimeline = errors.New("referral timeline is empty")
)

// IsValid reports whether the status is one of the fixed workflow states
func (s ReferralStatus) IsValid() bool {
	switch s {
	case ReferralStatusPending, ReferralStatusAcknowledged, ReferralStatusScheduled,
		ReferralStatusCompleted, ReferralStatusCancelled, ReferralStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are expected
func (s ReferralStatus) IsTerminal() bool {
	switch s {
	case ReferralStatusCompleted, ReferralStatusCancelled, ReferralStatusRejected:
		return true
	}
	return false
}

// IsValid reports whether the urgency is one of the fixed tiers
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyRoutine, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}

// validTransitions is the expected workflow graph. Transitions outside it
// are recorded anyway (providers do jump states in practice); callers can
// use CanTransitionTo to warn on off-graph jumps.
var validTransitions = map[ReferralStatus][]ReferralStatus{
	ReferralStatusPending:      {ReferralStatusAcknowledged, ReferralStatusCancelled, ReferralStatusRejected},
	ReferralStatusAcknowledged: {ReferralStatusScheduled, ReferralStatusCancelled, ReferralStatusRejected},
	ReferralStatusScheduled:    {ReferralStatusCompleted, ReferralStatusCancelled, ReferralStatusRejected},
}

// CanTransitionTo reports whether to is an expected next state from s
func (s ReferralStatus) CanTransitionTo(to ReferralStatus) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// TimelineEvent is one immutable status-change record
type TimelineEvent struct {
	Status    ReferralStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Note      string         `json:"note,omitempty"`
	UpdatedBy *uuid.UUID     `json:"updated_by,omitempty"`
}

// Timeline is the ordered, append-only status history stored as JSONB
type Timeline []TimelineEvent

// Value implements driver.Valuer for JSONB storage
func (t Timeline) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB storage
func (t *Timeline) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, t)
}

// MatchingCriteria is the per-criterion breakdown behind a match score.
// LocationDistance is nil when either side has no usable location.
type MatchingCriteria struct {
	InsuranceMatch    bool     `json:"insurance_match"`
	LocationDistance  *float64 `json:"location_distance"`
	AvailabilityMatch bool     `json:"availability_match"`
	SpecialtyMatch    bool     `json:"specialty_match"`
}

// Value implements driver.Valuer for JSONB storage
func (c MatchingCriteria) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB storage
func (c *MatchingCriteria) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, c)
}

// Insurance is the patient's coverage as supplied on the referral
type Insurance struct {
	Provider string `json:"provider,omitempty"`
	MemberID string `json:"member_id,omitempty"`
}

// Value implements driver.Valuer for JSONB storage
func (i *Insurance) Value() (driver.Value, error) {
	if i == nil {
		return nil, nil
	}
	return json.Marshal(i)
}

// Scan implements sql.Scanner for JSONB storage
func (i *Insurance) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, i)
}

// Referral represents one care-coordination request between providers
type Referral struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ReferralNumber      string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"referral_number"`
	PatientID           uuid.UUID `gorm:"type:uuid;not null;index" json:"patient_id"`
	ReferringProviderID uuid.UUID `gorm:"type:uuid;not null;index" json:"referring_provider_id"`
	ReceivingProviderID uuid.UUID `gorm:"type:uuid;not null;index" json:"receiving_provider_id"`

	Specialty     string         `gorm:"type:varchar(100);not null;index" json:"specialty"`
	Reason        string         `gorm:"type:text;not null" json:"reason"`
	ClinicalNotes string         `gorm:"type:text" json:"clinical_notes,omitempty"`
	Urgency       Urgency        `gorm:"type:varchar(20);not null;default:'routine';index" json:"urgency"`
	Status        ReferralStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	AppointmentDate     *time.Time `gorm:"type:timestamptz" json:"appointment_date,omitempty"`
	AppointmentLocation string     `gorm:"type:varchar(255)" json:"appointment_location,omitempty"`

	Timeline Timeline `gorm:"type:jsonb;not null" json:"timeline"`

	// Matching data, computed once at creation and never re-scored
	MatchScore       int              `gorm:"not null;default:0" json:"match_score"`
	MatchingCriteria MatchingCriteria `gorm:"type:jsonb" json:"matching_criteria"`
	PatientInsurance *Insurance       `gorm:"type:jsonb" json:"patient_insurance,omitempty"`

	// Timing metrics in hours, each set on the first entry into the
	// corresponding status and never overwritten
	TimeToAcknowledge *float64 `gorm:"type:double precision" json:"time_to_acknowledge,omitempty"`
	TimeToSchedule    *float64 `gorm:"type:double precision" json:"time_to_schedule,omitempty"`
	TimeToComplete    *float64 `gorm:"type:double precision" json:"time_to_complete,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Patient           User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	ReferringProvider User `gorm:"foreignKey:ReferringProviderID" json:"referring_provider,omitempty"`
	ReceivingProvider User `gorm:"foreignKey:ReceivingProviderID" json:"receiving_provider,omitempty"`
}

func (Referral) TableName() string {
	return "referrals"
}

// FormatReferralNumber builds the human-readable number for a creation
// time and monthly sequence: REF-<YYYYMM>-<sequence zero-padded to 5>.
func FormatReferralNumber(createdAt time.Time, sequence int64) string {
	return fmt.Sprintf("REF-%s-%05d", createdAt.Format("200601"), sequence)
}

// InitTimeline seeds the timeline with the synthetic creation event.
// Every referral starts pending; the first entry is never anything else.
func (r *Referral) InitTimeline(now time.Time) {
	r.Status = ReferralStatusPending
	r.Timeline = Timeline{{
		Status:    ReferralStatusPending,
		Timestamp: now,
		Note:      "Referral created",
	}}
}

// ApplyTransition appends a timeline event, moves the referral to
// newStatus, and derives the once-only timing metrics. It does not
// enforce the workflow graph; unknown statuses and corrupted timelines
// are rejected.
func (r *Referral) ApplyTransition(newStatus ReferralStatus, note string, actor *uuid.UUID, now time.Time) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, newStatus)
	}
	if len(r.Timeline) == 0 {
		return ErrCorruptTimeline
	}

	r.Timeline = append(r.Timeline, TimelineEvent{
		Status:    newStatus,
		Timestamp: now,
		Note:      note,
		UpdatedBy: actor,
	})
	r.Status = newStatus

	elapsed := now.Sub(r.CreatedAt).Hours()
	if elapsed < 0 {
		elapsed = 0
	}

	switch newStatus {
	case ReferralStatusAcknowledged:
		if r.TimeToAcknowledge == nil {
			r.TimeToAcknowledge = &elapsed
		}
	case ReferralStatusScheduled:
		if r.TimeToSchedule == nil {
			r.TimeToSchedule = &elapsed
		}
	case ReferralStatusCompleted:
		if r.TimeToComplete == nil {
			r.TimeToComplete = &elapsed
		}
	}

	return nil
}

// LastEvent returns the most recent timeline entry, nil when the
// timeline is empty.
func (r *Referral) LastEvent() *TimelineEvent {
	if len(r.Timeline) == 0 {
		return nil
	}
	return &r.Timeline[len(r.Timeline)-1]
}

// InvolvesUser reports whether the user participates in the referral
// as patient, referring provider, or receiving provider.
func (r *Referral) InvolvesUser(userID uuid.UUID) bool {
	return r.PatientID == userID || r.ReferringProviderID == userID || r.ReceivingProviderID == userID
}

// ReferralFilter is a domain-level filter for querying referrals.
// Used by repository layer to avoid coupling with delivery DTOs.
type ReferralFilter struct {
	PatientID     *uuid.UUID // restrict to a patient's own referrals
	ParticipantID *uuid.UUID // restrict to referrals a provider sent or received
	Status        string
	Urgency       string
	Specialty     string
	StartDate     *time.Time
	EndDate       *time.Time
}
