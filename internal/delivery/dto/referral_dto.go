package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type InsuranceRequest struct {
	Provider string `json:"provider" validate:"omitempty"`
	MemberID string `json:"member_id" validate:"omitempty"`
}

type CreateReferralRequest struct {
	PatientID           string            `json:"patient_id" validate:"required,uuid"`
	ReceivingProviderID string            `json:"receiving_provider_id" validate:"required,uuid"`
	Specialty           string            `json:"specialty" validate:"required"`
	Reason              string            `json:"reason" validate:"required"`
	ClinicalNotes       string            `json:"clinical_notes" validate:"omitempty"`
	Urgency             string            `json:"urgency" validate:"omitempty,oneof=routine urgent emergency"`
	PatientInsurance    *InsuranceRequest `json:"patient_insurance" validate:"omitempty"`
}

type UpdateReferralStatusRequest struct {
	Status              string `json:"status" validate:"required,oneof=pending acknowledged scheduled completed cancelled rejected"`
	Note                string `json:"note" validate:"omitempty"`
	AppointmentDate     string `json:"appointment_date" validate:"omitempty"` // Format: RFC 3339
	AppointmentLocation string `json:"appointment_location" validate:"omitempty"`
}

// Response DTOs

type TimelineEventResponse struct {
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Note      string     `json:"note,omitempty"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
}

type MatchingCriteriaResponse struct {
	InsuranceMatch    bool     `json:"insurance_match"`
	LocationDistance  *float64 `json:"location_distance"`
	AvailabilityMatch bool     `json:"availability_match"`
	SpecialtyMatch    bool     `json:"specialty_match"`
}

type ReferralResponse struct {
	ID                  uuid.UUID                 `json:"id"`
	ReferralNumber      string                    `json:"referral_number"`
	Status              string                    `json:"status"`
	Urgency             string                    `json:"urgency"`
	Specialty           string                    `json:"specialty"`
	Reason              string                    `json:"reason"`
	ClinicalNotes       string                    `json:"clinical_notes,omitempty"`
	Patient             *UserResponse             `json:"patient,omitempty"`
	ReferringProvider   *UserResponse             `json:"referring_provider,omitempty"`
	ReceivingProvider   *UserResponse             `json:"receiving_provider,omitempty"`
	AppointmentDate     *time.Time                `json:"appointment_date,omitempty"`
	AppointmentLocation string                    `json:"appointment_location,omitempty"`
	MatchScore          int                       `json:"match_score"`
	MatchingCriteria    *MatchingCriteriaResponse `json:"matching_criteria,omitempty"`
	Timeline            []TimelineEventResponse   `json:"timeline"`
	TimeToAcknowledge   *float64                  `json:"time_to_acknowledge,omitempty"`
	TimeToSchedule      *float64                  `json:"time_to_schedule,omitempty"`
	TimeToComplete      *float64                  `json:"time_to_complete,omitempty"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

type ReferralListResponse struct {
	Referrals []ReferralResponse `json:"referrals"`
	Total     int                `json:"total"`
}
