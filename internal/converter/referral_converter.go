package converter

import (
	"referharmony/internal/delivery/dto"
	"referharmony/internal/domain/entity"

	"github.com/google/uuid"
)

// ReferralToResponse converts a Referral entity to ReferralResponse DTO
func ReferralToResponse(referral *entity.Referral) *dto.ReferralResponse {
	if referral == nil {
		return nil
	}

	response := &dto.ReferralResponse{
		ID:                  referral.ID,
		ReferralNumber:      referral.ReferralNumber,
		Status:              string(referral.Status),
		Urgency:             string(referral.Urgency),
		Specialty:           referral.Specialty,
		Reason:              referral.Reason,
		ClinicalNotes:       referral.ClinicalNotes,
		AppointmentDate:     referral.AppointmentDate,
		AppointmentLocation: referral.AppointmentLocation,
		MatchScore:          referral.MatchScore,
		MatchingCriteria: &dto.MatchingCriteriaResponse{
			InsuranceMatch:    referral.MatchingCriteria.InsuranceMatch,
			LocationDistance:  referral.MatchingCriteria.LocationDistance,
			AvailabilityMatch: referral.MatchingCriteria.AvailabilityMatch,
			SpecialtyMatch:    referral.MatchingCriteria.SpecialtyMatch,
		},
		Timeline:          timelineToResponses(referral.Timeline),
		TimeToAcknowledge: referral.TimeToAcknowledge,
		TimeToSchedule:    referral.TimeToSchedule,
		TimeToComplete:    referral.TimeToComplete,
		CreatedAt:         referral.CreatedAt,
		UpdatedAt:         referral.UpdatedAt,
	}

	// Include participants only when preloaded
	if referral.Patient.ID != uuid.Nil {
		response.Patient = UserToResponse(&referral.Patient)
	}
	if referral.ReferringProvider.ID != uuid.Nil {
		response.ReferringProvider = UserToResponse(&referral.ReferringProvider)
	}
	if referral.ReceivingProvider.ID != uuid.Nil {
		response.ReceivingProvider = UserToResponse(&referral.ReceivingProvider)
	}

	return response
}

// ReferralsToResponses converts a slice of Referral entities to slice of ReferralResponse DTOs
func ReferralsToResponses(referrals []entity.Referral) []dto.ReferralResponse {
	responses := make([]dto.ReferralResponse, len(referrals))
	for i, referral := range referrals {
		resp := ReferralToResponse(&referral)
		if resp != nil {
			responses[i] = *resp
		}
	}
	return responses
}

func timelineToResponses(timeline entity.Timeline) []dto.TimelineEventResponse {
	events := make([]dto.TimelineEventResponse, len(timeline))
	for i, event := range timeline {
		events[i] = dto.TimelineEventResponse{
			Status:    string(event.Status),
			Timestamp: event.Timestamp,
			Note:      event.Note,
			UpdatedBy: event.UpdatedBy,
		}
	}
	return events
}
