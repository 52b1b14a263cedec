package service

import (
	"referharmony/config"
	"referharmony/internal/domain/entity"
)

// Fixed proxy distances reported in the criteria breakdown. These are
// not computed distances; same-state is scored with a flat 50 until a
// real geodistance calculation replaces it.
const (
	sameCityDistance  = 0.0
	sameStateDistance = 50.0
)

// MatchResult is the outcome of scoring one patient/provider pair
type MatchResult struct {
	Score    int
	Criteria entity.MatchingCriteria
}

// MatchScorer ranks how well a receiving provider fits a patient.
// Scoring is additive over configured weights, deterministic, and free
// of side effects; the score is a display/ranking heuristic, not an
// eligibility gate.
type MatchScorer struct {
	weights config.MatchConfig
}

func NewMatchScorer(weights config.MatchConfig) *MatchScorer {
	return &MatchScorer{weights: weights}
}

// Score is the creation-path entry point. Callers have already filtered
// candidate providers by specialty, so that criterion is treated as
// satisfied here.
func (s *MatchScorer) Score(patient, provider *entity.User, insurance *entity.Insurance) MatchResult {
	return s.ScoreWithSpecialty(patient, provider, insurance, true)
}

// ScoreWithSpecialty scores a pair with an explicit specialty-match
// outcome, for callers outside the creation path.
func (s *MatchScorer) ScoreWithSpecialty(patient, provider *entity.User, insurance *entity.Insurance, specialtyMatched bool) MatchResult {
	score := 0
	criteria := entity.MatchingCriteria{}

	// Insurance
	if insurance != nil && insurance.Provider != "" {
		criteria.InsuranceMatch = true
		score += s.weights.InsurancePoints
	}

	// Location proximity. Skipped entirely when either side has no
	// location; distance stays nil.
	if patient != nil && provider != nil && patient.Location != nil && provider.Location != nil {
		pl, vl := patient.Location, provider.Location
		switch {
		case pl.City != "" && pl.City == vl.City:
			d := sameCityDistance
			criteria.LocationDistance = &d
			score += s.weights.SameCityPoints
		case pl.State != "" && pl.State == vl.State:
			// TODO: replace the flat state proxy with a real
			// geodistance once provider addresses are geocoded
			d := sameStateDistance
			criteria.LocationDistance = &d
			score += s.weights.SameStatePoints
		}
	}

	// Specialty
	if specialtyMatched {
		criteria.SpecialtyMatch = true
		score += s.weights.SpecialtyPoints
	}

	// Availability. No real availability data is modeled yet, the
	// weight is always awarded.
	criteria.AvailabilityMatch = true
	score += s.weights.AvailabilityPoints

	return MatchResult{Score: score, Criteria: criteria}
}
