package service

import (
	"testing"

	"referharmony/config"
	"referharmony/internal/domain/entity"
)

func defaultWeights() config.MatchConfig {
	return config.MatchConfig{
		InsurancePoints:    30,
		SameCityPoints:     30,
		SameStatePoints:    15,
		SpecialtyPoints:    20,
		AvailabilityPoints: 20,
	}
}

func userAt(city, state string) *entity.User {
	return &entity.User{Location: &entity.Location{City: city, State: state}}
}

func TestScore_FullMatch(t *testing.T) {
	s := NewMatchScorer(defaultWeights())

	patient := userAt("Springfield", "IL")
	provider := userAt("Springfield", "IL")
	insurance := &entity.Insurance{Provider: "Aetna", MemberID: "A123"}

	result := s.Score(patient, provider, insurance)

	if result.Score != 100 {
		t.Errorf("expected score 100, got %d", result.Score)
	}
	if !result.Criteria.InsuranceMatch {
		t.Error("expected insurance match")
	}
	if !result.Criteria.SpecialtyMatch {
		t.Error("expected specialty match on the creation path")
	}
	if !result.Criteria.AvailabilityMatch {
		t.Error("expected availability match")
	}
	if result.Criteria.LocationDistance == nil || *result.Criteria.LocationDistance != 0 {
		t.Errorf("expected same-city distance 0, got %v", result.Criteria.LocationDistance)
	}
}

func TestScore_SameStateOnly(t *testing.T) {
	s := NewMatchScorer(defaultWeights())

	patient := userAt("Springfield", "MO")
	provider := userAt("Kansas City", "MO")

	// No insurance: 15 state + 20 specialty + 20 availability
	result := s.Score(patient, provider, nil)

	if result.Score != 55 {
		t.Errorf("expected score 55, got %d", result.Score)
	}
	if result.Criteria.InsuranceMatch {
		t.Error("expected no insurance match without coverage")
	}
	if result.Criteria.LocationDistance == nil || *result.Criteria.LocationDistance != 50 {
		t.Errorf("expected same-state distance 50, got %v", result.Criteria.LocationDistance)
	}
}

func TestScore_NoLocation(t *testing.T) {
	s := NewMatchScorer(defaultWeights())

	patient := &entity.User{}
	provider := userAt("Springfield", "IL")

	result := s.Score(patient, provider, &entity.Insurance{Provider: "Cigna"})

	// 30 insurance + 20 specialty + 20 availability, no location points
	if result.Score != 70 {
		t.Errorf("expected score 70, got %d", result.Score)
	}
	if result.Criteria.LocationDistance != nil {
		t.Errorf("expected nil distance when a side has no location, got %v", result.Criteria.LocationDistance)
	}
}

func TestScore_EmptyCityDoesNotMatch(t *testing.T) {
	s := NewMatchScorer(defaultWeights())

	// Both sides have a location but city is blank on both; blank must
	// not count as equal
	patient := userAt("", "IL")
	provider := userAt("", "CA")

	result := s.Score(patient, provider, nil)

	if result.Criteria.LocationDistance != nil {
		t.Errorf("expected no location match on blank cities, got %v", result.Criteria.LocationDistance)
	}
	if result.Score != 40 {
		t.Errorf("expected score 40, got %d", result.Score)
	}
}

func TestScore_EmptyInsuranceProvider(t *testing.T) {
	s := NewMatchScorer(defaultWeights())

	result := s.Score(&entity.User{}, &entity.User{}, &entity.Insurance{MemberID: "X1"})

	if result.Criteria.InsuranceMatch {
		t.Error("expected no insurance match without a provider name")
	}
}

func TestScoreWithSpecialty_NotMatched(t *testing.T) {
	s := NewMatchScorer(defaultWeights())

	result := s.ScoreWithSpecialty(&entity.User{}, &entity.User{}, nil, false)

	if result.Criteria.SpecialtyMatch {
		t.Error("expected no specialty match")
	}
	// Availability only
	if result.Score != 20 {
		t.Errorf("expected score 20, got %d", result.Score)
	}
}

func TestScore_ConfiguredWeights(t *testing.T) {
	s := NewMatchScorer(config.MatchConfig{
		InsurancePoints:    50,
		SameCityPoints:     10,
		SameStatePoints:    5,
		SpecialtyPoints:    25,
		AvailabilityPoints: 15,
	})

	patient := userAt("Springfield", "IL")
	provider := userAt("Springfield", "IL")

	result := s.Score(patient, provider, &entity.Insurance{Provider: "Aetna"})

	if result.Score != 100 {
		t.Errorf("expected configured weights to sum to 100, got %d", result.Score)
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := NewMatchScorer(defaultWeights())

	patient := userAt("Springfield", "IL")
	provider := userAt("Springfield", "IL")
	insurance := &entity.Insurance{Provider: "Aetna"}

	first := s.Score(patient, provider, insurance)
	for i := 0; i < 10; i++ {
		if got := s.Score(patient, provider, insurance); got.Score != first.Score {
			t.Fatalf("expected stable score %d, got %d on run %d", first.Score, got.Score, i)
		}
	}
}
