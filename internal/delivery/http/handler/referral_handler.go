package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"referharmony/internal/delivery/dto"
	"referharmony/internal/domain/entity"
	"referharmony/internal/usecase"
	"referharmony/pkg/response"
	"referharmony/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ReferralHandler struct {
	referralUsecase usecase.ReferralUsecase
	validator       *validator.CustomValidator
}

func NewReferralHandler(referralUsecase usecase.ReferralUsecase, validator *validator.CustomValidator) *ReferralHandler {
	return &ReferralHandler{
		referralUsecase: referralUsecase,
		validator:       validator,
	}
}

// Create handles referral creation
// @Summary Create a referral
// @Description Create a referral from the logged-in provider to a receiving provider
// @Tags Referrals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CreateReferralRequest true "Create Referral Request"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /referrals [post]
func (h *ReferralHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	referral, err := h.referralUsecase.CreateReferral(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrPatientNotFound:
			response.NotFound(w, "Patient not found")
		case usecase.ErrProviderNotFound:
			response.NotFound(w, "Receiving provider not found")
		case usecase.ErrInvalidUrgency:
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
		case usecase.ErrNumberConflict:
			response.Conflict(w, "Could not allocate a referral number, try again")
		default:
			response.InternalServerError(w, "Failed to create referral")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Referral created successfully", referral)
}

// Get handles fetching one referral
// @Summary Get a referral
// @Description Get a referral by ID, restricted to its participants
// @Tags Referrals
// @Security BearerAuth
// @Produce json
// @Param id path string true "Referral ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /referrals/{id} [get]
func (h *ReferralHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid referral ID", nil)
		return
	}

	referral, err := h.referralUsecase.GetReferral(r.Context(), id)
	if err != nil {
		switch err {
		case usecase.ErrReferralNotFound:
			response.NotFound(w, "Referral not found")
		case usecase.ErrReferralNotAccessible:
			response.Forbidden(w, "You are not a participant of this referral")
		default:
			response.InternalServerError(w, "Failed to get referral")
		}
		return
	}

	response.Success(w, http.StatusOK, "Referral retrieved successfully", referral)
}

// List handles listing referrals visible to the caller
// @Summary List referrals
// @Description List referrals visible to the caller, with optional filters
// @Tags Referrals
// @Security BearerAuth
// @Produce json
// @Param status query string false "Filter by status"
// @Param urgency query string false "Filter by urgency"
// @Param specialty query string false "Filter by specialty"
// @Param start_date query string false "Created on or after (RFC 3339)"
// @Param end_date query string false "Created before (RFC 3339)"
// @Success 200 {object} response.Response
// @Router /referrals [get]
func (h *ReferralHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	referrals, err := h.referralUsecase.ListReferrals(r.Context(), filter)
	if err != nil {
		response.InternalServerError(w, "Failed to list referrals")
		return
	}

	response.Success(w, http.StatusOK, "Referrals retrieved successfully", referrals)
}

// UpdateStatus handles referral status transitions
// @Summary Update referral status
// @Description Move a referral to a new status, appending a timeline event
// @Tags Referrals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param request body dto.UpdateReferralStatusRequest true "Update Status Request"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /referrals/{id}/status [patch]
func (h *ReferralHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid referral ID", nil)
		return
	}

	var req dto.UpdateReferralStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	referral, err := h.referralUsecase.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		switch err {
		case usecase.ErrReferralNotFound:
			response.NotFound(w, "Referral not found")
		case usecase.ErrInvalidStatus, usecase.ErrInvalidAppointmentDate:
			response.Error(w, http.StatusBadRequest, err.Error(), nil)
		case usecase.ErrCorruptReferral:
			response.InternalServerError(w, err.Error())
		default:
			response.InternalServerError(w, "Failed to update referral status")
		}
		return
	}

	response.Success(w, http.StatusOK, "Referral status updated successfully", referral)
}

// filterFromQuery builds a referral filter from the common query
// parameters shared by listing and analytics
func filterFromQuery(r *http.Request) (*entity.ReferralFilter, error) {
	q := r.URL.Query()
	filter := &entity.ReferralFilter{
		Status:    q.Get("status"),
		Urgency:   q.Get("urgency"),
		Specialty: q.Get("specialty"),
	}

	if raw := q.Get("start_date"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, usecase.ErrInvalidDateRange
		}
		filter.StartDate = &start
	}
	if raw := q.Get("end_date"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, usecase.ErrInvalidDateRange
		}
		filter.EndDate = &end
	}

	return filter, nil
}
