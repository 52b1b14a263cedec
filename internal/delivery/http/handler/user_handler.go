package handler

import (
	"encoding/json"
	"net/http"

	"referharmony/internal/delivery/dto"
	"referharmony/internal/usecase"
	"referharmony/pkg/response"
	"referharmony/pkg/validator"
)

type UserHandler struct {
	userUsecase usecase.UserUsecase
	validator   *validator.CustomValidator
}

func NewUserHandler(userUsecase usecase.UserUsecase, validator *validator.CustomValidator) *UserHandler {
	return &UserHandler{
		userUsecase: userUsecase,
		validator:   validator,
	}
}

// ListProviders handles the provider directory lookup
// @Summary List providers
// @Description List active providers, optionally filtered by specialty
// @Tags Providers
// @Security BearerAuth
// @Produce json
// @Param specialty query string false "Filter by specialty"
// @Success 200 {object} response.Response
// @Router /providers [get]
func (h *UserHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.userUsecase.ListProviders(r.Context(), r.URL.Query().Get("specialty"))
	if err != nil {
		response.InternalServerError(w, "Failed to list providers")
		return
	}

	response.Success(w, http.StatusOK, "Providers retrieved successfully", providers)
}

// UpdateProfile handles profile updates for the current user
// @Summary Update profile
// @Description Update phone, organization, location, and notification preferences
// @Tags Users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.UpdateProfileRequest true "Update Profile Request"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /users/me [patch]
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	user, err := h.userUsecase.UpdateProfile(r.Context(), &req)
	if err != nil {
		switch err {
		case usecase.ErrUserNotFound:
			response.NotFound(w, "User not found")
		default:
			response.InternalServerError(w, "Failed to update profile")
		}
		return
	}

	response.Success(w, http.StatusOK, "Profile updated successfully", user)
}
