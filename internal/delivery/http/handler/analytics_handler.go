package handler

import (
	"net/http"

	"referharmony/internal/usecase"
	"referharmony/pkg/response"
)

type AnalyticsHandler struct {
	analyticsUsecase usecase.AnalyticsUsecase
}

func NewAnalyticsHandler(analyticsUsecase usecase.AnalyticsUsecase) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsUsecase: analyticsUsecase,
	}
}

// Overview handles the referral analytics overview
// @Summary Referral analytics overview
// @Description Aggregate referral counts, breakdowns, and timing averages over the caller's visible referrals
// @Tags Analytics
// @Security BearerAuth
// @Produce json
// @Param status query string false "Filter by status"
// @Param urgency query string false "Filter by urgency"
// @Param specialty query string false "Filter by specialty"
// @Param start_date query string false "Created on or after (RFC 3339)"
// @Param end_date query string false "Created before (RFC 3339)"
// @Success 200 {object} response.Response
// @Router /referrals/analytics/overview [get]
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	overview, err := h.analyticsUsecase.Overview(r.Context(), filter)
	if err != nil {
		response.InternalServerError(w, "Failed to build analytics overview")
		return
	}

	response.Success(w, http.StatusOK, "Analytics retrieved successfully", overview)
}
