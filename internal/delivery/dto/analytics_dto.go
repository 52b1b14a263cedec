package dto

// Response DTOs

type StatusCountResponse struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type UrgencyCountResponse struct {
	Urgency string `json:"urgency"`
	Count   int64  `json:"count"`
}

type AverageTimesResponse struct {
	AvgTimeToAcknowledge *float64 `json:"avg_time_to_acknowledge"`
	AvgTimeToSchedule    *float64 `json:"avg_time_to_schedule"`
	AvgTimeToComplete    *float64 `json:"avg_time_to_complete"`
}

type AnalyticsOverviewResponse struct {
	TotalReferrals   int64                  `json:"total_referrals"`
	StatusBreakdown  []StatusCountResponse  `json:"status_breakdown"`
	UrgencyBreakdown []UrgencyCountResponse `json:"urgency_breakdown"`
	AverageTimes     AverageTimesResponse   `json:"average_times"`
}
