package entity

// StatusCount is one bucket of the referral status breakdown
type StatusCount struct {
	Status ReferralStatus `json:"status"`
	Count  int64          `json:"count"`
}

// UrgencyCount is one bucket of the referral urgency breakdown
type UrgencyCount struct {
	Urgency Urgency `json:"urgency"`
	Count   int64   `json:"count"`
}

// TimingAverages holds the mean of each timing metric in hours, over
// referrals where the metric is set. Nil when no referral has it.
type TimingAverages struct {
	AvgTimeToAcknowledge *float64 `json:"avg_time_to_acknowledge"`
	AvgTimeToSchedule    *float64 `json:"avg_time_to_schedule"`
	AvgTimeToComplete    *float64 `json:"avg_time_to_complete"`
}
