package dto

// Request DTOs

type NotificationPrefsRequest struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

// UpdateProfileRequest updates the mutable parts of the caller's profile
type UpdateProfileRequest struct {
	Phone         string                    `json:"phone" validate:"omitempty,min=10,max=20"`
	Organization  string                    `json:"organization" validate:"omitempty"`
	Location      *LocationRequest          `json:"location" validate:"omitempty"`
	Notifications *NotificationPrefsRequest `json:"notifications" validate:"omitempty"`
}

// Response DTOs

type ProviderListResponse struct {
	Providers []UserResponse `json:"providers"`
	Total     int            `json:"total"`
}
