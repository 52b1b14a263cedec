package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LocationRequest struct {
	Address string `json:"address" validate:"omitempty"`
	City    string `json:"city" validate:"omitempty"`
	State   string `json:"state" validate:"omitempty"`
	ZipCode string `json:"zip_code" validate:"omitempty"`
}

// RegisterPatientRequest registers a patient account
type RegisterPatientRequest struct {
	Email             string           `json:"email" validate:"required,email"`
	Password          string           `json:"password" validate:"required,min=8"`
	FirstName         string           `json:"first_name" validate:"required,min=2"`
	LastName          string           `json:"last_name" validate:"required,min=2"`
	Phone             string           `json:"phone" validate:"omitempty,min=10,max=20"`
	DateOfBirth       string           `json:"date_of_birth" validate:"omitempty"` // Format: YYYY-MM-DD
	InsuranceProvider string           `json:"insurance_provider" validate:"omitempty"`
	InsuranceID       string           `json:"insurance_id" validate:"omitempty"`
	Location          *LocationRequest `json:"location" validate:"omitempty"`
}

// RegisterProviderRequest registers a provider account
type RegisterProviderRequest struct {
	Email        string           `json:"email" validate:"required,email"`
	Password     string           `json:"password" validate:"required,min=8"`
	FirstName    string           `json:"first_name" validate:"required,min=2"`
	LastName     string           `json:"last_name" validate:"required,min=2"`
	Phone        string           `json:"phone" validate:"omitempty,min=10,max=20"`
	Specialty    string           `json:"specialty" validate:"required"`
	NPINumber    string           `json:"npi_number" validate:"omitempty"`
	Organization string           `json:"organization" validate:"omitempty"`
	Location     *LocationRequest `json:"location" validate:"omitempty"`
}

// Response DTOs

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LocationResponse struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

type NotificationPrefsResponse struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type UserResponse struct {
	ID                uuid.UUID                  `json:"id"`
	Email             string                     `json:"email"`
	FirstName         string                     `json:"first_name"`
	LastName          string                     `json:"last_name"`
	Role              string                     `json:"role"`
	Phone             string                     `json:"phone,omitempty"`
	Specialty         string                     `json:"specialty,omitempty"`
	NPINumber         string                     `json:"npi_number,omitempty"`
	Organization      string                     `json:"organization,omitempty"`
	DateOfBirth       string                     `json:"date_of_birth,omitempty"`
	InsuranceProvider string                     `json:"insurance_provider,omitempty"`
	Location          *LocationResponse          `json:"location,omitempty"`
	Notifications     *NotificationPrefsResponse `json:"notifications,omitempty"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}
