package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User represents the centralized account table. Providers and patients
// share it; role-specific columns are left empty for the other role.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RoleID    int       `gorm:"not null;index" json:"role_id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"type:text;not null" json:"-"`
	FirstName string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName  string    `gorm:"type:varchar(100);not null" json:"last_name"`
	Phone     string    `gorm:"type:varchar(20)" json:"phone,omitempty"`

	// Provider-specific fields
	Specialty    string `gorm:"type:varchar(100);index" json:"specialty,omitempty"`
	NPINumber    string `gorm:"type:varchar(20)" json:"npi_number,omitempty"`
	Organization string `gorm:"type:varchar(255)" json:"organization,omitempty"`

	// Patient-specific fields
	DateOfBirth       *time.Time `gorm:"type:date" json:"date_of_birth,omitempty"`
	InsuranceProvider string     `gorm:"type:varchar(100)" json:"insurance_provider,omitempty"`
	InsuranceID       string     `gorm:"type:varchar(50)" json:"insurance_id,omitempty"`

	Location      *Location         `gorm:"type:jsonb" json:"location,omitempty"`
	Notifications NotificationPrefs `gorm:"type:jsonb" json:"notifications"`

	IsActive  *bool     `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Role Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// FullName returns the display name used in notifications.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsProvider reports whether the user holds the provider role.
func (u *User) IsProvider() bool {
	return u.RoleID == RoleIDProvider
}

// IsPatient reports whether the user holds the patient role.
func (u *User) IsPatient() bool {
	return u.RoleID == RoleIDPatient
}

// Location is a postal address stored as JSONB.
type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// Value implements driver.Valuer for JSONB storage
func (l *Location) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage
func (l *Location) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, l)
}

// NotificationPrefs controls which delivery channels a user has opted
// into for status updates.
type NotificationPrefs struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

// DefaultNotificationPrefs opts users into both channels, matching the
// behavior patients expect at registration.
func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{Email: true, SMS: true}
}

// Value implements driver.Valuer for JSONB storage
func (p NotificationPrefs) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB storage
func (p *NotificationPrefs) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, p)
}

// jsonBytes normalizes the raw driver value of a JSONB column
func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New(fmt.Sprint("Failed to unmarshal JSONB value:", value))
	}
}
