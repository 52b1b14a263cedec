package entity

import (
	"time"

	"github.com/google/uuid"
)

// NotificationChannel is the delivery channel used for a notification
type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelSMS   NotificationChannel = "sms"
)

// NotificationLog records one delivery attempt made for a referral.
// Delivery is best-effort; rows exist for audit, not for retry.
type NotificationLog struct {
	ID         int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferralID uuid.UUID           `gorm:"type:uuid;not null;index" json:"referral_id"`
	Channel    NotificationChannel `gorm:"type:varchar(10);not null" json:"channel"`
	Recipient  string              `gorm:"type:varchar(255);not null" json:"recipient"`
	Purpose    string              `gorm:"type:varchar(100)" json:"purpose,omitempty"`
	Delivered  bool                `gorm:"not null;default:false" json:"delivered"`
	Error      string              `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time           `gorm:"autoCreateTime;index" json:"created_at"`

	// Relationships
	Referral Referral `gorm:"foreignKey:ReferralID" json:"referral,omitempty"`
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}
