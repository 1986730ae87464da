package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationType selects how a notification is delivered.
type NotificationType string

const (
	NotificationEmail NotificationType = "email"
	NotificationInApp NotificationType = "in_app"
	NotificationSMS   NotificationType = "sms"
)

func (t NotificationType) Valid() bool {
	return t == NotificationEmail || t == NotificationInApp || t == NotificationSMS
}

// Notification is a message addressed to one user. IsRead and IsSent only ever move to true.
type Notification struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID         `gorm:"type:uuid;index;not null" json:"user_id"`
	Type      NotificationType  `gorm:"type:varchar(16);not null" json:"type"`
	Title     string            `gorm:"not null" json:"title"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Data      datatypes.JSONMap `gorm:"type:jsonb" json:"data"`
	IsRead    bool              `gorm:"not null;default:false;index" json:"is_read"`
	IsSent    bool              `gorm:"not null;default:false" json:"is_sent"`
	SentAt    *time.Time        `json:"sent_at,omitempty"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}
