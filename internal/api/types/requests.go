package types

import "time"

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"first_name" validate:"max=128"`
	LastName    string `json:"last_name" validate:"max=128"`
	CompanyName string `json:"company_name" validate:"max=255"`
	Role        string `json:"role" validate:"required,oneof=Buyer Supplier"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdateRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=128"`
	LastName    *string `json:"last_name" validate:"omitempty,max=128"`
	CompanyName *string `json:"company_name" validate:"omitempty,max=255"`
}

type RFPCreateRequest struct {
	Title        string         `json:"title" validate:"required,max=255"`
	Description  string         `json:"description" validate:"required"`
	Requirements map[string]any `json:"requirements"`
	Deadline     *time.Time     `json:"deadline"`
	Category     *string        `json:"category" validate:"omitempty,max=128"`
	Tags         []string       `json:"tags" validate:"omitempty,dive,required,max=64"`
}

type RFPUpdateRequest struct {
	Title        *string        `json:"title" validate:"omitempty,max=255"`
	Description  *string        `json:"description"`
	Requirements map[string]any `json:"requirements"`
	Deadline     *time.Time     `json:"deadline"`
	Category     *string        `json:"category" validate:"omitempty,max=128"`
	Tags         []string       `json:"tags" validate:"omitempty,dive,required,max=64"`
	Status       *string        `json:"status" validate:"omitempty,oneof=Draft Published 'Under Review' Completed Cancelled"`
}

type ResponseCreateRequest struct {
	Content map[string]any `json:"content" validate:"required"`
}

type ResponseStatusUpdateRequest struct {
	Status   string  `json:"status" validate:"required"`
	Feedback *string `json:"feedback"`
}

type NotificationCreateRequest struct {
	UserID          string         `json:"user_id" validate:"required,uuid"`
	Type            string         `json:"type" validate:"required,oneof=email in_app sms"`
	Title           string         `json:"title" validate:"required,max=255"`
	Message         string         `json:"message" validate:"required"`
	Data            map[string]any `json:"data"`
	SendImmediately bool           `json:"send_immediately"`
}

type NotificationUpdateRequest struct {
	IsRead *bool `json:"is_read"`
	IsSent *bool `json:"is_sent"`
}
