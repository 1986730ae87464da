package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's immutable marketplace role.
type Role string

const (
	RoleBuyer    Role = "Buyer"
	RoleSupplier Role = "Supplier"
)

func (r Role) Valid() bool { return r == RoleBuyer || r == RoleSupplier }

// User represents a registered buyer or supplier.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	Username     string    `gorm:"not null" json:"username" validate:"required"`
	PasswordHash string    `gorm:"not null" json:"-" swaggerignore:"true"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	CompanyName  string    `json:"company_name,omitempty"`
	Role         Role      `gorm:"type:varchar(16);not null;index" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	IsVerified   bool      `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsBuyer() bool    { return u != nil && u.Role == RoleBuyer }
func (u *User) IsSupplier() bool { return u != nil && u.Role == RoleSupplier }

// DisplayName prefers the company name and falls back to the email.
func (u *User) DisplayName() string {
	if u.CompanyName != "" {
		return u.CompanyName
	}
	return u.Email
}
