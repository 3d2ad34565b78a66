package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of a portal or staff user
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleStaff     UserRole = "staff"
	RoleApplicant UserRole = "applicant"
)

// User is the profile row event queries join against to resolve actor
// names. Users are owned by the case-management application.
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	CognitoSub  string    `json:"cognito_sub" db:"cognito_sub"` // Cognito user identifier
	DisplayName string    `json:"display_name" db:"display_name"`
	Role        UserRole  `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// ActorType maps the user's role to the actor discriminator used on events
func (u *User) ActorType() string {
	if u.Role == RoleApplicant {
		return ActorTypeApplicant
	}
	return ActorTypeStaff
}
