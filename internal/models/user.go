package models

import "time"

// User represents a user account. Registration and authentication are
// owned by the surrounding auth module; this core reads users only for
// history author summaries.
type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Username    string    `json:"username" db:"username"`
	DisplayName *string   `json:"displayName,omitempty" db:"display_name"`
	AvatarURL   *string   `json:"avatarUrl,omitempty" db:"avatar_url"`
	Bio         *string   `json:"bio,omitempty" db:"bio"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
