package models

import "time"

// Roles recognized by the account API.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is a staff profile row. Optional fields are pointers so an absent
// value round-trips as NULL.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	PhoneNumber      *string    `json:"phone_number,omitempty"`
	Role             string     `json:"role"`
	Department       *string    `json:"department,omitempty"`
	Position         *string    `json:"position,omitempty"`
	Address          *string    `json:"address,omitempty"`
	City             *string    `json:"city,omitempty"`
	State            *string    `json:"state,omitempty"`
	ZipCode          *string    `json:"zip_code,omitempty"`
	Age              *int       `json:"age,omitempty"`
	DateOfBirth      *string    `json:"date_of_birth,omitempty"`
	EmergencyContact *string    `json:"emergency_contact,omitempty"`
	EmergencyPhone   *string    `json:"emergency_phone,omitempty"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}
