package models

import "time"

// Task is the slice of a task record the notification pipeline reads.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	AssignedStaffID *string    `json:"assigned_staff_id,omitempty"`
	AssignedTo      *string    `json:"assigned_to,omitempty"`
}
