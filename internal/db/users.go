package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"facility-notify/internal/models"
)

// GetUserRole returns the role from the caller's profile row.
func (d *DB) GetUserRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := d.Pool.QueryRow(ctx,
		`SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("no profile found for user %s", userID)
		}
		return "", fmt.Errorf("failed to get role for user %s: %w", userID, err)
	}
	return role, nil
}

// CreateAccount inserts the login identity. This is the first half of
// account creation; the profile upsert follows separately.
func (d *DB) CreateAccount(ctx context.Context, id, email, passwordHash string) error {
	_, err := d.Pool.Exec(ctx, `
        INSERT INTO accounts (id, email, password_hash, email_confirmed, created_at)
        VALUES ($1, $2, $3, true, $4)`, id, email, passwordHash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create account for %s: %w", email, err)
	}
	return nil
}

// UpsertUser writes the profile row, tolerating a partial row a trigger may
// have created for the same id.
func (d *DB) UpsertUser(ctx context.Context, u models.User) error {
	_, err := d.Pool.Exec(ctx, `
        INSERT INTO users (
            id, email, name, phone_number, role, department, position,
            address, city, state, zip_code, age, date_of_birth,
            emergency_contact, emergency_phone, is_active, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
        ON CONFLICT (id) DO UPDATE SET
            email = EXCLUDED.email,
            name = EXCLUDED.name,
            phone_number = EXCLUDED.phone_number,
            role = EXCLUDED.role,
            department = EXCLUDED.department,
            position = EXCLUDED.position,
            address = EXCLUDED.address,
            city = EXCLUDED.city,
            state = EXCLUDED.state,
            zip_code = EXCLUDED.zip_code,
            age = EXCLUDED.age,
            date_of_birth = EXCLUDED.date_of_birth,
            emergency_contact = EXCLUDED.emergency_contact,
            emergency_phone = EXCLUDED.emergency_phone,
            is_active = EXCLUDED.is_active,
            updated_at = EXCLUDED.updated_at`,
		u.ID, u.Email, u.Name, u.PhoneNumber, u.Role, u.Department, u.Position,
		u.Address, u.City, u.State, u.ZipCode, u.Age, u.DateOfBirth,
		u.EmergencyContact, u.EmergencyPhone, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", u.ID, err)
	}
	return nil
}
