// Package patients loads patient profiles attached to consultations. A
// profile is optional context: consultations without one render only the
// complaint and symptoms.
package patients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ocegs/panel/internal/prompt"
)

// Profile is a stored patient record.
type Profile struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Name               string
	Gender             string
	DateOfBirth        *time.Time
	MedicalHistory     string
	Allergies          string
	CurrentMedications string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Age returns whole years at now, 0 when the birth date is unknown.
func (p *Profile) Age(now time.Time) int {
	if p == nil || p.DateOfBirth == nil {
		return 0
	}
	dob := *p.DateOfBirth
	years := now.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Case merges the profile into prompt case data. Works on a nil profile, so
// callers pass whatever GetByID returned without checking.
func (p *Profile) Case(chiefComplaint, symptoms string, now time.Time) prompt.Case {
	c := prompt.Case{
		ChiefComplaint: chiefComplaint,
		Symptoms:       symptoms,
	}
	if p == nil {
		return c
	}
	c.Name = p.Name
	c.Gender = p.Gender
	c.Age = p.Age(now)
	c.MedicalHistory = p.MedicalHistory
	c.Allergies = p.Allergies
	c.CurrentMedications = p.CurrentMedications
	return c
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool rowQuerier
}

func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithQuerier(q rowQuerier) *Store {
	if q == nil {
		panic("patients: querier required")
	}
	return &Store{pool: q}
}

// GetByID loads one profile. A missing row returns (nil, nil): an attached
// profile that was deleted must not fail the consultation.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `
		SELECT id, user_id, name, gender, date_of_birth,
		       medical_history, allergies, current_medications,
		       created_at, updated_at
		FROM patient_profiles
		WHERE id = $1
	`
	var p Profile
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Gender, &p.DateOfBirth,
		&p.MedicalHistory, &p.Allergies, &p.CurrentMedications,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("patients: get %s: %w", id, err)
	}
	return &p, nil
}
