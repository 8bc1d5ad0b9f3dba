package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists consultations, their message log and the terminal summary.
// The roster lives as JSONB inside the consultation row so a step commits
// roster, status and messages in one transaction.
type Store struct {
	pool querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("consultation: pgx pool required")
	}
	return &Store{pool: pool}
}

func newStoreWithQuerier(q querier) *Store {
	if q == nil {
		panic("consultation: querier required")
	}
	return &Store{pool: q}
}

// Create inserts a freshly triaged consultation with its seed messages.
func (s *Store) Create(ctx context.Context, c *Consultation, seed []Message) error {
	roster, err := json.Marshal(c.Roster)
	if err != nil {
		return fmt.Errorf("consultation: marshal roster: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consultation: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO consultations
			(id, user_id, patient_profile_id, status, chief_complaint, symptoms,
			 triage_level, roster, current_round, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.UserID, c.PatientProfileID, c.Status, c.ChiefComplaint, c.Symptoms,
		c.TriageLevel, roster, c.CurrentRound, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("consultation: insert: %w", err)
	}
	if err := insertMessages(ctx, tx, seed); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consultation: commit create: %w", err)
	}
	return nil
}

const consultationColumns = `
	id, user_id, patient_profile_id, status, chief_complaint, symptoms,
	triage_level, roster, current_round, created_at, completed_at`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	var roster []byte
	err := row.Scan(&c.ID, &c.UserID, &c.PatientProfileID, &c.Status,
		&c.ChiefComplaint, &c.Symptoms, &c.TriageLevel, &roster,
		&c.CurrentRound, &c.CreatedAt, &c.CompletedAt)
	if err != nil {
		return nil, err
	}
	if len(roster) > 0 {
		if err := json.Unmarshal(roster, &c.Roster); err != nil {
			return nil, fmt.Errorf("consultation: unmarshal roster: %w", err)
		}
	}
	return &c, nil
}

// GetForUser loads one consultation, rejecting ids owned by someone else.
func (s *Store) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Consultation, error) {
	row := s.pool.QueryRow(ctx, `SELECT`+consultationColumns+` FROM consultations WHERE id = $1`, id)
	c, err := scanConsultation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("consultation: get %s: %w", id, err)
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

// ListByUser returns the user's consultations, newest first.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]Consultation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+consultationColumns+`
		FROM consultations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("consultation: list: %w", err)
	}
	defer rows.Close()

	var out []Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, fmt.Errorf("consultation: list scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consultation: list rows: %w", err)
	}
	return out, nil
}

// Messages returns the append-only log in chronological order.
func (s *Store) Messages(ctx context.Context, id uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, consultation_id, sender_type, doctor_id, doctor_name, content, created_at
		FROM consultation_messages
		WHERE consultation_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("consultation: messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.SenderType,
			&m.DoctorID, &m.DoctorName, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("consultation: messages scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consultation: messages rows: %w", err)
	}
	return out, nil
}

// GetSummary loads the terminal report, nil when none exists yet.
func (s *Store) GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	var sum Summary
	var details []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, consultation_id, content, voting_details, best_doctor_name, created_at
		FROM consultation_summaries
		WHERE consultation_id = $1
	`, id).Scan(&sum.ID, &sum.ConsultationID, &sum.Content, &details, &sum.BestDoctorName, &sum.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("consultation: summary: %w", err)
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &sum.VotingDetails); err != nil {
			return nil, fmt.Errorf("consultation: unmarshal voting details: %w", err)
		}
	}
	return &sum, nil
}

// CommitStep applies one step's mutation atomically: status, round and
// roster on the consultation row, plus appended messages and, at most once,
// the summary.
func (s *Store) CommitStep(ctx context.Context, id uuid.UUID, m StepMutation) error {
	roster, err := json.Marshal(m.Roster)
	if err != nil {
		return fmt.Errorf("consultation: marshal roster: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consultation: begin step: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE consultations
		SET status = $2, current_round = $3, roster = $4, completed_at = $5
		WHERE id = $1
	`, id, m.Status, m.CurrentRound, roster, m.CompletedAt)
	if err != nil {
		return fmt.Errorf("consultation: update: %w", err)
	}
	if err := insertMessages(ctx, tx, m.NewMessages); err != nil {
		return err
	}
	if m.NewSummary != nil {
		details, err := json.Marshal(m.NewSummary.VotingDetails)
		if err != nil {
			return fmt.Errorf("consultation: marshal voting details: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO consultation_summaries
				(id, consultation_id, content, voting_details, best_doctor_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.NewSummary.ID, m.NewSummary.ConsultationID, m.NewSummary.Content,
			details, m.NewSummary.BestDoctorName, m.NewSummary.CreatedAt)
		if err != nil {
			return fmt.Errorf("consultation: insert summary: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consultation: commit step: %w", err)
	}
	return nil
}

func insertMessages(ctx context.Context, tx pgx.Tx, messages []Message) error {
	for _, msg := range messages {
		_, err := tx.Exec(ctx, `
			INSERT INTO consultation_messages
				(id, consultation_id, sender_type, doctor_id, doctor_name, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, msg.ID, msg.ConsultationID, msg.SenderType, msg.DoctorID, msg.DoctorName,
			msg.Content, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("consultation: insert message: %w", err)
		}
	}
	return nil
}
