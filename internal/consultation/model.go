// Package consultation implements the doctor-panel state machine: a
// consultation moves through discussion rounds (optionally pruned by peer
// voting) until a summarizer produces the final report.
package consultation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusTriage      Status = "TRIAGE"
	StatusDiscussing  Status = "DISCUSSING"
	StatusVoting      Status = "VOTING"
	StatusSummarizing Status = "SUMMARIZING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

// Terminal reports whether no further step can mutate the consultation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	ParticipantActive     = "active"
	ParticipantEliminated = "eliminated"
)

var (
	ErrNotFound        = errors.New("consultation: not found")
	ErrForbidden       = errors.New("consultation: not owned by user")
	ErrAlreadyFinished = errors.New("consultation: already finished")
	ErrStepInProgress  = errors.New("consultation: a step is already in progress")
	ErrNoEmergency     = errors.New("consultation: emergency guide requires triage level 5")
)

// Participant is one panel doctor. The struct is persisted as JSONB inside
// the consultation row, so every field carries a json tag.
type Participant struct {
	ID              string `json:"id"`
	Name            string `json:"display_name"`
	RolePrompt      string `json:"role_prompt"`
	Provider        string `json:"provider,omitempty"`
	Model           string `json:"model,omitempty"`
	APIKey          string `json:"api_key,omitempty"`
	BaseURL         string `json:"base_url,omitempty"`
	Status          string `json:"participation_status"`
	LastSpokenRound int    `json:"last_spoken_round"`
	EliminatedRound int    `json:"eliminated_round,omitempty"`
	EliminatedFor   string `json:"eliminated_for,omitempty"`
	EliminatedVotes int    `json:"eliminated_votes,omitempty"`
}

// Spoke reports whether the participant already took a turn in round.
func (p Participant) Spoke(round int) bool {
	return p.LastSpokenRound == round
}

// Consultation is the root aggregate for one diagnostic session.
type Consultation struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	PatientProfileID *uuid.UUID
	Status           Status
	ChiefComplaint   string
	Symptoms         string
	TriageLevel      int
	Roster           []Participant
	CurrentRound     int
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// Active returns the roster entries still participating, in roster order.
func (c *Consultation) Active() []Participant {
	var out []Participant
	for _, p := range c.Roster {
		if p.Status == ParticipantActive {
			out = append(out, p)
		}
	}
	return out
}

const (
	SenderPatient = "patient"
	SenderDoctor  = "doctor"
	SenderSystem  = "system"
)

// Message is one append-only log entry. Doctor name is denormalized at
// write time and never re-resolved against the roster.
type Message struct {
	ID             uuid.UUID
	ConsultationID uuid.UUID
	SenderType     string
	DoctorID       string
	DoctorName     string
	Content        string
	CreatedAt      time.Time
}

// Elimination records one voting-round removal, kept on the summary.
type Elimination struct {
	Round    int    `json:"round"`
	DoctorID string `json:"doctor_id"`
	Name     string `json:"doctor_name"`
	Reason   string `json:"reason"`
	Votes    int    `json:"votes"`
}

// Summary is the single terminal report of a consultation. Created once,
// never updated.
type Summary struct {
	ID             uuid.UUID
	ConsultationID uuid.UUID
	Content        string
	VotingDetails  []Elimination
	BestDoctorName string
	CreatedAt      time.Time
}
