package consultation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ocegs/panel/internal/observability/metrics"
	"github.com/ocegs/panel/internal/patients"
	"github.com/ocegs/panel/internal/prompt"
	"github.com/ocegs/panel/internal/triage"
	"github.com/ocegs/panel/pkg/logging"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, c *Consultation, seed []Message) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*Consultation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Consultation, error)
	Messages(ctx context.Context, id uuid.UUID) ([]Message, error)
	GetSummary(ctx context.Context, id uuid.UUID) (*Summary, error)
	CommitStep(ctx context.Context, id uuid.UUID, m StepMutation) error
}

// Locker serializes mutating calls per consultation id.
type Locker interface {
	Acquire(ctx context.Context, id uuid.UUID) (func(), error)
}

// Triager is the classification engine that seeds the roster.
type Triager interface {
	Perform(ctx context.Context, complaint string, kase *prompt.Case) (triage.Result, []prompt.Specialist, error)
}

// Guider produces the emergency instruction sheet for level-5 triage.
type Guider interface {
	Guide(ctx context.Context, consultationID uuid.UUID, complaint, triageSummary string) (triage.Guide, error)
}

// ProfileLoader fetches the optional patient profile. Absence returns
// (nil, nil).
type ProfileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patients.Profile, error)
}

// SummaryMailer delivers the final report to the patient. Implementations
// must be safe to skip; delivery failure never fails a step.
type SummaryMailer interface {
	SendSummary(ctx context.Context, toEmail string, c *Consultation, s *Summary) error
}

type Service struct {
	repo     Repository
	lock     Locker
	engine   *Engine
	triager  Triager
	guider   Guider
	profiles ProfileLoader
	mailer   SummaryMailer
	logger   *logging.Logger
	metrics  *metrics.PanelMetrics
	now      func() time.Time
}

type ServiceOption func(*Service)

// WithMailer enables final-report email delivery.
func WithMailer(m SummaryMailer) ServiceOption {
	return func(s *Service) { s.mailer = m }
}

// WithGuider enables the emergency-guide endpoint.
func WithGuider(g Guider) ServiceOption {
	return func(s *Service) { s.guider = g }
}

// WithProfiles enables patient-profile enrichment of prompts.
func WithProfiles(p ProfileLoader) ServiceOption {
	return func(s *Service) { s.profiles = p }
}

func NewService(repo Repository, lock Locker, engine *Engine, triager Triager, logger *logging.Logger, m *metrics.PanelMetrics, opts ...ServiceOption) *Service {
	if repo == nil || lock == nil || engine == nil || triager == nil {
		panic("consultation: repo, lock, engine and triager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:    repo,
		lock:    lock,
		engine:  engine,
		triager: triager,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateParams struct {
	Complaint        string
	Symptoms         string
	PatientProfileID *uuid.UUID
}

// TriagePreview holds a classification that was not persisted.
type TriagePreview struct {
	Result      triage.Result       `json:"triage"`
	Specialists []prompt.Specialist `json:"assigned_specialists"`
}

// Preview runs triage on a complaint without opening a consultation. Lets a
// caller see the severity and proposed panel before committing.
func (s *Service) Preview(ctx context.Context, p CreateParams) (*TriagePreview, error) {
	complaint := strings.TrimSpace(p.Complaint)
	if complaint == "" {
		return nil, fmt.Errorf("consultation: complaint required")
	}

	profile := s.loadProfile(ctx, p.PatientProfileID)
	kase := profile.Case(complaint, p.Symptoms, s.now())

	var kasePtr *prompt.Case
	if profile != nil {
		kasePtr = &kase
	}
	result, specialists, err := s.triager.Perform(ctx, complaint, kasePtr)
	if err != nil {
		return nil, err
	}
	return &TriagePreview{Result: result, Specialists: specialists}, nil
}

// Create triages the complaint, seeds the roster and persists the new
// consultation with its opening messages.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, p CreateParams) (*Consultation, error) {
	complaint := strings.TrimSpace(p.Complaint)
	if complaint == "" {
		return nil, fmt.Errorf("consultation: complaint required")
	}

	profile := s.loadProfile(ctx, p.PatientProfileID)
	now := s.now()
	kase := profile.Case(complaint, p.Symptoms, now)

	var kasePtr *prompt.Case
	if profile != nil {
		kasePtr = &kase
	}
	result, specialists, err := s.triager.Perform(ctx, complaint, kasePtr)
	if err != nil {
		return nil, err
	}

	roster := make([]Participant, 0, len(specialists))
	for _, sp := range specialists {
		roster = append(roster, Participant{
			ID:         sp.ID,
			Name:       sp.Name,
			RolePrompt: sp.RolePrompt,
			Status:     ParticipantActive,
		})
	}

	c := &Consultation{
		ID:               uuid.New(),
		UserID:           userID,
		PatientProfileID: p.PatientProfileID,
		Status:           StatusDiscussing,
		ChiefComplaint:   complaint,
		Symptoms:         p.Symptoms,
		TriageLevel:      result.Severity,
		Roster:           roster,
		CurrentRound:     1,
		CreatedAt:        now,
	}

	// The triage note precedes the literal complaint in the log.
	seed := []Message{
		{
			ID:             uuid.New(),
			ConsultationID: c.ID,
			SenderType:     SenderSystem,
			Content:        triage.RenderNote(result),
			CreatedAt:      now,
		},
		{
			ID:             uuid.New(),
			ConsultationID: c.ID,
			SenderType:     SenderPatient,
			Content:        complaint,
			CreatedAt:      now.Add(time.Millisecond),
		},
	}
	if err := s.repo.Create(ctx, c, seed); err != nil {
		return nil, err
	}
	s.logger.Info("consultation created",
		"consultation_id", c.ID, "user_id", userID,
		"triage_level", result.Severity, "roster_size", len(roster))
	return c, nil
}

// Detail is the full read model for one consultation.
type Detail struct {
	Consultation *Consultation
	Messages     []Message
	Summary      *Summary
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Detail, error) {
	c, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	sum, err := s.repo.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Consultation: c, Messages: msgs, Summary: sum}, nil
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]Consultation, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Step advances the consultation one unit of work under the per-id lock.
// userEmail, when known, receives the final report on completion.
func (s *Service) Step(ctx context.Context, userID, id uuid.UUID, userEmail string) (*StepResult, error) {
	release, err := s.lock.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}

	phase := string(c.Status)
	kase := s.loadProfile(ctx, c.PatientProfileID).Case(c.ChiefComplaint, c.Symptoms, s.now())

	result, err := s.engine.Step(ctx, c, history, kase, existing != nil)
	if err != nil {
		s.metrics.ObserveStep(phase, "error")
		return nil, err
	}
	if err := s.repo.CommitStep(ctx, id, result.Mutation); err != nil {
		s.metrics.ObserveStep(phase, "error")
		return nil, err
	}
	s.metrics.ObserveStep(phase, result.Outcome)

	if result.Mutation.NewSummary != nil && s.mailer != nil && userEmail != "" {
		applied := *c
		applied.Status = result.Mutation.Status
		applied.Roster = result.Mutation.Roster
		applied.CompletedAt = result.Mutation.CompletedAt
		if err := s.mailer.SendSummary(ctx, userEmail, &applied, result.Mutation.NewSummary); err != nil {
			s.logger.Error("final report email failed", "consultation_id", id, "error", err)
		}
	}
	return result, nil
}

// FollowUp appends a patient reply and re-opens the discussion.
func (s *Service) FollowUp(ctx context.Context, userID, id uuid.UUID, content string) (*Consultation, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("consultation: follow-up content required")
	}

	release, err := s.lock.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	mutation := s.engine.FollowUp(c, content)
	if err := s.repo.CommitStep(ctx, id, mutation); err != nil {
		return nil, err
	}
	c.Status = mutation.Status
	c.CurrentRound = mutation.CurrentRound
	c.Roster = mutation.Roster
	return c, nil
}

// EmergencyGuide serves the instruction sheet for level-5 consultations.
func (s *Service) EmergencyGuide(ctx context.Context, userID, id uuid.UUID) (triage.Guide, error) {
	if s.guider == nil {
		return triage.Guide{}, ErrNoEmergency
	}
	c, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return triage.Guide{}, err
	}
	if c.TriageLevel != 5 {
		return triage.Guide{}, ErrNoEmergency
	}

	summary := ""
	if msgs, err := s.repo.Messages(ctx, id); err == nil {
		for _, m := range msgs {
			if m.SenderType == SenderSystem {
				summary = m.Content
				break
			}
		}
	}
	return s.guider.Guide(ctx, id, c.ChiefComplaint, summary)
}

func (s *Service) loadProfile(ctx context.Context, id *uuid.UUID) *patients.Profile {
	if s.profiles == nil || id == nil {
		return nil
	}
	profile, err := s.profiles.GetByID(ctx, *id)
	if err != nil {
		s.logger.Warn("patient profile lookup failed, continuing without", "profile_id", *id, "error", err)
		return nil
	}
	return profile
}
