package consultation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ocegs/panel/internal/prompt"
	"github.com/ocegs/panel/internal/triage"
	"github.com/ocegs/panel/pkg/logging"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu            sync.Mutex
	consultations map[uuid.UUID]*Consultation
	messages      map[uuid.UUID][]Message
	summaries     map[uuid.UUID]*Summary
}

func newMemRepo() *memRepo {
	return &memRepo{
		consultations: map[uuid.UUID]*Consultation{},
		messages:      map[uuid.UUID][]Message{},
		summaries:     map[uuid.UUID]*Summary{},
	}
}

func (r *memRepo) Create(_ context.Context, c *Consultation, seed []Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.consultations[c.ID] = &cp
	r.messages[c.ID] = append([]Message(nil), seed...)
	return nil
}

func (r *memRepo) GetForUser(_ context.Context, id, userID uuid.UUID) (*Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	cp := *c
	cp.Roster = append([]Participant(nil), c.Roster...)
	return &cp, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]Consultation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Consultation
	for _, c := range r.consultations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) Messages(_ context.Context, id uuid.UUID) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages[id]...), nil
}

func (r *memRepo) GetSummary(_ context.Context, id uuid.UUID) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summaries[id], nil
}

func (r *memRepo) CommitStep(_ context.Context, id uuid.UUID, m StepMutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consultations[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = m.Status
	c.CurrentRound = m.CurrentRound
	c.Roster = m.Roster
	c.CompletedAt = m.CompletedAt
	r.messages[id] = append(r.messages[id], m.NewMessages...)
	if m.NewSummary != nil {
		r.summaries[id] = m.NewSummary
	}
	return nil
}

type memLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newMemLock() *memLock { return &memLock{held: map[uuid.UUID]bool{}} }

func (l *memLock) Acquire(_ context.Context, id uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[id] {
		return nil, ErrStepInProgress
	}
	l.held[id] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, id)
	}, nil
}

type fakeTriager struct {
	result      triage.Result
	specialists []prompt.Specialist
}

func (f fakeTriager) Perform(context.Context, string, *prompt.Case) (triage.Result, []prompt.Specialist, error) {
	return f.result, f.specialists, nil
}

type fakeGuider struct{ guide triage.Guide }

func (f fakeGuider) Guide(context.Context, uuid.UUID, string, string) (triage.Guide, error) {
	return f.guide, nil
}

type captureMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMailer) SendSummary(_ context.Context, toEmail string, _ *Consultation, _ *Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, toEmail)
	return nil
}

func chestPainTriager() fakeTriager {
	card, _ := prompt.ByID("cardiologist")
	pulmo, _ := prompt.ByID("pulmonologist")
	return fakeTriager{
		result: triage.Result{
			Severity:        4,
			Department:      "Cardiology",
			Risks:           []string{"acute coronary syndrome"},
			Summary:         "Suspected cardiac chest pain.",
			AssignedDoctors: []string{"cardiologist", "pulmonologist"},
		},
		specialists: []prompt.Specialist{card, pulmo},
	}
}

func newTestService(t *testing.T, triager Triager, opts ...ServiceOption) (*Service, *memRepo, *memLock) {
	t.Helper()
	repo := newMemRepo()
	lock := newMemLock()
	engine := newTestEngine(t, map[string]string{
		"": "The presentation is most consistent with a cardiac origin.",
	}, false)
	svc := NewService(repo, lock, engine, triager, logging.Default(), nil, opts...)
	return svc, repo, lock
}

func TestChestPainScenario(t *testing.T) {
	mailer := &captureMailer{}
	svc, repo, _ := newTestService(t, chestPainTriager(), WithMailer(mailer))
	userID := uuid.New()

	c, err := svc.Create(context.Background(), userID, CreateParams{
		Complaint: "severe chest pain radiating to left arm",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != StatusDiscussing || c.TriageLevel != 4 {
		t.Fatalf("unexpected consultation: status=%s level=%d", c.Status, c.TriageLevel)
	}
	if len(c.Roster) != 2 || c.Roster[0].ID != "cardiologist" {
		t.Fatalf("roster must start with the triage assignment: %#v", c.Roster)
	}

	seed, _ := repo.Messages(context.Background(), c.ID)
	if len(seed) != 2 || seed[0].SenderType != SenderSystem || seed[1].SenderType != SenderPatient {
		t.Fatalf("seed must be triage note then complaint: %#v", seed)
	}
	if seed[1].Content != "severe chest pain radiating to left arm" {
		t.Fatalf("complaint must be the literal patient message: %q", seed[1].Content)
	}

	// First step: the cardiologist speaks.
	res, err := svc.Step(context.Background(), userID, c.ID, "patient@example.com")
	if err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if res.Outcome != OutcomeDoctorSpoke || res.Speaker != c.Roster[0].Name {
		t.Fatalf("first turn must be the cardiologist: %#v", res)
	}

	// Drive to completion.
	for i := 0; i < 3; i++ {
		res, err = svc.Step(context.Background(), userID, c.ID, "patient@example.com")
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if res.Outcome == OutcomeCompleted {
			break
		}
	}
	if res.Outcome != OutcomeCompleted {
		t.Fatalf("consultation never completed: %#v", res)
	}

	detail, err := svc.Get(context.Background(), userID, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Consultation.Status != StatusCompleted {
		t.Fatalf("status: %s", detail.Consultation.Status)
	}
	if detail.Summary == nil || detail.Summary.BestDoctorName != c.Roster[0].Name {
		t.Fatalf("summary must name the summarizer: %#v", detail.Summary)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "patient@example.com" {
		t.Fatalf("report must be mailed exactly once: %#v", mailer.sent)
	}

	// Terminal steps are no-ops.
	if _, err := svc.Step(context.Background(), userID, c.ID, ""); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("got %v, want ErrAlreadyFinished", err)
	}
}

func TestStepRejectsConcurrentCaller(t *testing.T) {
	svc, _, lock := newTestService(t, chestPainTriager())
	userID := uuid.New()

	c, err := svc.Create(context.Background(), userID, CreateParams{Complaint: "chest pain"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	release, err := lock.Acquire(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := svc.Step(context.Background(), userID, c.ID, ""); !errors.Is(err, ErrStepInProgress) {
		t.Fatalf("got %v, want ErrStepInProgress", err)
	}
}

func TestStepOwnershipEnforced(t *testing.T) {
	svc, _, _ := newTestService(t, chestPainTriager())
	owner := uuid.New()

	c, err := svc.Create(context.Background(), owner, CreateParams{Complaint: "chest pain"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Step(context.Background(), uuid.New(), c.ID, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(context.Background(), uuid.New(), c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestFollowUpService(t *testing.T) {
	svc, repo, _ := newTestService(t, chestPainTriager())
	userID := uuid.New()

	c, err := svc.Create(context.Background(), userID, CreateParams{Complaint: "chest pain"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Step(context.Background(), userID, c.ID, ""); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	updated, err := svc.FollowUp(context.Background(), userID, c.ID, "the pain is worse now")
	if err != nil {
		t.Fatalf("follow-up: %v", err)
	}
	if updated.Status != StatusDiscussing || updated.CurrentRound != 2 {
		t.Fatalf("expected DISCUSSING round 2: %s round %d", updated.Status, updated.CurrentRound)
	}
	msgs, _ := repo.Messages(context.Background(), c.ID)
	last := msgs[len(msgs)-1]
	if last.SenderType != SenderPatient || !strings.Contains(last.Content, "worse") {
		t.Fatalf("follow-up message not recorded: %#v", last)
	}
}

func TestEmergencyGuideGatedOnLevel(t *testing.T) {
	guider := fakeGuider{guide: triage.Guide{Title: "Cardiac Emergency", Steps: []triage.GuideStep{{Index: 1, Action: "Call 911"}}}}

	level5 := chestPainTriager()
	level5.result.Severity = 5
	svc, _, _ := newTestService(t, level5, WithGuider(guider))
	userID := uuid.New()

	c, err := svc.Create(context.Background(), userID, CreateParams{Complaint: "crushing chest pain"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	guide, err := svc.EmergencyGuide(context.Background(), userID, c.ID)
	if err != nil {
		t.Fatalf("guide: %v", err)
	}
	if guide.Title != "Cardiac Emergency" {
		t.Fatalf("unexpected guide: %#v", guide)
	}

	svc4, _, _ := newTestService(t, chestPainTriager(), WithGuider(guider))
	c4, err := svc4.Create(context.Background(), userID, CreateParams{Complaint: "mild chest pain"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc4.EmergencyGuide(context.Background(), userID, c4.ID); !errors.Is(err, ErrNoEmergency) {
		t.Fatalf("got %v, want ErrNoEmergency", err)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	svc, repo, _ := newTestService(t, chestPainTriager())

	preview, err := svc.Preview(context.Background(), CreateParams{
		Complaint: "crushing chest pain for two hours",
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Result.Severity != 4 {
		t.Fatalf("unexpected severity: %d", preview.Result.Severity)
	}
	if len(preview.Specialists) != 2 || preview.Specialists[0].ID != "cardiologist" {
		t.Fatalf("unexpected specialists: %#v", preview.Specialists)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.consultations) != 0 {
		t.Fatalf("preview must not create consultations, found %d", len(repo.consultations))
	}
}

func TestPreviewRequiresComplaint(t *testing.T) {
	svc, _, _ := newTestService(t, chestPainTriager())
	if _, err := svc.Preview(context.Background(), CreateParams{Complaint: "   "}); err == nil {
		t.Fatal("expected error for blank complaint")
	}
}
