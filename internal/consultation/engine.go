package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ocegs/panel/internal/aijson"
	"github.com/ocegs/panel/internal/observability/metrics"
	"github.com/ocegs/panel/internal/prompt"
	"github.com/ocegs/panel/internal/provider"
	"github.com/ocegs/panel/pkg/logging"
)

const (
	discussionTemperature = 0.7
	discussionMaxTokens   = 2000
)

// adapterFactory resolves a provider config to a callable adapter.
type adapterFactory interface {
	Adapter(cfg provider.Config) provider.Adapter
}

// configResolver merges stored settings with a per-participant override.
type configResolver interface {
	Resolve(ctx context.Context, role string, o provider.Override) (provider.Config, error)
}

// StepMutation is everything one step changes, committed atomically.
type StepMutation struct {
	Status       Status
	CurrentRound int
	Roster       []Participant
	CompletedAt  *time.Time
	NewMessages  []Message
	NewSummary   *Summary
}

// Step outcomes reported to the caller.
const (
	OutcomeDoctorSpoke   = "doctor_spoke"
	OutcomeVotingStarted = "voting_started"
	OutcomeEliminated    = "doctor_eliminated"
	OutcomeSummarizing   = "summarizing"
	OutcomeCompleted     = "completed"
)

type StepResult struct {
	Outcome  string
	Speaker  string
	Mutation StepMutation
}

// Engine advances consultations one unit of work at a time. It never touches
// storage: callers load the aggregate, run a step, and commit the returned
// mutation in one transaction.
type Engine struct {
	resolver      configResolver
	factory       adapterFactory
	logger        *logging.Logger
	metrics       *metrics.PanelMetrics
	votingEnabled bool
	now           func() time.Time
}

func NewEngine(resolver configResolver, factory adapterFactory, logger *logging.Logger, m *metrics.PanelMetrics, votingEnabled bool) *Engine {
	if resolver == nil || factory == nil {
		panic("consultation: resolver and factory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		resolver:      resolver,
		factory:       factory,
		logger:        logger,
		metrics:       m,
		votingEnabled: votingEnabled,
		now:           time.Now,
	}
}

// Step performs exactly one unit of work. haveSummary tells the engine
// whether a summary record already exists, so re-completions after a
// follow-up never create a second one.
func (e *Engine) Step(ctx context.Context, c *Consultation, history []Message, kase prompt.Case, haveSummary bool) (*StepResult, error) {
	if c.Status.Terminal() {
		return nil, ErrAlreadyFinished
	}

	now := e.now()
	roster := append([]Participant(nil), c.Roster...)

	if len(roster) == 0 {
		return e.concludeEmpty(c, now), nil
	}

	switch c.Status {
	case StatusDiscussing:
		return e.stepDiscussing(ctx, c, roster, history, kase, haveSummary, now)
	case StatusVoting:
		return e.stepVoting(ctx, c, roster, history, kase, now)
	case StatusSummarizing:
		return e.stepSummarizing(ctx, c, roster, history, kase, haveSummary, now)
	default:
		return nil, fmt.Errorf("consultation: cannot step from status %s", c.Status)
	}
}

// concludeEmpty force-terminates a consultation that has nobody to speak.
func (e *Engine) concludeEmpty(c *Consultation, now time.Time) *StepResult {
	mutation := StepMutation{
		Status:       StatusCompleted,
		CurrentRound: c.CurrentRound,
		Roster:       c.Roster,
		NewMessages: []Message{{
			ID:             uuid.New(),
			ConsultationID: c.ID,
			SenderType:     SenderSystem,
			Content:        "The consultation concluded without an active participant.",
			CreatedAt:      now,
		}},
	}
	if c.CompletedAt == nil {
		mutation.CompletedAt = &now
	} else {
		mutation.CompletedAt = c.CompletedAt
	}
	return &StepResult{Outcome: OutcomeCompleted, Mutation: mutation}
}

func (e *Engine) stepDiscussing(ctx context.Context, c *Consultation, roster []Participant, history []Message, kase prompt.Case, haveSummary bool, now time.Time) (*StepResult, error) {
	next := -1
	anyActive := false
	for i, p := range roster {
		if p.Status != ParticipantActive {
			continue
		}
		anyActive = true
		if !p.Spoke(c.CurrentRound) {
			next = i
			break
		}
	}
	if !anyActive {
		return e.concludeEmpty(c, now), nil
	}

	if next >= 0 {
		speaker := &roster[next]
		adapter, err := e.adapterFor(ctx, *speaker)
		if err != nil {
			return nil, err
		}
		pair := prompt.Discussion(speaker.RolePrompt, kase, toHistory(history), speaker.Name)
		text := adapter.Complete(ctx, requestFrom(pair))
		if provider.IsErrorText(text) {
			e.logger.Warn("doctor turn degraded to error text",
				"consultation_id", c.ID, "doctor_id", speaker.ID)
		}
		speaker.LastSpokenRound = c.CurrentRound

		return &StepResult{
			Outcome: OutcomeDoctorSpoke,
			Speaker: speaker.Name,
			Mutation: StepMutation{
				Status:       StatusDiscussing,
				CurrentRound: c.CurrentRound,
				Roster:       roster,
				CompletedAt:  c.CompletedAt,
				NewMessages: []Message{{
					ID:             uuid.New(),
					ConsultationID: c.ID,
					SenderType:     SenderDoctor,
					DoctorID:       speaker.ID,
					DoctorName:     speaker.Name,
					Content:        text,
					CreatedAt:      now,
				}},
			},
		}, nil
	}

	// Every active doctor has spoken this round.
	if e.votingEnabled && countActive(roster) > 1 {
		return &StepResult{
			Outcome: OutcomeVotingStarted,
			Mutation: StepMutation{
				Status:       StatusVoting,
				CurrentRound: c.CurrentRound,
				Roster:       roster,
				CompletedAt:  c.CompletedAt,
			},
		}, nil
	}
	return e.stepSummarizing(ctx, c, roster, history, kase, haveSummary, now)
}

// voteBallot is the strict JSON shape each voter must return.
type voteBallot struct {
	TargetDoctorID string `json:"targetDoctorId"`
	Reason         string `json:"reason"`
}

func (e *Engine) stepVoting(ctx context.Context, c *Consultation, roster []Participant, history []Message, kase prompt.Case, now time.Time) (*StepResult, error) {
	active := activeIndexes(roster)
	if len(active) == 0 {
		return e.concludeEmpty(c, now), nil
	}

	tally := make(map[string]int)
	reasons := make(map[string]string)
	for _, idx := range active {
		voter := roster[idx]
		candidates := voteCandidates(roster, voter.ID)
		if len(candidates) == 0 {
			continue
		}
		adapter, err := e.adapterFor(ctx, voter)
		if err != nil {
			return nil, err
		}
		pair := prompt.Vote(voter.RolePrompt, kase, toHistory(history), candidates, voter.Name)
		text := adapter.Complete(ctx, requestFrom(pair))

		var ballot voteBallot
		if !aijson.Unmarshal(text, &ballot) {
			e.logger.Warn("discarding unparseable ballot",
				"consultation_id", c.ID, "voter_id", voter.ID)
			continue
		}
		if !isCandidate(candidates, ballot.TargetDoctorID) {
			e.logger.Warn("discarding ballot for unknown candidate",
				"consultation_id", c.ID, "voter_id", voter.ID, "target", ballot.TargetDoctorID)
			continue
		}
		tally[ballot.TargetDoctorID]++
		if _, ok := reasons[ballot.TargetDoctorID]; !ok && ballot.Reason != "" {
			reasons[ballot.TargetDoctorID] = ballot.Reason
		}
	}

	lossIdx, votes := pluralityLoser(roster, active, tally)
	loser := &roster[lossIdx]
	reason := reasons[loser.ID]
	if reason == "" {
		reason = "No valid votes were cast; eliminated by panel order."
	}
	loser.Status = ParticipantEliminated
	loser.EliminatedRound = c.CurrentRound
	loser.EliminatedFor = reason
	loser.EliminatedVotes = votes

	elimMsg := Message{
		ID:             uuid.New(),
		ConsultationID: c.ID,
		SenderType:     SenderSystem,
		Content:        fmt.Sprintf("%s has been eliminated from the panel. Reason: %s", loser.Name, reason),
		CreatedAt:      now,
	}

	mutation := StepMutation{
		CurrentRound: c.CurrentRound,
		Roster:       roster,
		CompletedAt:  c.CompletedAt,
		NewMessages:  []Message{elimMsg},
	}
	if countActive(roster) <= 1 {
		mutation.Status = StatusSummarizing
	} else {
		mutation.Status = StatusDiscussing
		mutation.CurrentRound = c.CurrentRound + 1
	}
	return &StepResult{Outcome: OutcomeEliminated, Speaker: loser.Name, Mutation: mutation}, nil
}

func (e *Engine) stepSummarizing(ctx context.Context, c *Consultation, roster []Participant, history []Message, kase prompt.Case, haveSummary bool, now time.Time) (*StepResult, error) {
	summarizer := pickSummarizer(roster)
	adapter, err := e.adapterFor(ctx, summarizer)
	if err != nil {
		return nil, err
	}
	pair := prompt.FinalSummary(summarizer.RolePrompt, kase, toHistory(history), summarizer.Name)
	text := adapter.Complete(ctx, requestFrom(pair))

	mutation := StepMutation{
		Status:       StatusCompleted,
		CurrentRound: c.CurrentRound,
		Roster:       roster,
	}
	if c.CompletedAt == nil {
		mutation.CompletedAt = &now
	} else {
		mutation.CompletedAt = c.CompletedAt
	}

	if haveSummary {
		// The summary record is write-once. A re-completion after a
		// follow-up lands the fresh report in the message log instead.
		mutation.NewMessages = []Message{{
			ID:             uuid.New(),
			ConsultationID: c.ID,
			SenderType:     SenderSystem,
			Content:        fmt.Sprintf("Updated final report by %s:\n\n%s", summarizer.Name, text),
			CreatedAt:      now,
		}}
	} else {
		mutation.NewSummary = &Summary{
			ID:             uuid.New(),
			ConsultationID: c.ID,
			Content:        text,
			VotingDetails:  eliminations(roster),
			BestDoctorName: summarizer.Name,
			CreatedAt:      now,
		}
	}
	e.metrics.ObserveCompleted()
	return &StepResult{Outcome: OutcomeCompleted, Speaker: summarizer.Name, Mutation: mutation}, nil
}

// FollowUp appends a patient message and re-opens discussion with a fresh
// round. Every participant is reactivated, eliminated ones included.
func (e *Engine) FollowUp(c *Consultation, content string) StepMutation {
	roster := append([]Participant(nil), c.Roster...)
	for i := range roster {
		roster[i].Status = ParticipantActive
	}
	return StepMutation{
		Status:       StatusDiscussing,
		CurrentRound: c.CurrentRound + 1,
		Roster:       roster,
		CompletedAt:  c.CompletedAt,
		NewMessages: []Message{{
			ID:             uuid.New(),
			ConsultationID: c.ID,
			SenderType:     SenderPatient,
			Content:        content,
			CreatedAt:      e.now(),
		}},
	}
}

func (e *Engine) adapterFor(ctx context.Context, p Participant) (provider.Adapter, error) {
	cfg, err := e.resolver.Resolve(ctx, "", provider.Override{
		Provider: p.Provider,
		Model:    p.Model,
		APIKey:   p.APIKey,
		BaseURL:  p.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return e.factory.Adapter(cfg), nil
}

func requestFrom(pair prompt.Pair) provider.Request {
	return provider.Request{
		Messages: []provider.ChatMessage{
			{Role: provider.RoleSystem, Content: pair.System},
			{Role: provider.RoleUser, Content: pair.User},
		},
		Temperature: discussionTemperature,
		MaxTokens:   discussionMaxTokens,
	}
}

func toHistory(messages []Message) []prompt.HistoryEntry {
	out := make([]prompt.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		out = append(out, prompt.HistoryEntry{
			SenderType: m.SenderType,
			DoctorName: m.DoctorName,
			Content:    m.Content,
		})
	}
	return out
}

func countActive(roster []Participant) int {
	n := 0
	for _, p := range roster {
		if p.Status == ParticipantActive {
			n++
		}
	}
	return n
}

func activeIndexes(roster []Participant) []int {
	var out []int
	for i, p := range roster {
		if p.Status == ParticipantActive {
			out = append(out, i)
		}
	}
	return out
}

func voteCandidates(roster []Participant, voterID string) []prompt.RosterEntry {
	var out []prompt.RosterEntry
	for _, p := range roster {
		if p.Status != ParticipantActive || p.ID == voterID {
			continue
		}
		out = append(out, prompt.RosterEntry{ID: p.ID, Name: p.Name})
	}
	return out
}

func isCandidate(candidates []prompt.RosterEntry, id string) bool {
	for _, c := range candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

// pluralityLoser picks the active participant with the most votes against
// them. Ties, including the zero-vote case, resolve by roster order.
func pluralityLoser(roster []Participant, active []int, tally map[string]int) (idx, votes int) {
	idx = active[0]
	votes = tally[roster[idx].ID]
	for _, i := range active[1:] {
		if tally[roster[i].ID] > votes {
			idx = i
			votes = tally[roster[i].ID]
		}
	}
	return idx, votes
}

// pickSummarizer prefers the first active participant, falling back to the
// first roster entry regardless of status.
func pickSummarizer(roster []Participant) Participant {
	for _, p := range roster {
		if p.Status == ParticipantActive {
			return p
		}
	}
	return roster[0]
}

func eliminations(roster []Participant) []Elimination {
	var out []Elimination
	for _, p := range roster {
		if p.Status != ParticipantEliminated {
			continue
		}
		out = append(out, Elimination{
			Round:    p.EliminatedRound,
			DoctorID: p.ID,
			Name:     p.Name,
			Reason:   p.EliminatedFor,
			Votes:    p.EliminatedVotes,
		})
	}
	return out
}
