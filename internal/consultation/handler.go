package consultation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appmw "github.com/ocegs/panel/internal/http/middleware"
	"github.com/ocegs/panel/pkg/logging"
)

// Handler exposes the consultation resource over HTTP. All routes assume the
// auth middleware already placed the caller's identity in the context.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("consultation: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the consultation endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateConsultation)
	r.Post("/triage", h.Triage)
	r.Get("/my/all", h.ListMine)
	r.Get("/{id}", h.GetConsultation)
	r.Post("/{id}/step", h.Step)
	r.Post("/{id}/reply", h.Reply)
	r.Get("/{id}/emergency-guide", h.EmergencyGuide)
}

type createRequest struct {
	Complaint        string `json:"complaint"`
	Symptoms         string `json:"symptoms,omitempty"`
	PatientProfileID string `json:"patient_profile_id,omitempty"`
}

type participantView struct {
	ID     string `json:"id"`
	Name   string `json:"display_name"`
	Status string `json:"participation_status"`
}

type consultationView struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	ChiefComplaint   string            `json:"chief_complaint"`
	Symptoms         string            `json:"symptoms,omitempty"`
	TriageLevel      int               `json:"triage_level"`
	Roster           []participantView `json:"doctor_roster"`
	CurrentRound     int               `json:"current_round"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	PatientProfileID string            `json:"patient_profile_id,omitempty"`
}

func viewOf(c *Consultation) consultationView {
	v := consultationView{
		ID:             c.ID.String(),
		Status:         string(c.Status),
		ChiefComplaint: c.ChiefComplaint,
		Symptoms:       c.Symptoms,
		TriageLevel:    c.TriageLevel,
		CurrentRound:   c.CurrentRound,
		CreatedAt:      c.CreatedAt,
		CompletedAt:    c.CompletedAt,
	}
	if c.PatientProfileID != nil {
		v.PatientProfileID = c.PatientProfileID.String()
	}
	for _, p := range c.Roster {
		v.Roster = append(v.Roster, participantView{ID: p.ID, Name: p.Name, Status: p.Status})
	}
	return v
}

type messageView struct {
	ID         string    `json:"id"`
	SenderType string    `json:"sender_type"`
	DoctorID   string    `json:"doctor_id,omitempty"`
	DoctorName string    `json:"doctor_name,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type summaryView struct {
	Content        string        `json:"content"`
	VotingDetails  []Elimination `json:"voting_details,omitempty"`
	BestDoctorName string        `json:"best_doctor_name"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CreateConsultation triages a complaint and opens a new panel session.
// POST /consultations
func (h *Handler) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	userID, ok := appmw.UserID(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Complaint == "" {
		jsonError(w, "complaint is required", http.StatusBadRequest)
		return
	}

	params := CreateParams{Complaint: req.Complaint, Symptoms: req.Symptoms}
	if req.PatientProfileID != "" {
		id, err := uuid.Parse(req.PatientProfileID)
		if err != nil {
			jsonError(w, "invalid patient_profile_id", http.StatusBadRequest)
			return
		}
		params.PatientProfileID = &id
	}

	c, err := h.service.Create(r.Context(), userID, params)
	if err != nil {
		h.logger.Error("create consultation failed", "user_id", userID, "error", err)
		jsonError(w, "could not create consultation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(c))
}

// Triage classifies a complaint without opening a consultation.
// POST /consultations/triage
func (h *Handler) Triage(w http.ResponseWriter, r *http.Request) {
	if _, ok := appmw.UserID(r.Context()); !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Complaint == "" {
		jsonError(w, "complaint is required", http.StatusBadRequest)
		return
	}

	params := CreateParams{Complaint: req.Complaint, Symptoms: req.Symptoms}
	if req.PatientProfileID != "" {
		id, err := uuid.Parse(req.PatientProfileID)
		if err != nil {
			jsonError(w, "invalid patient_profile_id", http.StatusBadRequest)
			return
		}
		params.PatientProfileID = &id
	}

	preview, err := h.service.Preview(r.Context(), params)
	if err != nil {
		h.logger.Error("triage preview failed", "error", err)
		jsonError(w, "could not triage complaint", http.StatusInternalServerError)
		return
	}

	specialists := make([]participantView, 0, len(preview.Specialists))
	for _, sp := range preview.Specialists {
		specialists = append(specialists, participantView{ID: sp.ID, Name: sp.Name, Status: ParticipantActive})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"triage":               preview.Result,
		"assigned_specialists": specialists,
	})
}

// GetConsultation returns the full history plus summary.
// GET /consultations/{id}
func (h *Handler) GetConsultation(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.identify(w, r)
	if !ok {
		return
	}

	detail, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		h.serviceError(w, err, "get consultation", id)
		return
	}

	messages := make([]messageView, 0, len(detail.Messages))
	for _, m := range detail.Messages {
		messages = append(messages, messageView{
			ID:         m.ID.String(),
			SenderType: m.SenderType,
			DoctorID:   m.DoctorID,
			DoctorName: m.DoctorName,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		})
	}
	resp := map[string]any{
		"consultation": viewOf(detail.Consultation),
		"messages":     messages,
	}
	if detail.Summary != nil {
		resp["summary"] = summaryView{
			Content:        detail.Summary.Content,
			VotingDetails:  detail.Summary.VotingDetails,
			BestDoctorName: detail.Summary.BestDoctorName,
			CreatedAt:      detail.Summary.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Step advances the panel by one unit of work.
// POST /consultations/{id}/step
func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.identify(w, r)
	if !ok {
		return
	}
	email, _ := appmw.UserEmail(r.Context())

	result, err := h.service.Step(r.Context(), userID, id, email)
	if err != nil {
		if errors.Is(err, ErrAlreadyFinished) {
			writeJSON(w, http.StatusOK, map[string]any{"outcome": "already_finished"})
			return
		}
		h.serviceError(w, err, "step", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": result.Outcome,
		"speaker": result.Speaker,
		"status":  string(result.Mutation.Status),
	})
}

type replyRequest struct {
	Content string `json:"content"`
}

// Reply records a patient follow-up and re-opens discussion.
// POST /consultations/{id}/reply
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		jsonError(w, "content is required", http.StatusBadRequest)
		return
	}

	c, err := h.service.FollowUp(r.Context(), userID, id, req.Content)
	if err != nil {
		h.serviceError(w, err, "reply", id)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

// ListMine lists the caller's consultations, newest first.
// GET /consultations/my/all
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := appmw.UserID(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		h.logger.Error("list consultations failed", "user_id", userID, "error", err)
		jsonError(w, "could not list consultations", http.StatusInternalServerError)
		return
	}
	views := make([]consultationView, 0, len(list))
	for i := range list {
		views = append(views, viewOf(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"consultations": views})
}

// EmergencyGuide serves first-aid instructions for level-5 triage.
// GET /consultations/{id}/emergency-guide
func (h *Handler) EmergencyGuide(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.identify(w, r)
	if !ok {
		return
	}

	guide, err := h.service.EmergencyGuide(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNoEmergency) {
			jsonError(w, "emergency guide is only available for triage level 5", http.StatusConflict)
			return
		}
		h.serviceError(w, err, "emergency guide", id)
		return
	}
	writeJSON(w, http.StatusOK, guide)
}

func (h *Handler) identify(w http.ResponseWriter, r *http.Request) (userID, id uuid.UUID, ok bool) {
	userID, authed := appmw.UserID(r.Context())
	if !authed {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "invalid consultation id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

func (h *Handler) serviceError(w http.ResponseWriter, err error, op string, id uuid.UUID) {
	switch {
	case errors.Is(err, ErrNotFound):
		jsonError(w, "consultation not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		jsonError(w, "consultation not found", http.StatusNotFound)
	case errors.Is(err, ErrStepInProgress):
		jsonError(w, "a step is already in progress for this consultation", http.StatusConflict)
	default:
		h.logger.Error(op+" failed", "consultation_id", id, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
