package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ocegs/panel/internal/consultation"
	"github.com/ocegs/panel/pkg/logging"
)

// ReportMailer delivers the final consultation report by email.
type ReportMailer struct {
	email  EmailSender
	logger *logging.Logger
}

func NewReportMailer(email EmailSender, logger *logging.Logger) *ReportMailer {
	if email == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ReportMailer{email: email, logger: logger}
}

// SendSummary mails the terminal report to the consultation owner.
func (m *ReportMailer) SendSummary(ctx context.Context, toEmail string, c *consultation.Consultation, s *consultation.Summary) error {
	if toEmail == "" {
		return nil
	}

	subject := "Your consultation report is ready"
	if c.ChiefComplaint != "" {
		subject = fmt.Sprintf("Consultation report: %s", truncate(c.ChiefComplaint, 60))
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Your panel consultation has concluded.\n\n")
	fmt.Fprintf(&body, "Chief complaint: %s\n", c.ChiefComplaint)
	if c.TriageLevel > 0 {
		fmt.Fprintf(&body, "Triage severity: %d/5\n", c.TriageLevel)
	}
	fmt.Fprintf(&body, "Report prepared by: %s\n\n", s.BestDoctorName)
	body.WriteString(s.Content)
	body.WriteString("\n\nThis report is informational and does not replace an in-person medical evaluation.")

	if err := m.email.Send(ctx, EmailMessage{
		To:      toEmail,
		Subject: subject,
		Body:    body.String(),
	}); err != nil {
		return fmt.Errorf("notify: send report: %w", err)
	}
	m.logger.Info("consultation report emailed", "consultation_id", c.ID, "to", toEmail)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
