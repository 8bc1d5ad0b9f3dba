package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ocegs/panel/internal/consultation"
	"github.com/ocegs/panel/pkg/logging"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func TestSendSummary(t *testing.T) {
	sender := &captureSender{}
	mailer := NewReportMailer(sender, logging.Default())

	c := &consultation.Consultation{
		ID:             uuid.New(),
		ChiefComplaint: "severe chest pain radiating to left arm",
		TriageLevel:    4,
	}
	s := &consultation.Summary{
		Content:        "Primary diagnosis: suspected unstable angina.",
		BestDoctorName: "Dr. Cardiology Panel Lead",
	}

	if err := mailer.SendSummary(context.Background(), "patient@example.com", c, s); err != nil {
		t.Fatalf("send summary: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "patient@example.com" {
		t.Fatalf("wrong recipient: %s", msg.To)
	}
	if !strings.Contains(msg.Subject, "chest pain") {
		t.Fatalf("subject should mention the complaint: %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, s.Content) || !strings.Contains(msg.Body, s.BestDoctorName) {
		t.Fatalf("body missing report content:\n%s", msg.Body)
	}
}

func TestSendSummarySkipsEmptyRecipient(t *testing.T) {
	sender := &captureSender{}
	mailer := NewReportMailer(sender, logging.Default())

	err := mailer.SendSummary(context.Background(), "", &consultation.Consultation{}, &consultation.Summary{})
	if err != nil {
		t.Fatalf("empty recipient must be a no-op: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("no email expected, got %d", len(sender.sent))
	}
}

func TestSendSummaryWrapsSenderError(t *testing.T) {
	mailer := NewReportMailer(&captureSender{err: errors.New("sendgrid down")}, logging.Default())

	err := mailer.SendSummary(context.Background(), "p@example.com", &consultation.Consultation{}, &consultation.Summary{})
	if err == nil || !strings.Contains(err.Error(), "sendgrid down") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
