package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/arlingtonsteamers/booking-agent/internal/appointments"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

// MessageSender delivers WhatsApp/SMS messages to the admin.
type MessageSender interface {
	SendMessage(ctx context.Context, to, body string) error
	Configured() bool
}

// Service notifies the business owner about confirmed bookings. Every
// channel is best-effort; a missing channel is skipped, not an error.
type Service struct {
	sender      MessageSender
	email       EmailSender
	adminNumber string
	adminEmail  string
	logger      *logging.Logger
}

// NewService creates a notification service. Either channel may be nil
// or unconfigured.
func NewService(sender MessageSender, email EmailSender, adminNumber, adminEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sender:      sender,
		email:       email,
		adminNumber: adminNumber,
		adminEmail:  adminEmail,
		logger:      logger,
	}
}

// BookingConfirmed sends the new-booking summary over every configured
// channel and reports how many channels failed.
func (s *Service) BookingConfirmed(ctx context.Context, appt *appointments.Appointment) error {
	if appt == nil {
		return fmt.Errorf("notify: nil appointment")
	}

	body := bookingSummary(appt)
	var errs []error

	if s.sender != nil && s.sender.Configured() && s.adminNumber != "" {
		if err := s.sender.SendMessage(ctx, s.adminNumber, body); err != nil {
			s.logger.Error("failed to notify admin via whatsapp", "error", err, "appointment_id", appt.ID)
			errs = append(errs, err)
		} else {
			s.logger.Info("admin notified via whatsapp", "appointment_id", appt.ID)
		}
	} else {
		s.logger.Warn("whatsapp admin channel not configured, skipping")
	}

	if s.email != nil && s.adminEmail != "" {
		msg := EmailMessage{
			To:      s.adminEmail,
			Subject: fmt.Sprintf("New booking: %s on %s", appt.Name, appt.Slot),
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("failed to notify admin via email", "error", err, "appointment_id", appt.ID)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

func bookingSummary(appt *appointments.Appointment) string {
	lines := []string{
		"New booking confirmed ✅",
		"Name: " + orNA(appt.Name),
		"Phone: " + orNA(appt.Phone),
		"Email: " + orNA(appt.Email),
		"Address: " + orNA(appt.Address),
		"Areas: " + orNA(appt.Areas),
		"Pet Issue: " + orNA(appt.PetIssue),
		"Date: " + orNA(appt.Slot),
		"Worker: " + orNA(appt.Worker),
	}
	return strings.Join(lines, "\n")
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}
