package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/arlingtonsteamers/booking-agent/internal/appointments"
)

// Mock implementations

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockMessageSender struct {
	sent       []struct{ to, body string }
	callErr    error
	configured bool
}

func (m *mockMessageSender) SendMessage(ctx context.Context, to, body string) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, struct{ to, body string }{to, body})
	return nil
}

func (m *mockMessageSender) Configured() bool { return m.configured }

func testAppointment() *appointments.Appointment {
	return &appointments.Appointment{
		ID:       uuid.New(),
		Name:     "Jordan Lee",
		Phone:    "202-555-0100",
		Email:    "jordan@example.com",
		Address:  "Arlington",
		Areas:    "3 medium areas",
		PetIssue: "No",
		Slot:     "Monday 10:00am",
		Worker:   "Alice",
	}
}

func TestBookingConfirmedSendsAllChannels(t *testing.T) {
	sms := &mockMessageSender{configured: true}
	email := &mockEmailSender{}
	svc := NewService(sms, email, "whatsapp:+15550000001", "owner@example.com", nil)

	if err := svc.BookingConfirmed(context.Background(), testAppointment()); err != nil {
		t.Fatalf("BookingConfirmed: %v", err)
	}

	if len(sms.sent) != 1 {
		t.Fatalf("whatsapp sends = %d, want 1", len(sms.sent))
	}
	if sms.sent[0].to != "whatsapp:+15550000001" {
		t.Errorf("whatsapp to = %q", sms.sent[0].to)
	}
	for _, want := range []string{"New booking confirmed", "Jordan Lee", "Monday 10:00am", "Worker: Alice"} {
		if !strings.Contains(sms.sent[0].body, want) {
			t.Errorf("whatsapp body missing %q:\n%s", want, sms.sent[0].body)
		}
	}

	if len(email.sent) != 1 {
		t.Fatalf("email sends = %d, want 1", len(email.sent))
	}
	if email.sent[0].To != "owner@example.com" {
		t.Errorf("email to = %q", email.sent[0].To)
	}
}

func TestBookingConfirmedSkipsUnconfiguredChannels(t *testing.T) {
	sms := &mockMessageSender{configured: false}
	svc := NewService(sms, nil, "whatsapp:+15550000001", "", nil)

	if err := svc.BookingConfirmed(context.Background(), testAppointment()); err != nil {
		t.Fatalf("unconfigured channels must be skipped, not failed: %v", err)
	}
	if len(sms.sent) != 0 {
		t.Errorf("whatsapp sends = %d, want 0", len(sms.sent))
	}
}

func TestBookingConfirmedReportsChannelFailures(t *testing.T) {
	sms := &mockMessageSender{configured: true, callErr: errors.New("twilio down")}
	email := &mockEmailSender{}
	svc := NewService(sms, email, "whatsapp:+15550000001", "owner@example.com", nil)

	err := svc.BookingConfirmed(context.Background(), testAppointment())
	if err == nil {
		t.Fatal("expected failure to be reported")
	}
	// Email channel still attempted despite the whatsapp failure.
	if len(email.sent) != 1 {
		t.Errorf("email sends = %d, want 1", len(email.sent))
	}
}

func TestBookingSummaryFillsMissingFields(t *testing.T) {
	body := bookingSummary(&appointments.Appointment{Name: "Sam", Slot: "Tuesday 2:30pm"})
	if !strings.Contains(body, "Phone: N/A") {
		t.Errorf("missing fields should render as N/A:\n%s", body)
	}
}
