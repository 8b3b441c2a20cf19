package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arlingtonsteamers/booking-agent/internal/appointments"
	"github.com/arlingtonsteamers/booking-agent/internal/booking"
	"github.com/arlingtonsteamers/booking-agent/internal/schedule"
	"github.com/arlingtonsteamers/booking-agent/internal/session"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

// Availability presents bookable slots for the slot-selection step.
type Availability interface {
	WeeklyAvailability() []schedule.DayAvailability
}

// Booker commits a slot request.
type Booker interface {
	BookSlot(ctx context.Context, requestText, userKey string) booking.Result
}

// AppointmentWriter persists confirmed bookings.
type AppointmentWriter interface {
	Insert(ctx context.Context, appt *appointments.Appointment) error
}

// Notifier tells the admin about a confirmed booking. Implementations are
// best-effort; the controller logs failures and never surfaces them.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt *appointments.Appointment) error
}

// Controller drives the step-by-step conversation. It owns the session
// exclusively; the booking engine never touches it.
type Controller struct {
	flow     Flow
	sessions *session.Store
	avail    Availability
	booker   Booker
	repo     AppointmentWriter
	notifier Notifier
	logger   *logging.Logger
}

// NewController wires the dialogue state machine.
func NewController(flow Flow, sessions *session.Store, avail Availability, booker Booker, repo AppointmentWriter, notifier Notifier, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		flow:     flow,
		sessions: sessions,
		avail:    avail,
		booker:   booker,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

var (
	greetingTokens = map[string]struct{}{"hi": {}, "hello": {}, "hey": {}}
	restartTokens  = map[string]struct{}{"restart": {}, "reset": {}, "start over": {}, "start_over": {}}
	menuTokens     = map[string]struct{}{"menu": {}, "help": {}, "options": {}}
)

// Handle processes one conversation turn and returns the reply text.
func (c *Controller) Handle(ctx context.Context, from, body string) (string, error) {
	msg := strings.TrimSpace(body)
	lower := strings.ToLower(msg)

	sess, err := c.sessions.Get(ctx, from)
	if err != nil {
		return "", fmt.Errorf("dialogue: load session: %w", err)
	}
	c.logger.Debug("inbound turn", "user_key", sess.UserKey, "step", sess.Step)

	// Control inputs work from any state.
	if _, ok := greetingTokens[lower]; ok {
		return c.restart(ctx, from)
	}
	if _, ok := restartTokens[lower]; ok {
		return c.restart(ctx, from)
	}
	if _, ok := menuTokens[lower]; ok && sess.Step != c.flow.InitialStep() {
		return c.menuText(), nil
	}

	if step := c.flow.step(sess.Step); step != nil {
		return c.collectField(ctx, from, step, msg)
	}

	switch sess.Step {
	case StepSlot:
		return c.handleSlotStep(ctx, from, sess, msg)
	case StepTimeSelection:
		return c.handleTimeSelection(ctx, from, sess, msg)
	default:
		// Unknown step in a stored session: restart rather than dead-end.
		c.logger.Warn("session at unknown step, restarting", "user_key", sess.UserKey, "step", sess.Step)
		return c.restart(ctx, from)
	}
}

// restart clears any collected state and re-enters at the first step.
func (c *Controller) restart(ctx context.Context, from string) (string, error) {
	if err := c.sessions.Clear(ctx, from); err != nil {
		return "", err
	}
	if _, err := c.sessions.Get(ctx, from); err != nil {
		return "", err
	}
	return c.flow.Greeting, nil
}

// collectField stores one answer and advances to the next step's prompt.
func (c *Controller) collectField(ctx context.Context, from string, step *FieldStep, msg string) (string, error) {
	value := msg
	if expanded, ok := step.Aliases[strings.ToLower(msg)]; ok {
		value = expanded
	}
	if value == "" {
		// Blank input re-prompts the current step instead of erroring.
		return step.Prompt, nil
	}

	if err := c.sessions.Update(ctx, from, step.Name, value); err != nil {
		return "", err
	}

	next := c.flow.nextStep(step.Name)
	if err := c.sessions.SetStep(ctx, from, next); err != nil {
		return "", err
	}

	if next == StepSlot {
		return "📅 Great! Thank you.\n\n" + c.slotPrompt(), nil
	}
	return c.flow.step(next).Prompt, nil
}

// handleSlotStep accepts either a day selection (guided path) or a direct
// free-text booking phrase.
func (c *Controller) handleSlotStep(ctx context.Context, from string, sess *session.Session, msg string) (string, error) {
	lower := strings.ToLower(msg)
	days := c.avail.WeeklyAvailability()

	if strings.HasPrefix(lower, "book") {
		return c.commit(ctx, from, sess, msg)
	}

	if day, ok := c.selectDay(days, lower); ok {
		if err := c.sessions.Update(ctx, from, "selectedDay", day.Day); err != nil {
			return "", err
		}
		if err := c.sessions.SetStep(ctx, from, StepTimeSelection); err != nil {
			return "", err
		}
		return dayTimesText(day), nil
	}

	// Unrecognized input: redisplay the slot menu, never dead-end.
	return c.slotPrompt(), nil
}

// selectDay resolves "day_<n>" tokens and bare weekday names against the
// presented availability.
func (c *Controller) selectDay(days []schedule.DayAvailability, lower string) (schedule.DayAvailability, bool) {
	if idx, ok := strings.CutPrefix(lower, "day_"); ok {
		if n, err := strconv.Atoi(idx); err == nil && n >= 0 && n < len(days) {
			return days[n], true
		}
		return schedule.DayAvailability{}, false
	}
	for _, day := range days {
		if strings.EqualFold(day.Day, lower) {
			return day, true
		}
	}
	return schedule.DayAvailability{}, false
}

// handleTimeSelection resolves the chosen time against the previously
// selected day and commits through the same parser-backed path as the
// free-text phrase.
func (c *Controller) handleTimeSelection(ctx context.Context, from string, sess *session.Session, msg string) (string, error) {
	lower := strings.ToLower(msg)

	if lower == "back" || lower == "back_to_days" {
		if err := c.sessions.SetStep(ctx, from, StepSlot); err != nil {
			return "", err
		}
		return c.slotPrompt(), nil
	}

	day := sess.Field("selectedDay")
	timeStr := msg
	// "time_<Day>_<time>" tokens carry their own day.
	if rest, ok := strings.CutPrefix(lower, "time_"); ok {
		if parts := strings.SplitN(rest, "_", 2); len(parts) == 2 {
			day, timeStr = parts[0], parts[1]
		}
	}
	if day == "" {
		if err := c.sessions.SetStep(ctx, from, StepSlot); err != nil {
			return "", err
		}
		return c.slotPrompt(), nil
	}

	return c.commit(ctx, from, sess, fmt.Sprintf("Book %s %s", timeStr, day))
}

// commit runs the booking engine and, on success, persists the
// appointment, notifies the admin best-effort, clears the session, and
// returns the confirmation summary. On failure the step is left untouched
// so the user can try another time.
func (c *Controller) commit(ctx context.Context, from string, sess *session.Session, requestText string) (string, error) {
	result := c.booker.BookSlot(ctx, requestText, sess.UserKey)
	if !result.Success {
		return result.Message, nil
	}

	// Slot and worker are written back for diagnostics; the session is
	// cleared right after, so this only matters if the clear fails.
	_ = c.sessions.Update(ctx, from, "slot", result.Slot)
	_ = c.sessions.Update(ctx, from, "worker", result.Worker)

	appt := &appointments.Appointment{
		UserKey:  sess.UserKey,
		Slot:     result.Slot,
		Worker:   result.Worker,
		Name:     sess.Field("name"),
		Phone:    sess.Field("phone"),
		Email:    sess.Field("email"),
		Address:  sess.Field("address"),
		Areas:    sess.Field("areas"),
		PetIssue: sess.Field("petIssue"),
		Status:   "confirmed",
	}
	if err := c.repo.Insert(ctx, appt); err != nil {
		if errors.Is(err, appointments.ErrSlotTaken) {
			// Lost the check-then-write race; same answer as the pre-check.
			return fmt.Sprintf("Slot %s is already booked. Please try another time.", result.Slot), nil
		}
		c.logger.Error("failed to save appointment", "error", err, "user_key", sess.UserKey)
		return "❌ Sorry, there was an error booking your appointment. Please try again or contact support.", nil
	}

	if c.notifier != nil {
		if err := c.notifier.BookingConfirmed(ctx, appt); err != nil {
			c.logger.Warn("admin notification failed", "error", err, "appointment_id", appt.ID)
		}
	}

	if err := c.sessions.Clear(ctx, from); err != nil {
		c.logger.Warn("failed to clear session after booking", "error", err, "user_key", sess.UserKey)
	}

	return confirmationText(appt), nil
}

func (c *Controller) menuText() string {
	return strings.Join([]string{
		"Here's what I can help with:",
		"• Answer the current question to continue your booking",
		"• Say *restart* to start over",
		"• Say *hi* to begin a new booking",
	}, "\n")
}

// slotPrompt renders the weekly availability overview with day indexes for
// guided selection.
func (c *Controller) slotPrompt() string {
	days := c.avail.WeeklyAvailability()

	var b strings.Builder
	b.WriteString("📅 Here's our availability for this week:\n")
	for i, day := range days {
		fmt.Fprintf(&b, "%d. %s (%s) — 🌅 Morning 8AM-12PM | ☀️ Afternoon 12PM-4PM | 🌆 Evening 4PM-6PM\n", i, day.Day, day.Date)
	}
	b.WriteString("\nReply with a day (e.g. *Monday* or *day_0*) to see times,")
	b.WriteString(` or book directly: "Book 10am Monday"`)
	return b.String()
}

func dayTimesText(day schedule.DayAvailability) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s (%s)\n\n⏰ Available time slots:\n", day.Day, day.Date)
	if len(day.Morning) > 0 {
		fmt.Fprintf(&b, "🌅 Morning: %s\n", strings.Join(day.Morning, ", "))
	}
	if len(day.Afternoon) > 0 {
		fmt.Fprintf(&b, "☀️ Afternoon: %s\n", strings.Join(day.Afternoon, ", "))
	}
	if len(day.Evening) > 0 {
		fmt.Fprintf(&b, "🌆 Evening: %s\n", strings.Join(day.Evening, ", "))
	}
	b.WriteString("\nReply with a time (e.g. *10am*), or *back* to choose a different day.")
	return b.String()
}

func confirmationText(appt *appointments.Appointment) string {
	return strings.Join([]string{
		"🎉 *Appointment Confirmed!*",
		"",
		"📅 Date & Time: " + appt.Slot,
		"👷 Worker: " + appt.Worker,
		"👤 Name: " + appt.Name,
		"📞 Phone: " + appt.Phone,
		"🏠 Address: " + appt.Address,
		"📧 Email: " + appt.Email,
		"🧼 Areas: " + appt.Areas,
		"🐶 Pet Issue: " + appt.PetIssue,
		"",
		"✅ Your appointment has been booked successfully!",
		"We'll send you a confirmation shortly. Thank you for choosing Arlington Steamers! 🧼✨",
	}, "\n")
}
