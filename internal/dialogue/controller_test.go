package dialogue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/arlingtonsteamers/booking-agent/internal/appointments"
	"github.com/arlingtonsteamers/booking-agent/internal/booking"
	"github.com/arlingtonsteamers/booking-agent/internal/schedule"
	"github.com/arlingtonsteamers/booking-agent/internal/session"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

// fakeAppointments backs both the booking engine's conflict view and the
// controller's persistence writes.
type fakeAppointments struct {
	saved     []*appointments.Appointment
	insertErr error
}

func (f *fakeAppointments) SlotBooked(_ context.Context, slot string) (bool, error) {
	for _, a := range f.saved {
		if strings.EqualFold(a.Slot, slot) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointments) Count(_ context.Context) (int, error) {
	return len(f.saved), nil
}

func (f *fakeAppointments) Insert(_ context.Context, appt *appointments.Appointment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.saved = append(f.saved, appt)
	return nil
}

type fakeNotifier struct {
	notified []*appointments.Appointment
	err      error
}

func (f *fakeNotifier) BookingConfirmed(_ context.Context, appt *appointments.Appointment) error {
	f.notified = append(f.notified, appt)
	return f.err
}

type fixture struct {
	controller *Controller
	sessions   *session.Store
	store      *fakeAppointments
	notifier   *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	flow := DefaultFlow()
	sessions := session.NewStore(client, flow.InitialStep(), 24*time.Hour, logging.Default())
	avail := schedule.NewEngine(8, 18, []time.Weekday{time.Saturday, time.Sunday},
		schedule.WithClock(func() time.Time {
			return time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC) // a Monday
		}))
	store := &fakeAppointments{}
	engine := booking.NewEngine(avail, store, []string{"Alice", "Bob", "Charlie"}, logging.Default())
	notifier := &fakeNotifier{}

	return &fixture{
		controller: NewController(flow, sessions, avail, engine, store, notifier, logging.Default()),
		sessions:   sessions,
		store:      store,
		notifier:   notifier,
	}
}

const user = "whatsapp:+12025550100"

func (f *fixture) turn(t *testing.T, body string) string {
	t.Helper()
	reply, err := f.controller.Handle(context.Background(), user, body)
	require.NoError(t, err)
	return reply
}

func (f *fixture) stepOf(t *testing.T) string {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), user)
	require.NoError(t, err)
	return sess.Step
}

// walkToSlotStep answers every collection question.
func (f *fixture) walkToSlotStep(t *testing.T) {
	t.Helper()
	f.turn(t, "hi")
	f.turn(t, "Jordan")
	f.turn(t, "202-555-0100")
	f.turn(t, "1234 Wayne Drive, Arlington")
	f.turn(t, "jordan@example.com")
	f.turn(t, "5 rooms, 1 hallway")
	reply := f.turn(t, "no")
	require.Contains(t, reply, "availability", "expected slot prompt, got %q", reply)
	require.Equal(t, StepSlot, f.stepOf(t))
}

func TestGreetingPromptsForName(t *testing.T) {
	f := newFixture(t)
	reply := f.turn(t, "hi")
	require.Contains(t, reply, "What is your *name*?")
	require.Equal(t, "name", f.stepOf(t))
}

func TestStepMonotonicity(t *testing.T) {
	f := newFixture(t)
	f.turn(t, "hi")

	reply := f.turn(t, "Jordan")
	require.Contains(t, reply, "phone number")
	require.Equal(t, "phone", f.stepOf(t))

	sess, err := f.sessions.Get(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, "Jordan", sess.Field("name"))
}

func TestGreetingClearsCollectedFields(t *testing.T) {
	f := newFixture(t)
	f.turn(t, "hi")
	f.turn(t, "Jordan")
	f.turn(t, "202-555-0100")

	f.turn(t, "hello")
	sess, err := f.sessions.Get(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, "name", sess.Step)
	require.Empty(t, sess.Field("name"))
	require.Empty(t, sess.Field("phone"))
}

func TestRestartToken(t *testing.T) {
	f := newFixture(t)
	f.turn(t, "hi")
	f.turn(t, "Jordan")

	reply := f.turn(t, "restart")
	require.Contains(t, reply, "What is your *name*?")
	sess, err := f.sessions.Get(context.Background(), user)
	require.NoError(t, err)
	require.Empty(t, sess.Field("name"))
}

func TestMenuTokenDoesNotMutateStep(t *testing.T) {
	f := newFixture(t)
	f.turn(t, "hi")
	f.turn(t, "Jordan")
	require.Equal(t, "phone", f.stepOf(t))

	reply := f.turn(t, "menu")
	require.Contains(t, reply, "restart")
	require.Equal(t, "phone", f.stepOf(t))
}

func TestQuickReplyAliasExpansion(t *testing.T) {
	f := newFixture(t)
	f.turn(t, "hi")
	f.turn(t, "Jordan")
	f.turn(t, "202-555-0100")
	f.turn(t, "address_arlington")

	sess, err := f.sessions.Get(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, "Arlington, VA", sess.Field("address"))
}

func TestHappyPathBooking(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)

	reply := f.turn(t, "Book 10am Monday")
	require.Contains(t, reply, "Appointment Confirmed")
	require.Contains(t, reply, "Monday 10:00am")
	require.Contains(t, reply, "Worker: Alice") // 0 prior bookings
	require.Contains(t, reply, "Jordan")
	require.Contains(t, reply, "jordan@example.com")
	require.Contains(t, reply, "5 rooms, 1 hallway")

	require.Len(t, f.store.saved, 1)
	appt := f.store.saved[0]
	require.Equal(t, "Monday 10:00am", appt.Slot)
	require.Equal(t, "Alice", appt.Worker)
	require.Equal(t, "2025550100", appt.UserKey)
	require.Equal(t, "confirmed", appt.Status)

	require.Len(t, f.notifier.notified, 1)

	// Session cleared: the next message starts a fresh dialogue at name.
	require.Equal(t, "name", f.stepOf(t))
}

func TestDuplicateSlotKeepsState(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)
	f.turn(t, "Book 10am Monday")

	// Second user requests the same slot.
	second := "whatsapp:+12025550199"
	for _, msg := range []string{"hi", "Casey", "202-555-0199", "9 Elm St", "casey@example.com", "2 rooms", "yes"} {
		_, err := f.controller.Handle(context.Background(), second, msg)
		require.NoError(t, err)
	}

	reply, err := f.controller.Handle(context.Background(), second, "Book 10:00am monday")
	require.NoError(t, err)
	require.Contains(t, reply, "already booked")

	sess, err := f.sessions.Get(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, StepSlot, sess.Step)
	require.Len(t, f.store.saved, 1)
}

func TestGuidedDayThenTimeSelection(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)

	reply := f.turn(t, "day_0")
	require.Contains(t, reply, "Monday")
	require.Contains(t, reply, "Morning")
	require.Equal(t, StepTimeSelection, f.stepOf(t))

	reply = f.turn(t, "10am")
	require.Contains(t, reply, "Appointment Confirmed")
	require.Len(t, f.store.saved, 1)
	require.Equal(t, "Monday 10:00am", f.store.saved[0].Slot)
}

func TestTypedDayNameSelection(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)

	reply := f.turn(t, "tuesday")
	require.Contains(t, reply, "Tuesday")
	require.Equal(t, StepTimeSelection, f.stepOf(t))

	reply = f.turn(t, "2:30pm")
	require.Contains(t, reply, "Tuesday 2:30pm")
}

func TestBackFromTimeSelection(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)
	f.turn(t, "day_0")

	reply := f.turn(t, "back")
	require.Contains(t, reply, "availability")
	require.Equal(t, StepSlot, f.stepOf(t))
}

func TestUnrecognizedSlotInputRedisplaysMenu(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)

	reply := f.turn(t, "what do you have?")
	require.Contains(t, reply, "availability")
	require.Equal(t, StepSlot, f.stepOf(t))
}

func TestOutOfHoursRequestReprompts(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)

	reply := f.turn(t, "Book 7pm Monday")
	require.Contains(t, reply, "Business hours")
	require.Equal(t, StepSlot, f.stepOf(t))
}

func TestInsertFailureSurfacesRetryMessage(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)
	f.store.insertErr = context.DeadlineExceeded

	reply := f.turn(t, "Book 10am Monday")
	require.Contains(t, reply, "error booking")
	require.Equal(t, StepSlot, f.stepOf(t))
}

func TestRaceLostOnInsertReportsConflict(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)
	f.store.insertErr = appointments.ErrSlotTaken

	reply := f.turn(t, "Book 10am Monday")
	require.Contains(t, reply, "already booked")
}

func TestNotificationFailureDoesNotBlockConfirmation(t *testing.T) {
	f := newFixture(t)
	f.walkToSlotStep(t)
	f.notifier.err = context.DeadlineExceeded

	reply := f.turn(t, "Book 10am Monday")
	require.Contains(t, reply, "Appointment Confirmed")
	require.Len(t, f.store.saved, 1)
}
