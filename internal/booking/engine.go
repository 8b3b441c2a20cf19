package booking

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/arlingtonsteamers/booking-agent/internal/observability/metrics"
	"github.com/arlingtonsteamers/booking-agent/internal/schedule"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

var tracer = otel.Tracer("booking-agent.internal.booking")

// SlotParser resolves free-form booking text into a canonical slot.
type SlotParser interface {
	ParseBookingRequest(text string) (schedule.Slot, error)
}

// Repository is the persisted-booking view the engine needs for conflict
// detection and worker rotation.
type Repository interface {
	SlotBooked(ctx context.Context, slot string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Result is the outcome of a booking attempt. On success Slot carries the
// canonical slot string and Worker the assigned worker; on failure Message
// carries a user-facing reason.
type Result struct {
	Success bool   `json:"success"`
	Slot    string `json:"slot,omitempty"`
	Worker  string `json:"worker,omitempty"`
	Message string `json:"message,omitempty"`
}

// Engine is the sole authority on conflict-free slot assignment. It does
// not persist anything itself; the dialogue controller writes the
// appointment after a successful result.
type Engine struct {
	parser  SlotParser
	repo    Repository
	workers []string
	logger  *logging.Logger
	metrics *metrics.BotMetrics
}

// NewEngine creates a booking engine over the given worker roster.
func NewEngine(parser SlotParser, repo Repository, workers []string, logger *logging.Logger) *Engine {
	if len(workers) == 0 {
		panic("booking: worker roster required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{parser: parser, repo: repo, workers: workers, logger: logger}
}

// WithMetrics registers booking-outcome counters. A nil receiver-side
// metrics value is safe and simply skips observation.
func (e *Engine) WithMetrics(m *metrics.BotMetrics) *Engine {
	e.metrics = m
	return e
}

// BookSlot parses the request, rejects conflicts against persisted
// bookings, and assigns a worker round-robin: workers[count mod K], where
// count is how many bookings exist at commit time. Reassignments after
// deletions are an accepted consequence of that rule.
func (e *Engine) BookSlot(ctx context.Context, requestText, userKey string) Result {
	ctx, span := tracer.Start(ctx, "booking.book_slot")
	defer span.End()

	slot, err := e.parser.ParseBookingRequest(requestText)
	if err != nil {
		span.SetAttributes(attribute.String("booking.reject", "parse"))
		e.metrics.ObserveBooking("rejected")
		return Result{Success: false, Message: err.Error()}
	}
	span.SetAttributes(attribute.String("booking.slot", slot.Canonical))

	booked, err := e.repo.SlotBooked(ctx, slot.Canonical)
	if err != nil {
		e.logger.Error("booking: conflict check failed", "error", err, "slot", slot.Canonical)
		e.metrics.ObserveBooking("error")
		return Result{Success: false, Message: "An error occurred while booking. Please try again."}
	}
	if booked {
		span.SetAttributes(attribute.String("booking.reject", "conflict"))
		e.metrics.ObserveBooking("conflict")
		return Result{
			Success: false,
			Message: fmt.Sprintf("Slot %s is already booked. Please try another time.", slot.Canonical),
		}
	}

	count, err := e.repo.Count(ctx)
	if err != nil {
		e.logger.Error("booking: count failed", "error", err)
		e.metrics.ObserveBooking("error")
		return Result{Success: false, Message: "An error occurred while booking. Please try again."}
	}
	worker := e.workers[count%len(e.workers)]

	e.logger.Info("slot reserved", "slot", slot.Canonical, "worker", worker, "user_key", userKey)
	e.metrics.ObserveBooking("confirmed")
	return Result{Success: true, Slot: slot.Canonical, Worker: worker}
}
