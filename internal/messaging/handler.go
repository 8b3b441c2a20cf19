package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/arlingtonsteamers/booking-agent/internal/observability/metrics"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

var webhookTracer = otel.Tracer("booking-agent.internal.messaging.webhook")

const fallbackReply = "Sorry, something went wrong on our side. Please try again in a moment."

// DialogueHandler processes one conversation turn and returns the reply.
type DialogueHandler interface {
	Handle(ctx context.Context, from, body string) (string, error)
}

// Handler terminates the Twilio messaging webhook: it validates the
// request, runs the dialogue turn, and answers with TwiML. Turn failures
// never reach the transport as errors; the user gets a generic fallback.
type Handler struct {
	authToken string
	dialogue  DialogueHandler
	metrics   *metrics.BotMetrics
	logger    *logging.Logger
	env       string
	startedAt time.Time
}

// NewHandler creates the webhook handler. authToken enables Twilio
// signature validation when non-empty.
func NewHandler(authToken string, dialogue DialogueHandler, m *metrics.BotMetrics, env string, logger *logging.Logger) *Handler {
	if dialogue == nil {
		panic("messaging: dialogue handler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		authToken: authToken,
		dialogue:  dialogue,
		metrics:   m,
		logger:    logger,
		env:       env,
		startedAt: time.Now(),
	}
}

// Webhook handles POST /whatsapp requests from Twilio.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.webhook")
	defer span.End()

	// Latency covers every exit, rejected requests included.
	start := time.Now()
	defer func() {
		h.metrics.ObserveWebhookLatency(time.Since(start).Seconds())
	}()

	if h.authToken != "" {
		if !ValidateTwilioSignature(r, h.authToken, buildAbsoluteURL(r)) {
			h.logger.Warn("invalid twilio signature")
			h.metrics.ObserveInbound("invalid_signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	webhook, err := ParseWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse webhook", "error", err)
		h.metrics.ObserveInbound("bad_request")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if webhook.From == "" {
		h.logger.Error("webhook missing sender information")
		h.metrics.ObserveInbound("bad_request")
		http.Error(w, "Missing sender information", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("messaging.message_sid", webhook.MessageSid),
		attribute.String("messaging.from", webhook.From),
	)

	reply := h.runTurn(ctx, webhook)

	h.metrics.ObserveInbound("ok")

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(TwiML(reply)))
}

// runTurn executes the dialogue turn, converting errors and panics into
// the generic fallback reply so the conversation never dead-ends.
func (h *Handler) runTurn(ctx context.Context, webhook *WebhookRequest) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic during dialogue turn", "panic", rec, "from", webhook.From)
			reply = fallbackReply
		}
	}()

	reply, err := h.dialogue.Handle(ctx, webhook.From, webhook.Body)
	if err != nil {
		h.logger.Error("dialogue turn failed", "error", err, "from", webhook.From)
		return fallbackReply
	}
	return reply
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime_secs": int(time.Since(h.startedAt).Seconds()),
		"environment": h.env,
	})
}

// buildAbsoluteURL reconstructs the public URL Twilio signed against.
func buildAbsoluteURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
			scheme = forwarded
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host + r.RequestURI
}
