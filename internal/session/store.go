package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

const keyPrefix = "session:"

// Session is one user's in-progress dialogue state. Step is always one of
// the dialogue steps; collected answers live in Fields keyed by field name.
type Session struct {
	UserKey      string            `json:"user_key"`
	Step         string            `json:"step"`
	Fields       map[string]string `json:"fields"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
}

// Field returns a collected field value or "".
func (s *Session) Field(name string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[name]
}

// Store maps normalized user keys to sessions in Redis, one record per
// key. Every mutation is written through immediately; no dirty in-memory
// state survives a restart.
type Store struct {
	redis       *redis.Client
	initialStep string
	ttl         time.Duration
	logger      *logging.Logger
	now         func() time.Time
	onSweep     func(removed int)
}

// NewStore creates a session store. initialStep is the step assigned to
// freshly created sessions; ttl is the idle expiry horizon used by Sweep.
func NewStore(client *redis.Client, initialStep string, ttl time.Duration, logger *logging.Logger) *Store {
	if client == nil {
		panic("session: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		redis:       client,
		initialStep: initialStep,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithSweepObserver registers a callback receiving the removal count of
// each non-empty sweep, e.g. a metrics counter.
func (s *Store) WithSweepObserver(fn func(removed int)) *Store {
	s.onSweep = fn
	return s
}

// NormalizeKey collapses the channel address formats a user can arrive
// under into one session key: the scheme prefix (e.g. "whatsapp:") is
// dropped, every non-digit rune is dropped, and a single leading US
// country code "1" is trimmed. "whatsapp:+1-555-0100" and "5550100" land
// on the same key.
func NormalizeKey(user string) string {
	if idx := strings.Index(user, ":"); idx >= 0 {
		user = user[idx+1:]
	}
	var digits strings.Builder
	for _, r := range user {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) >= 8 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

// Get fetches the session for user, creating and persisting a fresh one at
// the initial step if none exists.
func (s *Store) Get(ctx context.Context, user string) (*Session, error) {
	key := NormalizeKey(user)

	data, err := s.redis.Get(ctx, keyPrefix+key).Bytes()
	if err == nil {
		var sess Session
		if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr == nil {
			if sess.Fields == nil {
				sess.Fields = make(map[string]string)
			}
			return &sess, nil
		}
		// Malformed record: fall through and recreate rather than wedging
		// the conversation.
		s.logger.Warn("session: discarding malformed record", "user_key", key)
	} else if err != redis.Nil {
		return nil, fmt.Errorf("session: get %s: %w", key, err)
	}

	now := s.now()
	sess := &Session{
		UserKey:      key,
		Step:         s.initialStep,
		Fields:       make(map[string]string),
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Update sets one field on the user's session (fetching or creating it
// first), refreshes last activity, and writes through. The reserved field
// "step" moves the dialogue step. Empty values are a no-op.
func (s *Store) Update(ctx context.Context, user, field, value string) error {
	if field == "" || value == "" {
		return nil
	}
	sess, err := s.Get(ctx, user)
	if err != nil {
		return err
	}
	if field == "step" {
		sess.Step = value
	} else {
		sess.Fields[field] = value
	}
	sess.LastActivity = s.now()
	return s.persist(ctx, sess)
}

// SetStep moves the session to the given dialogue step.
func (s *Store) SetStep(ctx context.Context, user, step string) error {
	return s.Update(ctx, user, "step", step)
}

// Clear removes the user's session.
func (s *Store) Clear(ctx context.Context, user string) error {
	key := NormalizeKey(user)
	if err := s.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("session: clear %s: %w", key, err)
	}
	return nil
}

// List returns every active session keyed by normalized user key.
// Diagnostic/admin use.
func (s *Store) List(ctx context.Context) (map[string]*Session, error) {
	sessions := make(map[string]*Session)

	iter := s.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		sessions[strings.TrimPrefix(iter.Val(), keyPrefix)] = &sess
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	return sessions, nil
}

// Sweep removes every session idle past the expiry horizon and returns how
// many were removed.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	removed := 0

	iter := s.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			// Unreadable records are swept too.
			if s.redis.Del(ctx, iter.Val()).Err() == nil {
				removed++
			}
			continue
		}
		if sess.LastActivity.Before(cutoff) {
			if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
				continue
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("session: sweep: %w", err)
	}
	if s.onSweep != nil && removed > 0 {
		s.onSweep(removed)
	}
	return removed, nil
}

// RunSweeper sweeps expired sessions on a fixed interval until ctx is
// cancelled. Failures are logged, never fatal.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("swept idle sessions", "removed", removed)
			}
		}
	}
}

func (s *Store) persist(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", sess.UserKey, err)
	}
	if err := s.redis.Set(ctx, keyPrefix+sess.UserKey, data, 0).Err(); err != nil {
		return fmt.Errorf("session: persist %s: %w", sess.UserKey, err)
	}
	return nil
}
