package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrInvalidRole indicates a role outside user/assistant.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyText indicates an empty message body.
	ErrEmptyText = errors.New("empty message text")
)

// Message is one immutable conversational exchange entry.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Info describes a session's stored state.
type Info struct {
	Exists       bool
	MessageCount int
	TTLRemaining time.Duration
}

// Config holds session store bounds.
type Config struct {
	// KeyPrefix namespaces session keys in Redis.
	KeyPrefix string

	// MaxMessages bounds the stored list; 100 messages is 50 exchanges.
	MaxMessages int

	// TTL is the sliding expiry window refreshed on every append.
	TTL time.Duration

	// HistoryCharBudget caps formatted history handed to prompts.
	HistoryCharBudget int
}

func (c *Config) applyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "docfind:session:"
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 100
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.HistoryCharBudget <= 0 {
		c.HistoryCharBudget = 4000
	}
}

// Store is the Redis-backed session log.
type Store struct {
	client redis.UniversalClient
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New creates a session Store. Zero config fields take defaults.
func New(client redis.UniversalClient, cfg Config, logger *zap.Logger) *Store {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, cfg: cfg, logger: logger, now: time.Now}
}

// Config returns the effective bounds.
func (s *Store) Config() Config {
	return s.cfg
}

func (s *Store) key(sessionID string) string {
	return s.cfg.KeyPrefix + sessionID
}

// Append stores one message: push, trim to the bound, refresh the TTL, all
// in one pipelined transaction so concurrent writers to the same session
// serialize cleanly.
func (s *Store) Append(ctx context.Context, sessionID, role, text string) error {
	return s.appendMessages(ctx, sessionID, Message{Role: role, Text: text, Timestamp: s.now()})
}

// AppendExchange stores a user question and the assistant answer as one
// atomic unit: either both land or neither does.
func (s *Store) AppendExchange(ctx context.Context, sessionID, question, answer string) error {
	now := s.now()
	return s.appendMessages(ctx, sessionID,
		Message{Role: RoleUser, Text: question, Timestamp: now},
		Message{Role: RoleAssistant, Text: answer, Timestamp: now},
	)
}

func (s *Store) appendMessages(ctx context.Context, sessionID string, msgs ...Message) error {
	payloads := make([]any, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
		}
		if m.Text == "" {
			return ErrEmptyText
		}
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encoding message: %w", err)
		}
		payloads = append(payloads, data)
	}

	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payloads...)
	pipe.LTrim(ctx, key, int64(-s.cfg.MaxMessages), -1)
	pipe.Expire(ctx, key, s.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending to session: %w", err)
	}
	return nil
}

// History returns at most limit most-recent messages in chronological
// order. A missing session yields an empty slice, not an error.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = s.cfg.MaxMessages
	}
	raw, err := s.client.LRange(ctx, s.key(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session history: %w", err)
	}

	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// A corrupt entry should not hide the rest of the history.
			s.logger.Warn("skipping undecodable session entry",
				zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Clear removes a session. Clearing an absent session is a no-op.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Info reports existence, stored message count, and remaining TTL.
func (s *Store) Info(ctx context.Context, sessionID string) (Info, error) {
	key := s.key(sessionID)

	count, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return Info{}, fmt.Errorf("reading session length: %w", err)
	}
	if count == 0 {
		return Info{}, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return Info{}, fmt.Errorf("reading session ttl: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	return Info{Exists: true, MessageCount: int(count), TTLRemaining: ttl}, nil
}
