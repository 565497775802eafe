// Package taskstore records in-flight asynchronous generation tasks in
// Redis so a caller interrupted mid-poll can resume with the same task id
// after a restart. Entries expire on their own; the store never needs a
// cleanup job.
package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/filmforge/types"
)

// defaultTTL outlives the slowest poll ceiling with room for a restart.
const defaultTTL = 30 * time.Minute

// ErrNotFound is returned when a task id is unknown or expired.
var ErrNotFound = errors.New("task not found")

// Task is the resumable snapshot of one async generation.
type Task struct {
	ID        string       `json:"id"`             // our correlation id
	VendorID  string       `json:"vendor_id"`      // the vendor's opaque task id
	Kind      types.Kind   `json:"kind"`
	Provider  string       `json:"provider"`
	UserID    string       `json:"user_id,omitempty"`
	ProjectID string       `json:"project_id,omitempty"`
	Status    types.Status `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Store persists tasks in Redis under a shared key prefix.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithKeyPrefix overrides the default key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Store over an existing Redis client.
func New(client *redis.Client, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		client: client,
		prefix: "filmforge:task:",
		ttl:    defaultTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open dials Redis and verifies the connection.
func Open(ctx context.Context, addr, password string, db int, logger *zap.Logger, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(client, logger, opts...), nil
}

// Close releases the Redis connection.
func (s *Store) Close() error { return s.client.Close() }

// Ping reports store health.
func (s *Store) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Store) taskKey(id string) string { return s.prefix + "data:" + id }

func (s *Store) userKey(userID string) string { return s.prefix + "user:" + userID }

// Save persists a task snapshot. A missing ID is assigned; timestamps are
// maintained here so callers never touch them.
func (s *Store) Save(ctx context.Context, task *Task) error {
	if task == nil || task.VendorID == "" {
		return errors.New("task and vendor id are required")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = types.StatusPending
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.taskKey(task.ID), data, s.ttl)
	if task.UserID != "" {
		pipe.SAdd(ctx, s.userKey(task.UserID), task.ID)
		pipe.Expire(ctx, s.userKey(task.UserID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// Get returns the snapshot for one task id.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	data, err := s.client.Get(ctx, s.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// SetStatus updates only the lifecycle status of a stored task. Terminal
// statuses shorten the entry's remaining lifetime; the record is only
// needed long enough for the caller to collect the outcome.
func (s *Store) SetStatus(ctx context.Context, id string, status types.Status) error {
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	task.Status = status
	task.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	ttl := s.ttl
	if status.Terminal() {
		ttl = 5 * time.Minute
	}
	return s.client.Set(ctx, s.taskKey(id), data, ttl).Err()
}

// Pending lists the user's tasks that are still worth re-polling. Expired
// members of the user index are skipped silently.
func (s *Store) Pending(ctx context.Context, userID string) ([]*Task, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user tasks: %w", err)
	}

	var out []*Task
	for _, id := range ids {
		task, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.client.SRem(ctx, s.userKey(userID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !task.Status.Terminal() {
			out = append(out, task)
		}
	}
	return out, nil
}

// Delete removes a task snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	task, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.taskKey(id))
	if task.UserID != "" {
		pipe.SRem(ctx, s.userKey(task.UserID), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}
