// Package jobs tracks asynchronous audiobook generation requests.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/audiobookai/internal/cache"
	"github.com/nikhilbhutani/audiobookai/internal/publish"
)

var ErrNotFound = errors.New("job not found")

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is the externally visible state of a job.
type Status struct {
	ID        string                     `json:"id"`
	Topic     string                     `json:"topic"`
	Voice     string                     `json:"voice,omitempty"`
	State     State                      `json:"status"`
	Stage     string                     `json:"stage,omitempty"`
	Result    *publish.AudiobookResponse `json:"result,omitempty"`
	Error     *publish.ErrorResponse     `json:"error,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

// Store persists job statuses. *cache.Cache satisfies it; Get must return
// cache.ErrMiss for unknown keys.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Tracker struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	// Updates for one job come from a single worker; the lock only
	// serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

func NewTracker(store Store, ttl time.Duration) *Tracker {
	return &Tracker{store: store, ttl: ttl, now: time.Now}
}

// Create records a new queued job and returns it.
func (t *Tracker) Create(ctx context.Context, topic, voice string) (*Status, error) {
	now := t.now().UTC()
	s := &Status{
		ID:        uuid.NewString(),
		Topic:     topic,
		Voice:     voice,
		State:     StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Set(ctx, s.ID, s, t.ttl); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return s, nil
}

func (t *Tracker) Get(ctx context.Context, id string) (*Status, error) {
	var s Status
	if err := t.store.Get(ctx, id, &s); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &s, nil
}

// Update applies fn to the stored status and saves it.
func (t *Tracker) Update(ctx context.Context, id string, fn func(*Status)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	fn(s)
	s.UpdatedAt = t.now().UTC()
	if err := t.store.Set(ctx, id, s, t.ttl); err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return nil
}

// Delete removes a job that could not be enqueued.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	return t.store.Delete(ctx, id)
}
