package guard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateInFlight is returned by Begin when the same idempotency key
// is already being processed.
var ErrDuplicateInFlight = errors.New("동일한 주문이 이미 처리 중입니다")

// CooldownError reports a repeat submission inside the per-account
// cool-down window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	secs := int(e.Remaining.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("주문 처리 중입니다. %d초 후 다시 시도해주세요", secs)
}

// DuplicateError reports a key that already completed within the
// retention window. The caller should treat this as a soft success and
// point the user at the existing order.
type DuplicateError struct {
	OrderID uuid.UUID
}

func (e *DuplicateError) Error() string {
	return "동일한 주문이 이미 존재합니다"
}

type registryEntry struct {
	done        bool
	orderID     uuid.UUID
	completedAt time.Time
}

// Registry tracks idempotency keys and per-account submission times on
// the server side. An entry lives from Begin until retention after
// Complete; within that window a repeated key is recognized rather than
// re-executed. Safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	cooldown   time.Duration
	retention  time.Duration
	now        func() time.Time
	lastSubmit map[uuid.UUID]time.Time
	entries    map[string]*registryEntry
}

// NewRegistry creates a Registry with the given per-account cool-down.
// Completed entries are retained for the same duration, matching the
// documented 50-second window.
func NewRegistry(cooldown time.Duration) *Registry {
	return &Registry{
		cooldown:   cooldown,
		retention:  cooldown,
		now:        time.Now,
		lastSubmit: make(map[uuid.UUID]time.Time),
		entries:    make(map[string]*registryEntry),
	}
}

func entryKey(userID uuid.UUID, requestID string) string {
	return userID.String() + "|" + requestID
}

// Begin claims an idempotency key for processing. It fails with
// ErrDuplicateInFlight if the key is currently executing, *DuplicateError
// if it recently completed, or *CooldownError if the account submitted
// too recently. On success the caller must end with Complete or Fail.
func (r *Registry) Begin(userID uuid.UUID, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)

	key := entryKey(userID, requestID)
	if e, ok := r.entries[key]; ok {
		if !e.done {
			return ErrDuplicateInFlight
		}
		return &DuplicateError{OrderID: e.orderID}
	}

	if last, ok := r.lastSubmit[userID]; ok {
		if elapsed := now.Sub(last); elapsed < r.cooldown {
			return &CooldownError{Remaining: r.cooldown - elapsed}
		}
	}

	r.lastSubmit[userID] = now
	r.entries[key] = &registryEntry{}
	return nil
}

// Complete marks a key as done, recording the created order for
// duplicate responses until the entry expires.
func (r *Registry) Complete(userID uuid.UUID, requestID string, orderID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[entryKey(userID, requestID)]; ok {
		e.done = true
		e.orderID = orderID
		e.completedAt = r.now()
	}
}

// Fail releases a key after a failed attempt so the client may retry
// with the same key. The cool-down stamp is kept.
func (r *Registry) Fail(userID uuid.UUID, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, entryKey(userID, requestID))
}

func (r *Registry) pruneLocked(now time.Time) {
	for key, e := range r.entries {
		if e.done && now.Sub(e.completedAt) > r.retention {
			delete(r.entries, key)
		}
	}
	for user, last := range r.lastSubmit {
		if now.Sub(last) > r.cooldown {
			delete(r.lastSubmit, user)
		}
	}
}
