// Package guard prevents duplicate order submissions. It has two halves:
// SubmissionGuard, a single-slot in-process guard for callers driving the
// API (hold at most one in-flight create at a time), and Registry, the
// server-side idempotency-key and cool-down tracker.
package guard

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSubmissionInFlight is returned by Acquire while a previous
// submission still holds the slot.
var ErrSubmissionInFlight = errors.New("submission already in progress")

// SubmissionGuard is the client-side half of the duplicate-submission
// protection: a single mutable slot holding at most one in-flight
// submission identifier. Nothing in the server wires it; it is meant to
// be embedded in clients and CLIs driving the order API. Acquire before
// any order-mutating network call; the returned key doubles as the
// request's idempotency key and the server-side Registry resolves
// replays of it. Release on any terminal outcome, including soft
// conflicts.
type SubmissionGuard struct {
	mu  sync.Mutex
	key string
}

// Acquire claims the slot and returns a fresh idempotency key, or
// ErrSubmissionInFlight if a submission is already pending. No network
// call should be made when Acquire fails.
func (g *SubmissionGuard) Acquire() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.key != "" {
		return "", ErrSubmissionInFlight
	}
	g.key = uuid.NewString()
	return g.key, nil
}

// Release clears the slot if key is the current holder. Stale releases
// from a superseded submission are ignored.
func (g *SubmissionGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.key == key {
		g.key = ""
	}
}

// InFlight reports whether the slot is held.
func (g *SubmissionGuard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.key != ""
}
