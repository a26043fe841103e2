package guard

import "time"

// SetClock swaps the registry's clock for deterministic tests.
func SetClock(r *Registry, now func() time.Time) {
	r.now = now
}
