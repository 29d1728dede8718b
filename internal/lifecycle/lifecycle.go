// Package lifecycle tracks process drain state during graceful shutdown.
package lifecycle

import "sync/atomic"

// Drain is set once the process receives SIGTERM/SIGINT. While draining,
// /health reports 503 so load balancers stop routing new requests here.
// The zero value is not draining.
type Drain struct {
	draining atomic.Bool
}

// Begin marks the process as draining. Subsequent calls are no-ops.
func (d *Drain) Begin() {
	d.draining.Store(true)
}

// Draining reports whether Begin has been called.
func (d *Drain) Draining() bool {
	return d.draining.Load()
}
