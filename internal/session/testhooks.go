package session

import "time"

// SetClock overrides the engine's and store's clock for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.store.now = now
}
