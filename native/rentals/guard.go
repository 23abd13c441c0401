package rentals

import "sync"

// guard is a non-blocking lock shared by every entry point that mutates the
// ledger, custody or delegation. A second acquisition fails instead of
// waiting.
type guard struct {
	mu   sync.Mutex
	held bool
}

func (g *guard) tryEnter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	return true
}

func (g *guard) exit() {
	g.mu.Lock()
	g.held = false
	g.mu.Unlock()
}
