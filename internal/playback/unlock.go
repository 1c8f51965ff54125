package playback

import (
	"sync"
	"sync/atomic"
)

// Unlocker performs the one-time priming of the output channel. It must be
// called synchronously from the gesture that starts a turn.
type Unlocker struct {
	output Output

	mu    sync.Mutex
	token atomic.Bool
}

func NewUnlocker(output Output) *Unlocker {
	return &Unlocker{output: output}
}

// Unlock primes the output until one prime succeeds. After that it is a no-op;
// a failed prime leaves the token unset so the next gesture tries again.
func (u *Unlocker) Unlock() error {
	if u.token.Load() {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.token.Load() {
		return nil
	}
	if err := u.output.Prime(); err != nil {
		return err
	}
	u.token.Store(true)
	return nil
}

// Unlocked reports whether a prime cycle has succeeded.
func (u *Unlocker) Unlocked() bool {
	return u.token.Load()
}
