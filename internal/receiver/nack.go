package receiver

import (
	"sync"
	"time"
)

// nackTracker debounces NACK emission per frame id so a still-missing
// packet is not re-requested on every poll: once a NACK has gone out
// for a frame, the tracker waits at least debounce before allowing
// another, giving the sender's retransmission time to arrive. The
// pattern follows the gap-timeout/notified bookkeeping of a
// retransmission-request tracker in the wider example pack, adapted
// from a connection-wide sequence gap to a per-frame packet-index gap.
type nackTracker struct {
	mu        sync.Mutex
	notified  map[int32]time.Time
	debounce  time.Duration
}

func newNackTracker(debounce time.Duration) *nackTracker {
	return &nackTracker{
		notified: make(map[int32]time.Time),
		debounce: debounce,
	}
}

// shouldNotify reports whether a NACK may be sent now for frameID: true
// on first sight, or once debounce has elapsed since the last one.
func (t *nackTracker) shouldNotify(frameID int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.notified[frameID]
	return !ok || time.Since(last) >= t.debounce
}

// markNotified records that a NACK was just sent for frameID.
func (t *nackTracker) markNotified(frameID int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notified[frameID] = time.Now()
}

// forget drops a frame's debounce state, once it completes or is
// displaced by newer frames and no longer worth tracking.
func (t *nackTracker) forget(frameID int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.notified, frameID)
}
