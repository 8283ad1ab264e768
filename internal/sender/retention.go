package sender

import (
	"sync"
	"time"

	"github.com/rgbdcast/kinectcast/internal/queue"
)

// RetentionStore is the sender's short-term store of recently sent
// frames, indexed by frame id, used to serve retransmissions without
// re-encoding, and the companion send-time map used for RTT (spec §3).
// It is only ever touched by the network worker goroutine, so it needs
// no locking beyond what lets tests peek at it concurrently.
type RetentionStore struct {
	mu        sync.Mutex
	frames    map[int32]queue.FramePacketSet
	sendTimes map[int32]time.Time
}

// NewRetentionStore creates an empty store.
func NewRetentionStore() *RetentionStore {
	return &RetentionStore{
		frames:    make(map[int32]queue.FramePacketSet),
		sendTimes: make(map[int32]time.Time),
	}
}

// Store records a freshly transmitted frame and its send time.
func (s *RetentionStore) Store(set queue.FramePacketSet, sentAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[set.FrameID] = set
	s.sendTimes[set.FrameID] = sentAt
}

// Get returns the retained packet set for a frame id, if still present.
func (s *RetentionStore) Get(frameID int32) (queue.FramePacketSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.frames[frameID]
	return set, ok
}

// SendTime returns the recorded send time for a frame id, if still
// present.
func (s *RetentionStore) SendTime(frameID int32) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sendTimes[frameID]
	return t, ok
}

// PurgeUpTo removes every entry with id <= ack, maintaining the
// retention invariant (spec §8): after processing a receiver report
// acknowledging frame A, the store holds no entry with id <= A.
func (s *RetentionStore) PurgeUpTo(ack int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.frames {
		if id <= ack {
			delete(s.frames, id)
			delete(s.sendTimes, id)
		}
	}
}

// Len reports the number of frames currently retained.
func (s *RetentionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
