package sender

import (
	"testing"
	"time"

	"github.com/rgbdcast/kinectcast/internal/queue"
)

func TestRetentionStoreStoreAndGet(t *testing.T) {
	s := NewRetentionStore()
	set := queue.FramePacketSet{FrameID: 5, Data: [][]byte{{1, 2, 3}}}
	s.Store(set, time.Now())

	got, ok := s.Get(5)
	if !ok {
		t.Fatalf("expected frame 5 to be present")
	}
	if len(got.Data) != 1 || got.Data[0][0] != 1 {
		t.Fatalf("unexpected stored set: %+v", got)
	}
	if _, ok := s.Get(6); ok {
		t.Fatalf("expected frame 6 to be absent")
	}
}

func TestRetentionStorePurgeUpToRemovesAckedAndEarlier(t *testing.T) {
	s := NewRetentionStore()
	for id := int32(1); id <= 5; id++ {
		s.Store(queue.FramePacketSet{FrameID: id}, time.Now())
	}
	if s.Len() != 5 {
		t.Fatalf("expected 5 retained frames, got %d", s.Len())
	}

	s.PurgeUpTo(3)
	if s.Len() != 2 {
		t.Fatalf("expected 2 retained frames after purge, got %d", s.Len())
	}
	for id := int32(1); id <= 3; id++ {
		if _, ok := s.Get(id); ok {
			t.Fatalf("expected frame %d to be purged", id)
		}
	}
	for id := int32(4); id <= 5; id++ {
		if _, ok := s.Get(id); !ok {
			t.Fatalf("expected frame %d to still be retained", id)
		}
	}
}

func TestRetentionStoreSendTime(t *testing.T) {
	s := NewRetentionStore()
	sentAt := time.Now()
	s.Store(queue.FramePacketSet{FrameID: 1}, sentAt)

	got, ok := s.SendTime(1)
	if !ok || !got.Equal(sentAt) {
		t.Fatalf("expected recorded send time %v, got %v ok=%v", sentAt, got, ok)
	}
	if _, ok := s.SendTime(2); ok {
		t.Fatalf("expected no send time for unseen frame")
	}
}
