package queue

import (
	"sync"
	"testing"
)

func TestSPSCPushPopOrder(t *testing.T) {
	q := New(4)
	for i := int32(0); i < 4; i++ {
		if !q.TryPush(FramePacketSet{FrameID: i}) {
			t.Fatalf("push %d: expected success", i)
		}
	}
	// Ring rounds capacity up to a power of two, but 4 is already one;
	// a fifth push must fail since the ring is full.
	if q.TryPush(FramePacketSet{FrameID: 4}) {
		t.Fatalf("push into full ring unexpectedly succeeded")
	}

	for i := int32(0); i < 4; i++ {
		set, ok := q.TryPop()
		if !ok {
			t.Fatalf("pop %d: expected success", i)
		}
		if set.FrameID != i {
			t.Fatalf("pop %d: expected FrameID %d, got %d", i, i, set.FrameID)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("pop from empty ring unexpectedly succeeded")
	}
}

func TestSPSCCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	q := New(5)
	count := 0
	for q.TryPush(FramePacketSet{FrameID: int32(count)}) {
		count++
		if count > 16 {
			t.Fatalf("ring accepted more than 16 entries for requested capacity 5")
		}
	}
	if count != 8 {
		t.Fatalf("expected rounded capacity 8, accepted %d entries", count)
	}
}

func TestSPSCConcurrentProducerConsumer(t *testing.T) {
	q := New(16)
	const n = 10000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int32(0); i < n; i++ {
			for !q.TryPush(FramePacketSet{FrameID: i}) {
			}
		}
	}()

	received := make([]int32, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			if set, ok := q.TryPop(); ok {
				received = append(received, set.FrameID)
			}
		}
	}()

	wg.Wait()
	for i, v := range received {
		if v != int32(i) {
			t.Fatalf("out-of-order delivery at position %d: got %d", i, v)
		}
	}
}
