// Package receiver implements the receiving half of the RGB-D streaming
// session: per-frame reassembly from data and XOR parity packets,
// opportunistic recovery, and the report/NACK feedback sent back to the
// sender (§4.6). It is the authoritative implementation of reassembly —
// unlike the sender, which keeps the original implementation's control
// flow closely, the receiver's C++ counterpart only sketches a
// non-blocking poll loop and leaves reassembly largely as an exercise,
// so this package is written fresh in the sender package's idiom.
package receiver

import (
	"time"

	"github.com/rgbdcast/kinectcast/internal/fec"
	"github.com/rgbdcast/kinectcast/internal/protocol"
)

// frameState tracks the data and parity packets seen so far for one
// frame id, and the bookkeeping needed to recover missing members and
// detect completion.
type frameState struct {
	frameID     int32
	packetCount int32
	data        map[int32][]byte
	groups      map[int32]fec.Group
	firstSeenAt time.Time
	completed   bool
	reported    bool
}

func newFrameState(frameID, packetCount int32) *frameState {
	return &frameState{
		frameID:     frameID,
		packetCount: packetCount,
		data:        make(map[int32][]byte),
		groups:      make(map[int32]fec.Group),
		firstSeenAt: time.Now(),
	}
}

// setPacketCount records the frame's declared packet_count the first
// time it is observed; a parity packet may arrive before any data
// packet, in which case packetCount stays 0 (unknown) until one does.
func (f *frameState) setPacketCount(count int32) {
	if f.packetCount == 0 {
		f.packetCount = count
	}
}

// insertData stores a data packet's payload by index. A later duplicate
// of an already-known index is ignored.
func (f *frameState) insertData(index int32, payload []byte) {
	if _, ok := f.data[index]; ok {
		return
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.data[index] = cp
}

// insertParity stores an XOR group's parity bytes, keyed by the group's
// starting data-packet index.
func (f *frameState) insertParity(start, length int32, parity []byte) {
	if _, ok := f.groups[start]; ok {
		return
	}
	cp := make([]byte, len(parity))
	copy(cp, parity)
	f.groups[start] = fec.Group{Start: int(start), Length: int(length), Parity: cp}
}

// missingCount reports how many of the frame's declared packet_count
// data indices are still absent.
func (f *frameState) missingCount() int {
	return int(f.packetCount) - len(f.data)
}

// missingIndices returns the sorted list of absent data-packet indices,
// used to build a NACK.
func (f *frameState) missingIndices() []int32 {
	missing := make([]int32, 0, f.missingCount())
	for i := int32(0); i < f.packetCount; i++ {
		if _, ok := f.data[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// commonPayloadLength returns the payload length shared by every
// non-terminal data packet of the frame, derived from any non-terminal
// packet already received. It reports ok=false if none has arrived yet,
// in which case recovery for groups containing the terminal packet's
// neighbors cannot determine a safe truncation length.
func (f *frameState) commonPayloadLength() (int, bool) {
	terminal := f.packetCount - 1
	for idx, payload := range f.data {
		if idx != terminal {
			return len(payload), true
		}
	}
	return 0, false
}

// tryRecover attempts to reconstruct any single missing data packet in
// each known XOR group via fec.Recover, per §4.6 step 3. It is safe to
// call repeatedly as more packets arrive; already-recovered or
// already-unrecoverable groups are simply retried and will no-op or
// succeed once their missing member becomes the only gap.
func (f *frameState) tryRecover() {
	if f.missingCount() == 0 {
		return
	}
	commonLength, haveCommon := f.commonPayloadLength()
	terminal := int(f.packetCount - 1)

	for start, group := range f.groups {
		present := make(map[int][]byte, group.Length)
		for i := 0; i < group.Length; i++ {
			idx := start + int32(i)
			if payload, ok := f.data[idx]; ok {
				present[i] = payload
			}
		}
		if len(present) != group.Length-1 {
			continue
		}
		if !haveCommon {
			continue
		}
		recovered, err := fec.Recover(group, present, commonLength, terminal)
		if err != nil {
			continue
		}
		for i := 0; i < group.Length; i++ {
			idx := start + int32(i)
			if _, ok := present[i]; !ok {
				f.insertData(idx, recovered)
				break
			}
		}
	}
}

// isComplete reports whether every data-packet index 0..packetCount-1
// has been received or recovered.
func (f *frameState) isComplete() bool {
	return f.packetCount > 0 && f.missingCount() == 0
}

// message concatenates the frame's data payloads in index order and
// decodes the resulting frame message, per §4.6 step 4's "decode".
func (f *frameState) message() (protocol.FrameMessage, error) {
	payloads := make([][]byte, f.packetCount)
	for i := int32(0); i < f.packetCount; i++ {
		payloads[i] = f.data[i]
	}
	return protocol.DecodeFrameMessage(protocol.Reassemble(payloads))
}
