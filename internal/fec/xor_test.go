package fec

import (
	"bytes"
	"testing"
)

func payloads(n, size int, seed byte) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		p := make([]byte, size)
		for j := range p {
			p[j] = byte(i) + seed + byte(j)
		}
		out[i] = p
	}
	return out
}

func TestBuildGroupsCountMatchesCeilDiv(t *testing.T) {
	cases := []struct {
		n, groupSize, want int
	}{
		{10, 5, 2},
		{11, 5, 3},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
	}
	for _, c := range cases {
		groups := BuildGroups(payloads(c.n, 8, 0), c.groupSize)
		if len(groups) != c.want {
			t.Fatalf("n=%d groupSize=%d: expected %d groups, got %d", c.n, c.groupSize, c.want, len(groups))
		}
	}
}

func TestRecoverSingleMissingNonTerminal(t *testing.T) {
	members := payloads(5, 16, 3)
	groups := BuildGroups(members, 5)
	group := groups[0]

	// Drop index 2 (non-terminal in a 7-packet frame).
	present := map[int][]byte{0: members[0], 1: members[1], 3: members[3], 4: members[4]}
	recovered, err := Recover(group, present, 16, 6)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !bytes.Equal(recovered, members[2]) {
		t.Fatalf("recovered payload mismatch: want %v, got %v", members[2], recovered)
	}
}

func TestRecoverRefusesTerminalPacket(t *testing.T) {
	members := payloads(5, 16, 1)
	groups := BuildGroups(members, 5)
	group := groups[0]

	// terminalIndex equal to the frame's last packet index (4), which is
	// the one missing here.
	present := map[int][]byte{0: members[0], 1: members[1], 2: members[2], 3: members[3]}
	if _, err := Recover(group, present, 16, 4); err != ErrGroupUnrecoverable {
		t.Fatalf("expected ErrGroupUnrecoverable, got %v", err)
	}
}

func TestRecoverRequiresExactlyOneMissing(t *testing.T) {
	members := payloads(5, 16, 2)
	groups := BuildGroups(members, 5)
	group := groups[0]

	present := map[int][]byte{0: members[0], 1: members[1]}
	if _, err := Recover(group, present, 16, 99); err != ErrNotEnoughToRecover {
		t.Fatalf("expected ErrNotEnoughToRecover, got %v", err)
	}

	fullyPresent := map[int][]byte{0: members[0], 1: members[1], 2: members[2], 3: members[3], 4: members[4]}
	if _, err := Recover(group, fullyPresent, 16, 99); err != ErrNotEnoughToRecover {
		t.Fatalf("expected ErrNotEnoughToRecover when nothing missing, got %v", err)
	}
}

func TestRecoverTruncatesToCommonLength(t *testing.T) {
	members := [][]byte{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12, 13, 14},
	}
	// The longer third member makes the parity 6 bytes, so the recovered
	// member must be cut back to the common length of 4.
	groups := BuildGroups(members, 5)
	group := groups[0]

	present := map[int][]byte{0: members[0], 2: members[2]}
	recovered, err := Recover(group, present, 4, 99)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !bytes.Equal(recovered, members[1]) {
		t.Fatalf("recovered payload mismatch: want %v, got %v", members[1], recovered)
	}
}

// TestNackDrivenRecoveryAcrossMultipleGroups is the round-trip law: dropping any subset of
// data packets from a frame whose XOR groups each lose at most one
// member still yields full reconstruction without NACKs.
func TestNackDrivenRecoveryAcrossMultipleGroups(t *testing.T) {
	const n = 17
	const groupSize = 5
	members := payloads(n, 32, 9)
	groups := BuildGroups(members, groupSize)
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups for 17 packets at size 5, got %d", len(groups))
	}

	// Drop one member per group (never the terminal packet).
	dropped := map[int]bool{1: true, 7: true, 11: true, 15: true}
	present := map[int][]byte{}
	for i, m := range members {
		if !dropped[i] {
			present[i] = m
		}
	}

	for _, g := range groups {
		groupPresent := map[int][]byte{}
		missingAbs := -1
		for i := 0; i < g.Length; i++ {
			abs := g.Start + i
			if p, ok := present[abs]; ok {
				groupPresent[i] = p
			} else {
				missingAbs = abs
			}
		}
		if missingAbs == -1 {
			continue
		}
		recovered, err := Recover(g, groupPresent, 32, n-1)
		if err != nil {
			t.Fatalf("group starting at %d: Recover: %v", g.Start, err)
		}
		if !bytes.Equal(recovered, members[missingAbs]) {
			t.Fatalf("group starting at %d: recovered mismatch for index %d", g.Start, missingAbs)
		}
	}
}
