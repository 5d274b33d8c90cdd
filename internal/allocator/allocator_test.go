package allocator

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pool(codes ...string) []Candidate {
	out := make([]Candidate, len(codes))
	for i, c := range codes {
		out[i] = Candidate{SeatID: uint64(i + 1), Code: c}
	}
	return out
}

func codes(seats []Candidate) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.Code
	}
	return out
}

func TestAllocate_SelectionLeavingGapIsRejected(t *testing.T) {
	res := Allocate(pool("A1", "A2", "A3", "A4"), 2, []string{"A1", "A3"})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonLonelySeat, res.Reason)
	assert.Empty(t, res.Seats)
}

// A single free seat squeezed between two selected seats counts as
// stranded even when free seats remain further along the row.
func TestAllocate_SelectionWithOneSeatGapInLongerRow(t *testing.T) {
	res := Allocate(pool("A1", "A2", "A3", "A4", "A5"), 2, []string{"A1", "A3"})
	assert.False(t, res.OK)
	assert.Equal(t, ReasonLonelySeat, res.Reason)
}

func TestAllocate_SelectionAccepted(t *testing.T) {
	res := Allocate(pool("A1", "A2", "A3", "A4"), 2, []string{"A1", "A2"})
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"A1", "A2"}, codes(res.Seats))
	assert.Equal(t, []uint64{1, 2}, []uint64{res.Seats[0].SeatID, res.Seats[1].SeatID})
}

func TestAllocate_SelectionKeepsCallerOrder(t *testing.T) {
	res := Allocate(pool("A1", "A2", "A3", "A4"), 0, []string{"a4", "A3"})
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"A4", "A3"}, codes(res.Seats))
}

func TestAllocate_SelectionUnavailableSeat(t *testing.T) {
	res := Allocate(pool("A1", "A2"), 1, []string{"A9"})
	assert.False(t, res.OK)
	assert.Equal(t, "seat A9 is not available", res.Reason)
}

func TestAllocate_SelectionDuplicatesAndGarbage(t *testing.T) {
	res := Allocate(pool("A1", "A2", "A3"), 2, []string{"A1", "a1"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "more than once")

	res = Allocate(pool("A1", "A2", "A3"), 1, []string{"1A"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "invalid seat code")
}

func TestAllocate_FirstContiguousRun(t *testing.T) {
	res := Allocate(pool("A1", "A2", "A3", "B1", "B2"), 2, nil)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"A1", "A2"}, codes(res.Seats))
}

func TestAllocate_UnsortedPool(t *testing.T) {
	res := Allocate(pool("B2", "A3", "B1", "A10", "A2"), 2, nil)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"A2", "A3"}, codes(res.Seats))
}

func TestAllocate_GapRestartsRun(t *testing.T) {
	res := Allocate(pool("A1", "A3", "A4", "A5"), 3, nil)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"A3", "A4", "A5"}, codes(res.Seats))
}

func TestAllocate_RowChangeRestartsRun(t *testing.T) {
	res := Allocate(pool("A5", "B6", "C1", "C2"), 2, nil)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"C1", "C2"}, codes(res.Seats))
}

func TestAllocate_FallbackFillsInPoolOrder(t *testing.T) {
	res := Allocate(pool("A1", "A3", "B5"), 2, nil)
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, []string{"A1", "A3"}, codes(res.Seats))
}

func TestAllocate_FallbackMustNotStrandSeat(t *testing.T) {
	// No run of three exists; filling A1 A2 B1 would strand B2.
	res := Allocate(pool("A1", "A2", "B1", "B2"), 3, nil)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNoFit, res.Reason)
}

func TestAllocate_NotEnoughSeats(t *testing.T) {
	res := Allocate(pool("A1", "A2"), 3, nil)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotEnough, res.Reason)

	res = Allocate(nil, 1, nil)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonNotEnough, res.Reason)
}

func TestAllocate_InvalidCount(t *testing.T) {
	res := Allocate(pool("A1"), 0, nil)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInvalidCount, res.Reason)
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	in := pool("B1", "A2", "A1")
	sel := []string{"A2", "A1"}
	_ = Allocate(in, 2, nil)
	_ = Allocate(in, 0, sel)
	assert.Equal(t, []string{"B1", "A2", "A1"}, codes(in))
	assert.Equal(t, []string{"A2", "A1"}, sel)
}

func TestAllocate_RunInLongRowKeepsNoLonelySeat(t *testing.T) {
	all := []string{"A1", "A2", "A3", "A4", "A5", "A6"}
	res := Allocate(pool(all...), 2, nil)
	require.True(t, res.OK, res.Reason)
	assert.False(t, CreatesLonelySeat(codes(res.Seats), all))
}

func TestCreatesLonelySeat(t *testing.T) {
	row := []string{"A1", "A2", "A3", "A4"}
	assert.True(t, CreatesLonelySeat([]string{"A2"}, row), "A1 stranded against the wall")
	assert.True(t, CreatesLonelySeat([]string{"A1", "A3"}, row))
	assert.False(t, CreatesLonelySeat([]string{"A1", "A2"}, row))
	assert.False(t, CreatesLonelySeat([]string{"A1", "A2", "A3", "A4"}, row))
	assert.False(t, CreatesLonelySeat([]string{"B1"}, []string{"B1"}))
}

// Whatever the pool, a successful allocation returns exactly the
// requested number of distinct seats drawn from the pool.
func TestAllocate_ReturnsExactCountOrFails(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rows := []string{"A", "B", "C"}
	for iter := 0; iter < 500; iter++ {
		var p []Candidate
		for _, r := range rows {
			for col := 1; col <= 8; col++ {
				if rng.Intn(3) > 0 {
					p = append(p, Candidate{SeatID: uint64(len(p) + 1), Code: fmt.Sprintf("%s%d", r, col)})
				}
			}
		}
		if len(p) == 0 {
			continue
		}
		n := rng.Intn(len(p)) + 1
		res := Allocate(p, n, nil)
		if !res.OK {
			assert.NotEmpty(t, res.Reason)
			continue
		}
		require.Len(t, res.Seats, n)
		inPool := make(map[uint64]bool, len(p))
		for _, c := range p {
			inPool[c.SeatID] = true
		}
		seen := make(map[uint64]bool, n)
		for _, s := range res.Seats {
			assert.True(t, inPool[s.SeatID])
			assert.False(t, seen[s.SeatID], "duplicate seat %s", s.Code)
			seen[s.SeatID] = true
		}
	}
}
