// Package allocator selects seats for a hold request.  It is a pure
// function over a snapshot of the available pool: no I/O, no state kept
// between calls, and the caller's slices are never modified.
//
// Two modes exist.  With an explicit selection the caller's seats are
// checked against the pool and the no-lonely-seat rule and returned as
// given.  Without one, the first contiguous run of the requested size is
// taken, scanning rows in order; when no run exists the request is filled
// from the remaining seats in pool order, and that fallback must still
// respect the no-lonely-seat rule.
package allocator

import (
	"fmt"
	"sort"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// Reasons returned to customers when an allocation fails.
const (
	ReasonInvalidCount = "requested seat count must be positive"
	ReasonNotEnough    = "not enough seats available"
	ReasonNoFit        = "no suitable group of seats found, please select seats manually"
	ReasonLonelySeat   = "selected seats would leave a single empty seat, please choose again"
)

// Candidate is a seat of the available pool.
type Candidate struct {
	SeatID uint64
	Code   string
}

// Result is the outcome of an allocation.  When OK is false, Reason
// carries a message that can be shown to the customer as is.
type Result struct {
	OK     bool
	Seats  []Candidate
	Reason string
}

func fail(reason string) Result { return Result{Reason: reason} }

type seat struct {
	Candidate
	row string
	col int
}

func (s seat) key() string { return model.SeatCode(s.row, s.col) }

// Allocate picks requested seats from pool, or validates selection when
// it is non-empty.  In selection mode requested is ignored; callers that
// need the two to agree check it before calling.
func Allocate(pool []Candidate, requested int, selection []string) Result {
	seats := parsePool(pool)
	if len(selection) > 0 {
		return allocateSelection(seats, selection)
	}
	if requested <= 0 {
		return fail(ReasonInvalidCount)
	}
	if len(seats) < requested {
		return fail(ReasonNotEnough)
	}
	if run := firstRun(seats, requested); run != nil {
		return Result{OK: true, Seats: candidates(run)}
	}

	// No contiguous run: fill in pool order.
	picked := seats[:requested]
	if strands(picked, seats) {
		return fail(ReasonNoFit)
	}
	return Result{OK: true, Seats: candidates(picked)}
}

// CreatesLonelySeat reports whether taking the selected codes out of the
// pool would leave a single free seat between two taken or missing
// seats of the same row.  Unparsable codes are ignored.
func CreatesLonelySeat(selection, pool []string) bool {
	var sel, all []seat
	for _, c := range selection {
		if s, ok := parse(Candidate{Code: c}); ok {
			sel = append(sel, s)
		}
	}
	for _, c := range pool {
		if s, ok := parse(Candidate{Code: c}); ok {
			all = append(all, s)
		}
	}
	return strands(sel, all)
}

func allocateSelection(pool []seat, selection []string) Result {
	byKey := make(map[string]seat, len(pool))
	for _, s := range pool {
		byKey[s.key()] = s
	}
	picked := make([]seat, 0, len(selection))
	seen := make(map[string]bool, len(selection))
	for _, code := range selection {
		row, col, err := model.ParseSeatCode(code)
		if err != nil {
			return fail(fmt.Sprintf("invalid seat code %q", code))
		}
		k := model.SeatCode(row, col)
		if seen[k] {
			return fail(fmt.Sprintf("seat %s selected more than once", k))
		}
		seen[k] = true
		s, ok := byKey[k]
		if !ok {
			return fail(fmt.Sprintf("seat %s is not available", k))
		}
		picked = append(picked, s)
	}
	if strands(picked, pool) {
		return fail(ReasonLonelySeat)
	}
	return Result{OK: true, Seats: candidates(picked)}
}

// firstRun scans the sorted pool for the first n seats that sit next to
// each other in one row.  A gap or a row change restarts the run at the
// current seat.
func firstRun(pool []seat, n int) []seat {
	start := 0
	for i := range pool {
		if i > start {
			prev := pool[i-1]
			if pool[i].row != prev.row || pool[i].col != prev.col+1 {
				start = i
			}
		}
		if i-start+1 == n {
			return pool[start : i+1]
		}
	}
	return nil
}

// strands is the no-lonely-seat predicate.  A neighbour of a selected
// seat is stranded when it stays free and the seat beyond it does not.
func strands(selected, pool []seat) bool {
	free := make(map[string]bool, len(pool))
	for _, s := range pool {
		free[s.key()] = true
	}
	taken := make(map[string]bool, len(selected))
	for _, s := range selected {
		taken[s.key()] = true
	}
	isFree := func(row string, col int) bool {
		k := model.SeatCode(row, col)
		return free[k] && !taken[k]
	}
	for _, s := range selected {
		for _, d := range [2]int{-1, 1} {
			if isFree(s.row, s.col+d) && !isFree(s.row, s.col+2*d) {
				return true
			}
		}
	}
	return false
}

// parsePool drops entries whose code cannot be parsed and returns the
// rest ordered by row, then column.
func parsePool(pool []Candidate) []seat {
	out := make([]seat, 0, len(pool))
	for _, c := range pool {
		if s, ok := parse(c); ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].row != out[j].row {
			return out[i].row < out[j].row
		}
		return out[i].col < out[j].col
	})
	return out
}

func parse(c Candidate) (seat, bool) {
	row, col, err := model.ParseSeatCode(c.Code)
	if err != nil {
		return seat{}, false
	}
	c.Code = model.SeatCode(row, col)
	return seat{Candidate: c, row: row, col: col}, true
}

func candidates(seats []seat) []Candidate {
	out := make([]Candidate, len(seats))
	for i, s := range seats {
		out[i] = s.Candidate
	}
	return out
}
