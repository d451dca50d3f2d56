package scoring

import (
	"github.com/treeline/discround/internal/errs"
)

// DefaultPar is assumed for holes without a recorded par, matching the
// usual disc golf convention.
const DefaultPar = 3

// Sentinel conditions reported by ScoreTable mutations.
var (
	ErrInvalidHole    = errs.New(errs.Validation, "hole number out of range")
	ErrInvalidStrokes = errs.New(errs.Validation, "strokes must be a positive integer")
	ErrInvalidPar     = errs.New(errs.Validation, "par must be a positive integer")
	ErrRoundClosed    = errs.New(errs.InvalidState, "round is completed and no longer accepts scores")
)

// ScoreTable holds per-player, per-hole stroke counts for one round. It is
// the raw input to the leaderboard, skins, and settlement calculators.
//
// ScoreTable is not safe for concurrent use; the owning round aggregate
// serializes access.
type ScoreTable struct {
	holeCount int
	scores    map[string]map[int]int // player id -> hole -> strokes
	pars      map[int]int
	frozen    bool
}

// NewScoreTable creates an empty table for a round with the given hole count.
func NewScoreTable(holeCount int) *ScoreTable {
	return &ScoreTable{
		holeCount: holeCount,
		scores:    make(map[string]map[int]int),
		pars:      make(map[int]int),
	}
}

// HoleCount returns the number of holes in the round.
func (t *ScoreTable) HoleCount() int { return t.holeCount }

// RecordScore records (or overwrites) a player's stroke count for a hole.
// Absence of a score means the hole has not been played yet.
func (t *ScoreTable) RecordScore(playerID string, hole, strokes int) error {
	if t.frozen {
		return ErrRoundClosed
	}
	if hole < 1 || hole > t.holeCount {
		return ErrInvalidHole
	}
	if strokes <= 0 {
		return ErrInvalidStrokes
	}
	holes, ok := t.scores[playerID]
	if !ok {
		holes = make(map[int]int)
		t.scores[playerID] = holes
	}
	holes[hole] = strokes
	return nil
}

// SetPar records the par for a hole. Holes without a recorded par default
// to DefaultPar.
func (t *ScoreTable) SetPar(hole, par int) error {
	if t.frozen {
		return ErrRoundClosed
	}
	if hole < 1 || hole > t.holeCount {
		return ErrInvalidHole
	}
	if par <= 0 {
		return ErrInvalidPar
	}
	t.pars[hole] = par
	return nil
}

// Freeze permanently closes the table to mutation. Further RecordScore and
// SetPar calls fail with ErrRoundClosed.
func (t *ScoreTable) Freeze() { t.frozen = true }

// Frozen reports whether the table has been frozen.
func (t *ScoreTable) Frozen() bool { return t.frozen }

// Snapshot returns an immutable deep copy of the table. Calculators only
// ever see snapshots, never partial concurrently-mutating state.
func (t *ScoreTable) Snapshot() *Snapshot {
	scores := make(map[string]map[int]int, len(t.scores))
	for player, holes := range t.scores {
		cp := make(map[int]int, len(holes))
		for hole, strokes := range holes {
			cp[hole] = strokes
		}
		scores[player] = cp
	}
	pars := make(map[int]int, len(t.pars))
	for hole, par := range t.pars {
		pars[hole] = par
	}
	return &Snapshot{holeCount: t.holeCount, scores: scores, pars: pars}
}

// Snapshot is a frozen copy of a ScoreTable. It is safe for concurrent
// reads and never mutated after construction.
type Snapshot struct {
	holeCount int
	scores    map[string]map[int]int
	pars      map[int]int
}

// HoleCount returns the number of holes in the round.
func (s *Snapshot) HoleCount() int { return s.holeCount }

// Strokes returns a player's stroke count for a hole, and whether the hole
// has been scored at all.
func (s *Snapshot) Strokes(playerID string, hole int) (int, bool) {
	strokes, ok := s.scores[playerID][hole]
	return strokes, ok
}

// Par returns the par for a hole, defaulting to DefaultPar when unset.
func (s *Snapshot) Par(hole int) int {
	if par, ok := s.pars[hole]; ok {
		return par
	}
	return DefaultPar
}

// HoleScores returns a copy of all recorded scores for one hole, keyed by
// player id.
func (s *Snapshot) HoleScores(hole int) map[string]int {
	out := make(map[string]int)
	for player, holes := range s.scores {
		if strokes, ok := holes[hole]; ok {
			out[player] = strokes
		}
	}
	return out
}

// Totals returns a player's total strokes and the number of holes with a
// recorded score.
func (s *Snapshot) Totals(playerID string) (total, holes int) {
	for _, strokes := range s.scores[playerID] {
		total += strokes
		holes++
	}
	return total, holes
}

// RangeTotals returns a player's summed strokes and scored-hole count over
// the inclusive hole range [from, to].
func (s *Snapshot) RangeTotals(playerID string, from, to int) (total, holes int) {
	for hole := from; hole <= to; hole++ {
		if strokes, ok := s.scores[playerID][hole]; ok {
			total += strokes
			holes++
		}
	}
	return total, holes
}
