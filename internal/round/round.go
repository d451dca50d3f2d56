// Package round owns the Round aggregate and its completion lifecycle. A
// round is the single contested resource in the engine: all status checks
// and score mutations go through one mutex per round, so the transition out
// of active is mutually exclusive with score recording.
package round

import (
	"sort"
	"sync"
	"time"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/scoring"
	"github.com/treeline/discround/internal/sidebet"
)

// Status is a round's lifecycle state. Completing is a transient guard that
// prevents a second completion from running settlement concurrently.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
)

// Sentinel conditions reported by round operations.
var (
	ErrAlreadyCompleted = errs.New(errs.InvalidState, "round completion already ran or is running")
	ErrPlayerNotInRound = errs.New(errs.NotFound, "player is not part of this round")
)

// Round is one played session across a fixed number of holes, owned as a
// single aggregate behind one exclusion point.
type Round struct {
	mu sync.Mutex

	id          string
	name        string
	courseName  string
	createdBy   string
	players     []string
	skins       scoring.SkinsConfig
	table       *scoring.ScoreTable
	status      Status
	createdAt   time.Time
	completedAt time.Time
}

// Params describes a new round.
type Params struct {
	ID         string
	Name       string
	CourseName string
	CreatedBy  string
	Players    []string
	HoleCount  int
	Skins      scoring.SkinsConfig
	CreatedAt  time.Time
}

// New validates and creates an active round. The creator is always a player.
func New(p Params) (*Round, error) {
	if p.HoleCount <= 0 {
		return nil, errs.New(errs.Validation, "round needs at least one hole")
	}
	if len(p.Players) == 0 {
		return nil, errs.New(errs.Validation, "round needs at least one player")
	}
	if p.Skins.Enabled && p.Skins.StakePerHole <= 0 {
		return nil, errs.New(errs.Validation, "skins stake must be a positive amount")
	}
	players := append([]string(nil), p.Players...)
	sort.Strings(players)
	for i := 1; i < len(players); i++ {
		if players[i] == players[i-1] {
			return nil, errs.Newf(errs.Validation, "player %s listed twice", players[i])
		}
	}
	creatorListed := false
	for _, id := range players {
		if id == p.CreatedBy {
			creatorListed = true
			break
		}
	}
	if !creatorListed {
		return nil, errs.New(errs.Validation, "round creator must be one of the players")
	}

	return &Round{
		id:         p.ID,
		name:       p.Name,
		courseName: p.CourseName,
		createdBy:  p.CreatedBy,
		players:    players,
		skins:      p.Skins,
		table:      scoring.NewScoreTable(p.HoleCount),
		status:     StatusActive,
		createdAt:  p.CreatedAt,
	}, nil
}

// Restore rebuilds an aggregate from persisted state, replaying scores and
// pars into a fresh table. Used when hydrating from the store.
func Restore(p Params, status Status, completedAt time.Time, scores map[string]map[int]int, pars map[int]int) (*Round, error) {
	r, err := New(p)
	if err != nil {
		return nil, err
	}
	for playerID, holes := range scores {
		for hole, strokes := range holes {
			if err := r.table.RecordScore(playerID, hole, strokes); err != nil {
				return nil, err
			}
		}
	}
	for hole, par := range pars {
		if err := r.table.SetPar(hole, par); err != nil {
			return nil, err
		}
	}
	// A round persisted as completing never finished its completion run;
	// treat it as active so completion can be retried.
	if status == StatusCompleted {
		r.status = StatusCompleted
		r.completedAt = completedAt
		r.table.Freeze()
	}
	return r, nil
}

func (r *Round) ID() string        { return r.id }
func (r *Round) Name() string      { return r.name }
func (r *Round) Course() string    { return r.courseName }
func (r *Round) CreatedBy() string { return r.createdBy }
func (r *Round) HoleCount() int    { return r.table.HoleCount() }
func (r *Round) CreatedAt() time.Time { return r.createdAt }

// Players returns the round's players in id order.
func (r *Round) Players() []string {
	return append([]string(nil), r.players...)
}

// Skins returns the round's skins configuration.
func (r *Round) Skins() scoring.SkinsConfig { return r.skins }

// Status returns the current lifecycle state.
func (r *Round) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// CompletedAt returns when the round completed, zero while active.
func (r *Round) CompletedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completedAt
}

// HasPlayer reports whether the player is part of the round.
func (r *Round) HasPlayer(playerID string) bool {
	for _, id := range r.players {
		if id == playerID {
			return true
		}
	}
	return false
}

// Info returns the slice of round state the side-bet ledger needs.
func (r *Round) Info() sidebet.RoundInfo {
	return sidebet.RoundInfo{
		ID:        r.id,
		OwnerID:   r.createdBy,
		Players:   r.Players(),
		HoleCount: r.HoleCount(),
		Completed: r.Status() == StatusCompleted,
	}
}

// RecordScore appends a stroke entry. The status check shares the mutex
// with completion, so no score can land after the settlement snapshot is
// taken.
func (r *Round) RecordScore(playerID string, hole, strokes int) error {
	if !r.HasPlayer(playerID) {
		return ErrPlayerNotInRound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusActive {
		return scoring.ErrRoundClosed
	}
	return r.table.RecordScore(playerID, hole, strokes)
}

// SetPar records the par for a hole while the round is active.
func (r *Round) SetPar(hole, par int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusActive {
		return scoring.ErrRoundClosed
	}
	return r.table.SetPar(hole, par)
}

// Snapshot returns an immutable copy of the score table.
func (r *Round) Snapshot() *scoring.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Snapshot()
}

// beginCompletion atomically moves active -> completing and returns the
// settlement snapshot. A round already completing or completed reports
// ErrAlreadyCompleted, so at most one completion sequence runs.
func (r *Round) beginCompletion() (*scoring.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusActive {
		return nil, ErrAlreadyCompleted
	}
	r.status = StatusCompleting
	return r.table.Snapshot(), nil
}

// finishCompletion moves completing -> completed and freezes the table.
func (r *Round) finishCompletion(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusCompleted
	r.completedAt = at
	r.table.Freeze()
}

// abortCompletion returns the round to active after a failed completion so
// no state is left corrupted.
func (r *Round) abortCompletion() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusCompleting {
		r.status = StatusActive
	}
}
