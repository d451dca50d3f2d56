package round

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/scoring"
	"github.com/treeline/discround/internal/sidebet"
)

// ResultStore is the persistence surface completion depends on. The status
// transition must be atomic: it fails when the stored round is not in the
// expected state, which is what makes completion safe across processes.
type ResultStore interface {
	TransitionRoundStatus(ctx context.Context, roundID string, from, to string) error
	SaveCompletionResult(ctx context.Context, roundID string, result *CompletionResult) error
}

// CompletionResult is everything a finished round derives: final standings,
// the skins outcome, and the settlement of every active side bet. Per-bet
// failures are reported alongside the successes, never silently swallowed.
type CompletionResult struct {
	RoundID     string                    `json:"round_id"`
	Leaderboard []scoring.LeaderboardEntry `json:"leaderboard"`
	Skins       *scoring.SkinsResult      `json:"skins,omitempty"`
	Settlements []*sidebet.Settlement     `json:"settlements"`
	BetFailures []sidebet.BetFailure      `json:"bet_failures,omitempty"`
	CompletedAt time.Time                 `json:"completed_at"`
}

// Coordinator orchestrates finalizing a round: it freezes scores, runs the
// leaderboard, skins, and bet settlement exactly once over one snapshot,
// and persists the derived results.
type Coordinator struct {
	store  ResultStore
	ledger *sidebet.Ledger
	clock  quartz.Clock
	logger *log.Logger
}

// NewCoordinator creates a completion coordinator.
func NewCoordinator(store ResultStore, ledger *sidebet.Ledger, clock quartz.Clock, logger *log.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		ledger: ledger,
		clock:  clock,
		logger: logger.WithPrefix("completion"),
	}
}

// Complete runs the completion sequence for the round. Exactly one caller
// wins the active -> completing transition; every other concurrent request
// fails with ErrAlreadyCompleted and no double settlement is produced.
func (c *Coordinator) Complete(ctx context.Context, r *Round, requesterID string) (*CompletionResult, error) {
	if !r.HasPlayer(requesterID) {
		return nil, errs.New(errs.Forbidden, "only a round participant can complete the round")
	}

	snap, err := r.beginCompletion()
	if err != nil {
		return nil, err
	}
	// Mirror the guard in the store so a concurrent process cannot also win.
	if err := c.store.TransitionRoundStatus(ctx, r.ID(), string(StatusActive), string(StatusCompleting)); err != nil {
		r.abortCompletion()
		return nil, err
	}

	result := &CompletionResult{RoundID: r.ID()}

	// Leaderboard and skins are pure functions over the same snapshot and
	// run concurrently.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Leaderboard = scoring.Leaderboard(snap, r.Players())
		return nil
	})
	g.Go(func() error {
		if cfg := r.Skins(); cfg.Enabled {
			result.Skins = scoring.CalculateSkins(snap, cfg)
		}
		return nil
	})
	_ = g.Wait()

	// Bets settle against the completed round; the aggregate is still
	// completing, so build the info by hand.
	info := r.Info()
	info.Completed = true
	settlements, failures, err := c.ledger.SettleAll(ctx, info, snap)
	if err != nil {
		c.abort(ctx, r)
		return nil, err
	}
	result.Settlements = settlements
	result.BetFailures = failures
	result.CompletedAt = c.clock.Now()
	if len(failures) > 0 {
		c.logger.Warn("Round completing with unsettled side bets",
			"round", r.ID(),
			"error", errs.Newf(errs.PartialFailure, "%d side bets failed to settle", len(failures)))
	}

	if err := c.store.SaveCompletionResult(ctx, r.ID(), result); err != nil {
		c.abort(ctx, r)
		return nil, errs.Wrap(errs.Internal, "persist completion result", err)
	}
	if err := c.store.TransitionRoundStatus(ctx, r.ID(), string(StatusCompleting), string(StatusCompleted)); err != nil {
		c.abort(ctx, r)
		return nil, err
	}
	r.finishCompletion(result.CompletedAt)

	c.logger.Info("Round completed",
		"round", r.ID(),
		"players", len(result.Leaderboard),
		"settlements", len(result.Settlements),
		"bet_failures", len(result.BetFailures))
	return result, nil
}

// abort rolls the guard state back after a failed completion, in memory and
// in the store, so the round can be completed again later.
func (c *Coordinator) abort(ctx context.Context, r *Round) {
	r.abortCompletion()
	if err := c.store.TransitionRoundStatus(ctx, r.ID(), string(StatusCompleting), string(StatusActive)); err != nil {
		c.logger.Error("Failed to roll back round status", "round", r.ID(), "error", err)
	}
}
