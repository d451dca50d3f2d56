package sidebet

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/scoring"
)

// Sentinel conditions reported by ledger operations.
var (
	ErrAlreadySettled   = errs.New(errs.InvalidState, "side bet is already settled")
	ErrAlreadyCancelled = errs.New(errs.InvalidState, "side bet is cancelled")
	ErrRoundCompleted   = errs.New(errs.InvalidState, "round is completed")
	ErrRoundNotComplete = errs.New(errs.InvalidState, "round must be completed before settlement")
)

// Store is the persistence surface the ledger depends on. Lookups for
// unknown ids must fail with an errs.NotFound kind.
type Store interface {
	SideBet(ctx context.Context, betID string) (*SideBet, error)
	SideBetsByRound(ctx context.Context, roundID string) ([]*SideBet, error)
	SaveSideBet(ctx context.Context, bet *SideBet) error
	Settlement(ctx context.Context, betID string) (*Settlement, error)
	SaveSettlement(ctx context.Context, settlement *Settlement) error
}

// Ledger manages bet definitions, participant stakes, and settlement
// against frozen round results.
type Ledger struct {
	store  Store
	clock  quartz.Clock
	logger *log.Logger
}

// NewLedger creates a ledger over the given store.
func NewLedger(store Store, clock quartz.Clock, logger *log.Logger) *Ledger {
	return &Ledger{
		store:  store,
		clock:  clock,
		logger: logger.WithPrefix("sidebet"),
	}
}

// CreateParams describes a new bet.
type CreateParams struct {
	Name         string
	Description  string
	Category     Category
	Stake        int
	CreatorID    string
	Participants []string
	HoleStart    int
	HoleEnd      int
}

// Create validates and records a new active bet on the round.
func (l *Ledger) Create(ctx context.Context, round RoundInfo, p CreateParams) (*SideBet, error) {
	if round.Completed {
		return nil, ErrRoundCompleted
	}
	if p.Name == "" {
		return nil, errs.New(errs.Validation, "bet name is required")
	}
	if p.Stake <= 0 {
		return nil, errs.New(errs.Validation, "stake must be a positive amount")
	}
	if len(p.Participants) == 0 {
		return nil, errs.New(errs.Validation, "bet needs at least one participant")
	}
	if !p.Category.Valid() {
		return nil, errs.Newf(errs.Validation, "unknown bet category %q", p.Category)
	}
	if !round.HasPlayer(p.CreatorID) {
		return nil, errs.New(errs.Forbidden, "bet creator must be a player in the round")
	}
	seen := make(map[string]bool, len(p.Participants))
	for _, id := range p.Participants {
		if !round.HasPlayer(id) {
			return nil, errs.Newf(errs.Validation, "participant %s is not a player in the round", id)
		}
		if seen[id] {
			return nil, errs.Newf(errs.Validation, "participant %s listed twice", id)
		}
		seen[id] = true
	}
	if p.Category == CategoryHoleRange {
		if p.HoleStart < 1 || p.HoleEnd > round.HoleCount || p.HoleStart > p.HoleEnd {
			return nil, errs.Newf(errs.Validation,
				"hole range %d-%d is outside holes 1-%d", p.HoleStart, p.HoleEnd, round.HoleCount)
		}
	}

	participants := append([]string(nil), p.Participants...)
	sort.Strings(participants)

	bet := &SideBet{
		ID:           uuid.NewString(),
		RoundID:      round.ID,
		Name:         p.Name,
		Description:  p.Description,
		Category:     p.Category,
		Stake:        p.Stake,
		CreatorID:    p.CreatorID,
		Participants: participants,
		HoleStart:    p.HoleStart,
		HoleEnd:      p.HoleEnd,
		Status:       StatusActive,
		CreatedAt:    l.clock.Now(),
	}
	if err := l.store.SaveSideBet(ctx, bet); err != nil {
		return nil, errs.Wrap(errs.Internal, "save side bet", err)
	}

	l.logger.Info("Side bet created",
		"bet", bet.ID, "round", round.ID, "category", bet.Category, "stake", bet.Stake)
	return bet, nil
}

// Cancel voids an active bet. Only the bet creator or the round owner may
// cancel, and only while the round is still active.
func (l *Ledger) Cancel(ctx context.Context, round RoundInfo, betID, requesterID string) (*SideBet, error) {
	bet, err := l.store.SideBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.RoundID != round.ID {
		return nil, errs.New(errs.NotFound, "side bet not found in this round")
	}
	if requesterID != bet.CreatorID && requesterID != round.OwnerID {
		return nil, errs.New(errs.Forbidden, "only the bet creator or round owner can cancel a bet")
	}
	switch bet.Status {
	case StatusSettled:
		return nil, ErrAlreadySettled
	case StatusCancelled:
		return nil, ErrAlreadyCancelled
	}
	if round.Completed {
		return nil, ErrRoundCompleted
	}

	bet.Status = StatusCancelled
	if err := l.store.SaveSideBet(ctx, bet); err != nil {
		return nil, errs.Wrap(errs.Internal, "save side bet", err)
	}

	l.logger.Info("Side bet cancelled", "bet", bet.ID, "round", round.ID, "by", requesterID)
	return bet, nil
}

// Settle resolves a bet against the frozen snapshot. Settlement is
// idempotent: a bet that already settled returns its prior settlement
// unchanged, and a failed settlement leaves the bet untouched.
func (l *Ledger) Settle(ctx context.Context, round RoundInfo, betID string, snap *scoring.Snapshot) (*Settlement, error) {
	bet, err := l.store.SideBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.RoundID != round.ID {
		return nil, errs.New(errs.NotFound, "side bet not found in this round")
	}
	if bet.Status == StatusSettled {
		return l.store.Settlement(ctx, betID)
	}
	if bet.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !round.Completed {
		return nil, ErrRoundNotComplete
	}

	settlement, err := resolve(bet, snap, l.clock.Now())
	if err != nil {
		return nil, err
	}

	// Persist the settlement before flipping the bet so a crash between the
	// two writes can only leave an active bet, never a settled bet with no
	// settlement record.
	if err := l.store.SaveSettlement(ctx, settlement); err != nil {
		return nil, errs.Wrap(errs.Internal, "save settlement", err)
	}
	bet.Status = StatusSettled
	if err := l.store.SaveSideBet(ctx, bet); err != nil {
		return nil, errs.Wrap(errs.Internal, "save side bet", err)
	}

	l.logger.Info("Side bet settled",
		"bet", bet.ID, "round", round.ID, "winners", settlement.Winners)
	return settlement, nil
}

// BetFailure records a single bet that could not settle during round
// completion.
type BetFailure struct {
	BetID string `json:"bet_id"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// SettleAll settles every non-cancelled bet on the round. Bets already
// settled by an earlier completion attempt contribute their stored
// settlement, so a retried completion still reports the full set. One bet's
// failure never blocks the others; failures are collected and reported
// alongside the successful settlements.
func (l *Ledger) SettleAll(ctx context.Context, round RoundInfo, snap *scoring.Snapshot) ([]*Settlement, []BetFailure, error) {
	bets, err := l.store.SideBetsByRound(ctx, round.ID)
	if err != nil {
		return nil, nil, err
	}

	var settlements []*Settlement
	var failures []BetFailure
	for _, bet := range bets {
		if bet.Status == StatusCancelled {
			continue
		}
		settlement, err := l.Settle(ctx, round, bet.ID, snap)
		if err != nil {
			l.logger.Warn("Side bet failed to settle", "bet", bet.ID, "error", err)
			failures = append(failures, BetFailure{BetID: bet.ID, Name: bet.Name, Error: err.Error()})
			continue
		}
		settlements = append(settlements, settlement)
	}
	return settlements, failures, nil
}

// List returns the round's bets together with any settlements, newest first.
func (l *Ledger) List(ctx context.Context, roundID string) ([]*SideBet, map[string]*Settlement, error) {
	bets, err := l.store.SideBetsByRound(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}
	settlements := make(map[string]*Settlement)
	for _, bet := range bets {
		if bet.Status != StatusSettled {
			continue
		}
		settlement, err := l.store.Settlement(ctx, bet.ID)
		if err != nil {
			if errs.IsKind(err, errs.NotFound) {
				continue
			}
			return nil, nil, err
		}
		settlements[bet.ID] = settlement
	}
	sort.Slice(bets, func(i, j int) bool {
		if !bets[i].CreatedAt.Equal(bets[j].CreatedAt) {
			return bets[i].CreatedAt.After(bets[j].CreatedAt)
		}
		return bets[i].ID < bets[j].ID
	})
	return bets, settlements, nil
}
