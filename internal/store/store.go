// Package store defines the persistence surface the engine consumes. The
// engine never owns transaction boundaries; it only requires a consistent
// read of whatever snapshot it is given and an atomic round status
// transition.
package store

import (
	"context"
	"time"

	"github.com/treeline/discround/internal/round"
	"github.com/treeline/discround/internal/sidebet"
)

// RoundRecord is the persisted shape of a round.
type RoundRecord struct {
	ID           string
	Name         string
	CourseName   string
	CreatedBy    string
	Players      []string
	HoleCount    int
	Status       string
	SkinsEnabled bool
	SkinsStake   int
	CreatedAt    time.Time
	CompletedAt  time.Time
}

// ScoreRecord is one per-player, per-hole stroke entry.
type ScoreRecord struct {
	RoundID  string
	PlayerID string
	Hole     int
	Strokes  int
}

// ParRecord is one per-hole par entry.
type ParRecord struct {
	RoundID string
	Hole    int
	Par     int
}

// Store is the full persistence interface. Lookups for unknown ids fail
// with an errs.NotFound kind; TransitionRoundStatus fails with
// errs.InvalidState when the stored status does not match the expected one.
type Store interface {
	sidebet.Store

	SaveRound(ctx context.Context, rec *RoundRecord) error
	Round(ctx context.Context, roundID string) (*RoundRecord, error)
	ListRounds(ctx context.Context) ([]*RoundRecord, error)
	TransitionRoundStatus(ctx context.Context, roundID, from, to string) error

	SaveScore(ctx context.Context, rec *ScoreRecord) error
	ScoresByRound(ctx context.Context, roundID string) ([]*ScoreRecord, error)
	SavePar(ctx context.Context, rec *ParRecord) error
	ParsByRound(ctx context.Context, roundID string) ([]*ParRecord, error)

	SaveCompletionResult(ctx context.Context, roundID string, result *round.CompletionResult) error
	CompletionResult(ctx context.Context, roundID string) (*round.CompletionResult, error)

	Close() error
}
