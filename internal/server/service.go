// Package server exposes the scoring engine to hosts: a framework-agnostic
// RoundService carrying the capability set (score, leaderboard, skins,
// bets, completion) and a thin JSON HTTP front end over it.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/round"
	"github.com/treeline/discround/internal/scoring"
	"github.com/treeline/discround/internal/sidebet"
	"github.com/treeline/discround/internal/store"
)

// RoundService is the engine's synchronous operation surface. All methods
// are plain request/response over immutable snapshots; any asynchrony
// belongs to the host's I/O layer.
type RoundService struct {
	mu        sync.RWMutex
	rounds    map[string]*round.Round
	st        store.Store
	ledger    *sidebet.Ledger
	completer *round.Coordinator
	clock     quartz.Clock
	logger    *log.Logger
}

// NewRoundService creates the service over the given store.
func NewRoundService(st store.Store, clock quartz.Clock, logger *log.Logger) *RoundService {
	ledger := sidebet.NewLedger(st, clock, logger)
	return &RoundService{
		rounds:    make(map[string]*round.Round),
		st:        st,
		ledger:    ledger,
		completer: round.NewCoordinator(st, ledger, clock, logger),
		clock:     clock,
		logger:    logger.WithPrefix("service"),
	}
}

// RoundView is the externally visible shape of a round.
type RoundView struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	CourseName  string              `json:"course_name"`
	CreatedBy   string              `json:"created_by"`
	Players     []string            `json:"players"`
	HoleCount   int                 `json:"hole_count"`
	Status      string              `json:"status"`
	Skins       scoring.SkinsConfig `json:"skins"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

func viewOf(r *round.Round) *RoundView {
	v := &RoundView{
		ID:         r.ID(),
		Name:       r.Name(),
		CourseName: r.Course(),
		CreatedBy:  r.CreatedBy(),
		Players:    r.Players(),
		HoleCount:  r.HoleCount(),
		Status:     string(r.Status()),
		Skins:      r.Skins(),
		CreatedAt:  r.CreatedAt(),
	}
	if at := r.CompletedAt(); !at.IsZero() {
		v.CompletedAt = &at
	}
	return v
}

// CreateRoundParams describes a new round.
type CreateRoundParams struct {
	Name       string              `json:"name"`
	CourseName string              `json:"course_name"`
	CreatedBy  string              `json:"-"`
	Players    []string            `json:"players"`
	HoleCount  int                 `json:"hole_count"`
	Skins      scoring.SkinsConfig `json:"skins"`
}

// CreateRound validates and persists a new active round.
func (s *RoundService) CreateRound(ctx context.Context, p CreateRoundParams) (*RoundView, error) {
	r, err := round.New(round.Params{
		ID:         uuid.NewString(),
		Name:       p.Name,
		CourseName: p.CourseName,
		CreatedBy:  p.CreatedBy,
		Players:    p.Players,
		HoleCount:  p.HoleCount,
		Skins:      p.Skins,
		CreatedAt:  s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.st.SaveRound(ctx, recordOf(r)); err != nil {
		return nil, errs.Wrap(errs.Internal, "save round", err)
	}

	s.mu.Lock()
	s.rounds[r.ID()] = r
	s.mu.Unlock()

	s.logger.Info("Round created", "round", r.ID(), "players", len(p.Players), "holes", p.HoleCount)
	return viewOf(r), nil
}

func recordOf(r *round.Round) *store.RoundRecord {
	skins := r.Skins()
	return &store.RoundRecord{
		ID:           r.ID(),
		Name:         r.Name(),
		CourseName:   r.Course(),
		CreatedBy:    r.CreatedBy(),
		Players:      r.Players(),
		HoleCount:    r.HoleCount(),
		Status:       string(r.Status()),
		SkinsEnabled: skins.Enabled,
		SkinsStake:   skins.StakePerHole,
		CreatedAt:    r.CreatedAt(),
		CompletedAt:  r.CompletedAt(),
	}
}

// getRound returns the cached aggregate, hydrating from the store on a
// cold lookup.
func (s *RoundService) getRound(ctx context.Context, roundID string) (*round.Round, error) {
	s.mu.RLock()
	r, ok := s.rounds[roundID]
	s.mu.RUnlock()
	if ok {
		return r, nil
	}

	rec, err := s.st.Round(ctx, roundID)
	if err != nil {
		return nil, err
	}
	// A round stuck in completing means a completion run died mid-flight;
	// roll the guard back so completion can retry.
	if rec.Status == string(round.StatusCompleting) {
		if err := s.st.TransitionRoundStatus(ctx, roundID,
			string(round.StatusCompleting), string(round.StatusActive)); err != nil {
			return nil, err
		}
		rec.Status = string(round.StatusActive)
	}

	scoreRecs, err := s.st.ScoresByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]map[int]int)
	for _, sr := range scoreRecs {
		holes, ok := scores[sr.PlayerID]
		if !ok {
			holes = make(map[int]int)
			scores[sr.PlayerID] = holes
		}
		holes[sr.Hole] = sr.Strokes
	}
	parRecs, err := s.st.ParsByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	pars := make(map[int]int)
	for _, pr := range parRecs {
		pars[pr.Hole] = pr.Par
	}

	r, err = round.Restore(round.Params{
		ID:         rec.ID,
		Name:       rec.Name,
		CourseName: rec.CourseName,
		CreatedBy:  rec.CreatedBy,
		Players:    rec.Players,
		HoleCount:  rec.HoleCount,
		Skins:      scoring.SkinsConfig{Enabled: rec.SkinsEnabled, StakePerHole: rec.SkinsStake},
		CreatedAt:  rec.CreatedAt,
	}, round.Status(rec.Status), rec.CompletedAt, scores, pars)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have hydrated concurrently; keep the first.
	if cached, ok := s.rounds[roundID]; ok {
		return cached, nil
	}
	s.rounds[roundID] = r
	return r, nil
}

func requireParticipant(r *round.Round, requesterID string) error {
	if requesterID == "" {
		return errs.New(errs.Validation, "requester id is required")
	}
	if !r.HasPlayer(requesterID) {
		return errs.New(errs.Forbidden, "you must be a participant in this round")
	}
	return nil
}

// GetRound returns the round's current state.
func (s *RoundService) GetRound(ctx context.Context, roundID, requesterID string) (*RoundView, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	return viewOf(r), nil
}

// RecordScore records a player's strokes on a hole and persists the entry.
func (s *RoundService) RecordScore(ctx context.Context, roundID, requesterID, playerID string, hole, strokes int) error {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return err
	}
	if err := r.RecordScore(playerID, hole, strokes); err != nil {
		return err
	}
	if err := s.st.SaveScore(ctx, &store.ScoreRecord{
		RoundID: roundID, PlayerID: playerID, Hole: hole, Strokes: strokes,
	}); err != nil {
		return errs.Wrap(errs.Internal, "save score", err)
	}
	return nil
}

// SetPar records the par for a hole.
func (s *RoundService) SetPar(ctx context.Context, roundID, requesterID string, hole, par int) error {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return err
	}
	if err := r.SetPar(hole, par); err != nil {
		return err
	}
	if err := s.st.SavePar(ctx, &store.ParRecord{RoundID: roundID, Hole: hole, Par: par}); err != nil {
		return errs.Wrap(errs.Internal, "save par", err)
	}
	return nil
}

// GetLeaderboard derives the round's current standings.
func (s *RoundService) GetLeaderboard(ctx context.Context, roundID, requesterID string) ([]scoring.LeaderboardEntry, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	return scoring.Leaderboard(r.Snapshot(), r.Players()), nil
}

// CalculateSkins derives the round's current skins state.
func (s *RoundService) CalculateSkins(ctx context.Context, roundID, requesterID string) (*scoring.SkinsResult, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	cfg := r.Skins()
	if !cfg.Enabled {
		return nil, errs.New(errs.Validation, "skins are not enabled for this round")
	}
	return scoring.CalculateSkins(r.Snapshot(), cfg), nil
}

// CompleteRound finalizes the round exactly once and persists the derived
// results. Per-bet settlement failures are reported in the result, not as
// an error.
func (s *RoundService) CompleteRound(ctx context.Context, roundID, requesterID string) (*round.CompletionResult, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	result, err := s.completer.Complete(ctx, r, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.st.SaveRound(ctx, recordOf(r)); err != nil {
		// Status already transitioned atomically; the record refresh is for
		// the completed_at column only.
		s.logger.Error("Failed to refresh round record", "round", roundID, "error", err)
	}
	return result, nil
}

// CompletionResult returns the persisted results of a completed round.
func (s *RoundService) CompletionResult(ctx context.Context, roundID, requesterID string) (*round.CompletionResult, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	return s.st.CompletionResult(ctx, roundID)
}

// CreateSideBet records a new bet by the requester on the round.
func (s *RoundService) CreateSideBet(ctx context.Context, roundID, requesterID string, p sidebet.CreateParams) (*sidebet.SideBet, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	p.CreatorID = requesterID
	return s.ledger.Create(ctx, r.Info(), p)
}

// CancelSideBet voids an active bet.
func (s *RoundService) CancelSideBet(ctx context.Context, roundID, betID, requesterID string) (*sidebet.SideBet, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	return s.ledger.Cancel(ctx, r.Info(), betID, requesterID)
}

// SettleSideBet resolves one bet against the completed round's frozen
// scores. Idempotent.
func (s *RoundService) SettleSideBet(ctx context.Context, roundID, betID, requesterID string) (*sidebet.Settlement, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	return s.ledger.Settle(ctx, r.Info(), betID, r.Snapshot())
}

// SideBetList pairs the round's bets with any settlements.
type SideBetList struct {
	Bets        []*sidebet.SideBet             `json:"bets"`
	Settlements map[string]*sidebet.Settlement `json:"settlements,omitempty"`
}

// ListSideBets returns the round's bets, newest first.
func (s *RoundService) ListSideBets(ctx context.Context, roundID, requesterID string) (*SideBetList, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	bets, settlements, err := s.ledger.List(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return &SideBetList{Bets: bets, Settlements: settlements}, nil
}

// SuggestSideBets returns advisory bet templates for the round.
func (s *RoundService) SuggestSideBets(ctx context.Context, roundID, requesterID string) ([]sidebet.Suggestion, error) {
	r, err := s.getRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := requireParticipant(r, requesterID); err != nil {
		return nil, err
	}
	return s.ledger.Suggestions(r.Info(), r.Snapshot(), requesterID), nil
}
