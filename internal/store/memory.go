package store

import (
	"context"
	"sync"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/round"
	"github.com/treeline/discround/internal/scoring"
	"github.com/treeline/discround/internal/sidebet"
)

// Memory is an in-process Store used in tests and single-node dev mode.
type Memory struct {
	mu          sync.RWMutex
	rounds      map[string]*RoundRecord
	scores      map[string]map[string]map[int]int // round -> player -> hole -> strokes
	pars        map[string]map[int]int
	bets        map[string]*sidebet.SideBet
	settlements map[string]*sidebet.Settlement
	results     map[string]*round.CompletionResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rounds:      make(map[string]*RoundRecord),
		scores:      make(map[string]map[string]map[int]int),
		pars:        make(map[string]map[int]int),
		bets:        make(map[string]*sidebet.SideBet),
		settlements: make(map[string]*sidebet.Settlement),
		results:     make(map[string]*round.CompletionResult),
	}
}

func copyRound(rec *RoundRecord) *RoundRecord {
	cp := *rec
	cp.Players = append([]string(nil), rec.Players...)
	return &cp
}

func (m *Memory) SaveRound(_ context.Context, rec *RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[rec.ID] = copyRound(rec)
	return nil
}

func (m *Memory) Round(_ context.Context, roundID string) (*RoundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rounds[roundID]
	if !ok {
		return nil, errs.New(errs.NotFound, "round not found")
	}
	return copyRound(rec), nil
}

func (m *Memory) ListRounds(_ context.Context) ([]*RoundRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RoundRecord, 0, len(m.rounds))
	for _, rec := range m.rounds {
		out = append(out, copyRound(rec))
	}
	return out, nil
}

func (m *Memory) TransitionRoundStatus(_ context.Context, roundID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rounds[roundID]
	if !ok {
		return errs.New(errs.NotFound, "round not found")
	}
	if rec.Status != from {
		return errs.Newf(errs.InvalidState, "round is %s, expected %s", rec.Status, from)
	}
	rec.Status = to
	return nil
}

func (m *Memory) SaveScore(_ context.Context, rec *ScoreRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	players, ok := m.scores[rec.RoundID]
	if !ok {
		players = make(map[string]map[int]int)
		m.scores[rec.RoundID] = players
	}
	holes, ok := players[rec.PlayerID]
	if !ok {
		holes = make(map[int]int)
		players[rec.PlayerID] = holes
	}
	holes[rec.Hole] = rec.Strokes
	return nil
}

func (m *Memory) ScoresByRound(_ context.Context, roundID string) ([]*ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ScoreRecord
	for playerID, holes := range m.scores[roundID] {
		for hole, strokes := range holes {
			out = append(out, &ScoreRecord{
				RoundID: roundID, PlayerID: playerID, Hole: hole, Strokes: strokes,
			})
		}
	}
	return out, nil
}

func (m *Memory) SavePar(_ context.Context, rec *ParRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pars, ok := m.pars[rec.RoundID]
	if !ok {
		pars = make(map[int]int)
		m.pars[rec.RoundID] = pars
	}
	pars[rec.Hole] = rec.Par
	return nil
}

func (m *Memory) ParsByRound(_ context.Context, roundID string) ([]*ParRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ParRecord
	for hole, par := range m.pars[roundID] {
		out = append(out, &ParRecord{RoundID: roundID, Hole: hole, Par: par})
	}
	return out, nil
}

func (m *Memory) SideBet(_ context.Context, betID string) (*sidebet.SideBet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bet, ok := m.bets[betID]
	if !ok {
		return nil, errs.New(errs.NotFound, "side bet not found")
	}
	cp := *bet
	cp.Participants = append([]string(nil), bet.Participants...)
	return &cp, nil
}

func (m *Memory) SideBetsByRound(_ context.Context, roundID string) ([]*sidebet.SideBet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*sidebet.SideBet
	for _, bet := range m.bets {
		if bet.RoundID != roundID {
			continue
		}
		cp := *bet
		cp.Participants = append([]string(nil), bet.Participants...)
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) SaveSideBet(_ context.Context, bet *sidebet.SideBet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bet
	cp.Participants = append([]string(nil), bet.Participants...)
	m.bets[bet.ID] = &cp
	return nil
}

func (m *Memory) Settlement(_ context.Context, betID string) (*sidebet.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	settlement, ok := m.settlements[betID]
	if !ok {
		return nil, errs.New(errs.NotFound, "settlement not found")
	}
	return copySettlement(settlement), nil
}

func (m *Memory) SaveSettlement(_ context.Context, settlement *sidebet.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[settlement.BetID] = copySettlement(settlement)
	return nil
}

func copySettlement(s *sidebet.Settlement) *sidebet.Settlement {
	cp := *s
	cp.Winners = append([]string(nil), s.Winners...)
	cp.Payouts = make(map[string]int, len(s.Payouts))
	for k, v := range s.Payouts {
		cp.Payouts[k] = v
	}
	return &cp
}

func copyResult(r *round.CompletionResult) *round.CompletionResult {
	cp := *r
	cp.Leaderboard = append([]scoring.LeaderboardEntry(nil), r.Leaderboard...)
	if r.Skins != nil {
		skins := *r.Skins
		skins.Holes = append([]scoring.HoleSkin(nil), r.Skins.Holes...)
		skins.Players = append([]scoring.PlayerSkins(nil), r.Skins.Players...)
		cp.Skins = &skins
	}
	if len(r.Settlements) > 0 {
		cp.Settlements = make([]*sidebet.Settlement, len(r.Settlements))
		for i, s := range r.Settlements {
			cp.Settlements[i] = copySettlement(s)
		}
	}
	cp.BetFailures = append([]sidebet.BetFailure(nil), r.BetFailures...)
	return &cp
}

func (m *Memory) SaveCompletionResult(_ context.Context, roundID string, result *round.CompletionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[roundID] = copyResult(result)
	return nil
}

func (m *Memory) CompletionResult(_ context.Context, roundID string) (*round.CompletionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.results[roundID]
	if !ok {
		return nil, errs.New(errs.NotFound, "completion result not found")
	}
	return copyResult(result), nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
