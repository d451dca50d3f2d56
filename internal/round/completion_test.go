package round

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/scoring"
	"github.com/treeline/discround/internal/sidebet"
)

// fakeResultStore implements ResultStore with a CAS status field.
type fakeResultStore struct {
	mu        sync.Mutex
	status    map[string]string
	results   map[string]*CompletionResult
	failSaves int
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{
		status:  make(map[string]string),
		results: make(map[string]*CompletionResult),
	}
}

func (f *fakeResultStore) TransitionRoundStatus(_ context.Context, roundID, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.status[roundID]
	if !ok {
		current = string(StatusActive)
	}
	if current != from {
		return errs.Newf(errs.InvalidState, "round is %s, expected %s", current, from)
	}
	f.status[roundID] = to
	return nil
}

func (f *fakeResultStore) SaveCompletionResult(_ context.Context, roundID string, result *CompletionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves > 0 {
		f.failSaves--
		return errs.New(errs.Internal, "store unavailable")
	}
	f.results[roundID] = result
	return nil
}

// fakeBetStore implements sidebet.Store for coordinator tests.
type fakeBetStore struct {
	mu          sync.Mutex
	bets        map[string]*sidebet.SideBet
	settlements map[string]*sidebet.Settlement
}

func newFakeBetStore() *fakeBetStore {
	return &fakeBetStore{
		bets:        make(map[string]*sidebet.SideBet),
		settlements: make(map[string]*sidebet.Settlement),
	}
}

func (f *fakeBetStore) SideBet(_ context.Context, betID string) (*sidebet.SideBet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bet, ok := f.bets[betID]
	if !ok {
		return nil, errs.New(errs.NotFound, "side bet not found")
	}
	cp := *bet
	return &cp, nil
}

func (f *fakeBetStore) SideBetsByRound(_ context.Context, roundID string) ([]*sidebet.SideBet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*sidebet.SideBet
	for _, bet := range f.bets {
		if bet.RoundID == roundID {
			cp := *bet
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBetStore) SaveSideBet(_ context.Context, bet *sidebet.SideBet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *bet
	f.bets[bet.ID] = &cp
	return nil
}

func (f *fakeBetStore) Settlement(_ context.Context, betID string) (*sidebet.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	settlement, ok := f.settlements[betID]
	if !ok {
		return nil, errs.New(errs.NotFound, "settlement not found")
	}
	cp := *settlement
	return &cp, nil
}

func (f *fakeBetStore) SaveSettlement(_ context.Context, settlement *sidebet.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *settlement
	f.settlements[settlement.BetID] = &cp
	return nil
}

func testCoordinator(t *testing.T) (*Coordinator, *fakeResultStore, *sidebet.Ledger) {
	t.Helper()
	logger := log.New(io.Discard)
	clock := quartz.NewMock(t)
	resultStore := newFakeResultStore()
	ledger := sidebet.NewLedger(newFakeBetStore(), clock, logger)
	return NewCoordinator(resultStore, ledger, clock, logger), resultStore, ledger
}

func TestComplete_RequesterMustBeParticipant(t *testing.T) {
	coordinator, _, _ := testCoordinator(t)
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})

	_, err := coordinator.Complete(context.Background(), r, "stranger")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Forbidden))
	assert.Equal(t, StatusActive, r.Status())
}

func TestComplete_ConcurrentRequestsExactlyOneWins(t *testing.T) {
	coordinator, resultStore, _ := testCoordinator(t)
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})
	require.NoError(t, r.RecordScore("amy", 1, 3))
	require.NoError(t, r.RecordScore("ben", 1, 4))

	const attempts = 8
	var wg sync.WaitGroup
	resultCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coordinator.Complete(context.Background(), r, "amy")
			resultCh <- err
		}()
	}
	wg.Wait()
	close(resultCh)

	succeeded, alreadyCompleted := 0, 0
	for err := range resultCh {
		switch {
		case err == nil:
			succeeded++
		case errs.IsKind(err, errs.InvalidState):
			alreadyCompleted++
		default:
			t.Errorf("unexpected completion error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, alreadyCompleted)
	assert.Equal(t, StatusCompleted, r.Status())
	require.Len(t, resultStore.results, 1, "exactly one settlement record")
}

func TestComplete_PartialBetFailureDoesNotBlockCompletion(t *testing.T) {
	coordinator, resultStore, ledger := testCoordinator(t)
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})
	require.NoError(t, r.RecordScore("amy", 1, 3))
	require.NoError(t, r.RecordScore("ben", 1, 4))

	ctx := context.Background()
	_, err := ledger.Create(ctx, r.Info(), sidebet.CreateParams{
		Name: "low round", Category: sidebet.CategoryWholeRound, Stake: 20,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	// Nobody will ever score holes 5-6, so this bet cannot settle.
	_, err = ledger.Create(ctx, r.Info(), sidebet.CreateParams{
		Name: "middle holes", Category: sidebet.CategoryHoleRange, Stake: 10,
		CreatorID: "ben", Participants: []string{"amy", "ben"},
		HoleStart: 5, HoleEnd: 6,
	})
	require.NoError(t, err)

	result, err := coordinator.Complete(ctx, r, "amy")
	require.NoError(t, err)

	assert.Len(t, result.Settlements, 1)
	require.Len(t, result.BetFailures, 1)
	assert.Equal(t, "middle holes", result.BetFailures[0].Name)
	assert.Equal(t, StatusCompleted, r.Status())
	assert.Equal(t, result, resultStore.results[r.ID()])
}

func TestComplete_RetryAfterPersistFailureReportsSettlements(t *testing.T) {
	coordinator, resultStore, ledger := testCoordinator(t)
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})
	require.NoError(t, r.RecordScore("amy", 1, 3))
	require.NoError(t, r.RecordScore("ben", 1, 4))

	ctx := context.Background()
	bet, err := ledger.Create(ctx, r.Info(), sidebet.CreateParams{
		Name: "low round", Category: sidebet.CategoryWholeRound, Stake: 20,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	// The first attempt settles the bet, then dies persisting the result.
	resultStore.failSaves = 1
	_, err = coordinator.Complete(ctx, r, "amy")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Internal))
	assert.Equal(t, StatusActive, r.Status(), "failed completion reopens the round")

	// The retry must report the bet settled by the first attempt, not drop it.
	result, err := coordinator.Complete(ctx, r, "amy")
	require.NoError(t, err)
	require.Len(t, result.Settlements, 1)
	assert.Equal(t, bet.ID, result.Settlements[0].BetID)
	assert.Equal(t, map[string]int{"amy": 20}, result.Settlements[0].Payouts)
	assert.Empty(t, result.BetFailures)
	assert.Equal(t, result, resultStore.results[r.ID()])
}

func TestComplete_PartialFailureSurfacedInLog(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	clock := quartz.NewMock(t)
	resultStore := newFakeResultStore()
	ledger := sidebet.NewLedger(newFakeBetStore(), clock, logger)
	coordinator := NewCoordinator(resultStore, ledger, clock, logger)

	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})
	require.NoError(t, r.RecordScore("amy", 1, 3))

	ctx := context.Background()
	_, err := ledger.Create(ctx, r.Info(), sidebet.CreateParams{
		Name: "back stretch", Category: sidebet.CategoryHoleRange, Stake: 10,
		CreatorID: "ben", Participants: []string{"amy", "ben"},
		HoleStart: 7, HoleEnd: 9,
	})
	require.NoError(t, err)

	result, err := coordinator.Complete(ctx, r, "amy")
	require.NoError(t, err)
	require.Len(t, result.BetFailures, 1)
	assert.Contains(t, buf.String(), "failed to settle")
}

func TestComplete_EndToEndScenario(t *testing.T) {
	// 4 players, 18 holes, skins at stake 1, one "low round" bet of 20
	// between two of the four players.
	coordinator, _, ledger := testCoordinator(t)
	players := []string{"amy", "ben", "cal", "dee"}
	r := newTestRound(t, players, 18, scoring.SkinsConfig{Enabled: true, StakePerHole: 1})

	// dee shoots the best round overall; amy beats ben among the bet pair.
	perPlayer := map[string]int{"amy": 4, "ben": 5, "cal": 6, "dee": 3}
	for player, strokes := range perPlayer {
		for hole := 1; hole <= 18; hole++ {
			require.NoError(t, r.RecordScore(player, hole, strokes))
		}
	}

	ctx := context.Background()
	bet, err := ledger.Create(ctx, r.Info(), sidebet.CreateParams{
		Name: "low round", Category: sidebet.CategoryWholeRound, Stake: 20,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	result, err := coordinator.Complete(ctx, r, "amy")
	require.NoError(t, err)

	// Leaderboard ranks all four with no ties.
	require.Len(t, result.Leaderboard, 4)
	assert.Equal(t, "dee", result.Leaderboard[0].PlayerID)
	assert.Equal(t, 1, result.Leaderboard[0].Rank)
	assert.Equal(t, "cal", result.Leaderboard[3].PlayerID)
	assert.Equal(t, 4, result.Leaderboard[3].Rank)

	// Every hole was won outright by dee, so the whole pot paid out.
	require.NotNil(t, result.Skins)
	assert.Equal(t, 18, result.Skins.TotalAwarded+result.Skins.UnresolvedValue)
	assert.Zero(t, result.Skins.UnresolvedCarry)

	// Exactly one settlement, naming the lower-scoring bet participant.
	require.Len(t, result.Settlements, 1)
	assert.Equal(t, bet.ID, result.Settlements[0].BetID)
	assert.Equal(t, []string{"amy"}, result.Settlements[0].Winners)
	assert.Equal(t, map[string]int{"amy": 20}, result.Settlements[0].Payouts)
	assert.Empty(t, result.BetFailures)
}
