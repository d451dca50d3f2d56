package sidebet

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline/discround/internal/errs"
)

// fakeStore is an in-memory Store for ledger tests.
type fakeStore struct {
	bets        map[string]*SideBet
	settlements map[string]*Settlement
	failSaves   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bets:        make(map[string]*SideBet),
		settlements: make(map[string]*Settlement),
	}
}

func (f *fakeStore) SideBet(_ context.Context, betID string) (*SideBet, error) {
	bet, ok := f.bets[betID]
	if !ok {
		return nil, errs.New(errs.NotFound, "side bet not found")
	}
	cp := *bet
	return &cp, nil
}

func (f *fakeStore) SideBetsByRound(_ context.Context, roundID string) ([]*SideBet, error) {
	var out []*SideBet
	for _, bet := range f.bets {
		if bet.RoundID == roundID {
			cp := *bet
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveSideBet(_ context.Context, bet *SideBet) error {
	if f.failSaves {
		return errs.New(errs.Internal, "store unavailable")
	}
	cp := *bet
	f.bets[bet.ID] = &cp
	return nil
}

func (f *fakeStore) Settlement(_ context.Context, betID string) (*Settlement, error) {
	settlement, ok := f.settlements[betID]
	if !ok {
		return nil, errs.New(errs.NotFound, "settlement not found")
	}
	cp := *settlement
	return &cp, nil
}

func (f *fakeStore) SaveSettlement(_ context.Context, settlement *Settlement) error {
	if f.failSaves {
		return errs.New(errs.Internal, "store unavailable")
	}
	cp := *settlement
	f.settlements[settlement.BetID] = &cp
	return nil
}

func testLedger(t *testing.T) (*Ledger, *fakeStore, *quartz.Mock) {
	t.Helper()
	store := newFakeStore()
	clock := quartz.NewMock(t)
	return NewLedger(store, clock, log.New(io.Discard)), store, clock
}

func activeRound() RoundInfo {
	return RoundInfo{
		ID:        "round-1",
		OwnerID:   "owner",
		Players:   []string{"owner", "amy", "ben", "cal"},
		HoleCount: 18,
	}
}

func TestCreate_Validation(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	cases := []struct {
		name string
		p    CreateParams
		kind errs.Kind
	}{
		{
			name: "zero stake",
			p:    CreateParams{Name: "x", Category: CategoryWholeRound, Stake: 0, CreatorID: "amy", Participants: []string{"amy", "ben"}},
			kind: errs.Validation,
		},
		{
			name: "empty participants",
			p:    CreateParams{Name: "x", Category: CategoryWholeRound, Stake: 5, CreatorID: "amy"},
			kind: errs.Validation,
		},
		{
			name: "unknown participant",
			p:    CreateParams{Name: "x", Category: CategoryWholeRound, Stake: 5, CreatorID: "amy", Participants: []string{"amy", "stranger"}},
			kind: errs.Validation,
		},
		{
			name: "creator not in round",
			p:    CreateParams{Name: "x", Category: CategoryWholeRound, Stake: 5, CreatorID: "stranger", Participants: []string{"amy", "ben"}},
			kind: errs.Forbidden,
		},
		{
			name: "hole range outside round",
			p:    CreateParams{Name: "x", Category: CategoryHoleRange, Stake: 5, CreatorID: "amy", Participants: []string{"amy", "ben"}, HoleStart: 10, HoleEnd: 25},
			kind: errs.Validation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Create(ctx, round, tc.p)
			require.Error(t, err)
			assert.Equal(t, tc.kind, errs.KindOf(err))
		})
	}
}

func TestCreate_SortsParticipants(t *testing.T) {
	ledger, _, _ := testLedger(t)

	bet, err := ledger.Create(context.Background(), activeRound(), CreateParams{
		Name:         "low round",
		Category:     CategoryWholeRound,
		Stake:        20,
		CreatorID:    "ben",
		Participants: []string{"cal", "amy", "ben"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusActive, bet.Status)
	assert.Equal(t, []string{"amy", "ben", "cal"}, bet.Participants)
	assert.NotEmpty(t, bet.ID)
}

func TestCancel_Permissions(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	bet, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 10,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	_, err = ledger.Cancel(ctx, round, bet.ID, "ben")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Forbidden))

	// The round owner can cancel someone else's bet.
	cancelled, err := ledger.Cancel(ctx, round, bet.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestCancel_ByCreatorBeforeCompletion(t *testing.T) {
	ledger, store, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	bet, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 10,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	cancelled, err := ledger.Cancel(ctx, round, bet.ID, "amy")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, StatusCancelled, store.bets[bet.ID].Status)
}

func TestCancel_AfterCompletionRejected(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	bet, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 10,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	round.Completed = true
	_, err = ledger.Cancel(ctx, round, bet.ID, "amy")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.InvalidState))
}

func TestSettle_RequiresCompletedRound(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	bet, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 10,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	snap := snapshotFor(t, 18, map[string][]int{"amy": {3}, "ben": {4}})
	_, err = ledger.Settle(ctx, round, bet.ID, snap)
	require.ErrorIs(t, err, ErrRoundNotComplete)
}

func TestSettle_Idempotent(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	bet, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 20,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	snap := snapshotFor(t, 18, map[string][]int{"amy": {3, 3}, "ben": {4, 4}})
	round.Completed = true

	first, err := ledger.Settle(ctx, round, bet.ID, snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy"}, first.Winners)

	second, err := ledger.Settle(ctx, round, bet.ID, snap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSettle_CancelledBetRejected(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	bet, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 20,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	_, err = ledger.Cancel(ctx, round, bet.ID, "amy")
	require.NoError(t, err)

	round.Completed = true
	snap := snapshotFor(t, 18, map[string][]int{"amy": {3}, "ben": {4}})
	_, err = ledger.Settle(ctx, round, bet.ID, snap)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestSettleAll_PartialFailureReported(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	good, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 20,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)

	// No participant ever scores holes 10-12, so this bet cannot settle.
	bad, err := ledger.Create(ctx, round, CreateParams{
		Name: "middle stretch", Category: CategoryHoleRange, Stake: 10,
		CreatorID: "ben", Participants: []string{"amy", "ben"},
		HoleStart: 10, HoleEnd: 12,
	})
	require.NoError(t, err)

	round.Completed = true
	snap := snapshotFor(t, 18, map[string][]int{"amy": {3, 3}, "ben": {4, 4}})

	settlements, failures, err := ledger.SettleAll(ctx, round, snap)
	require.NoError(t, err)

	require.Len(t, settlements, 1)
	assert.Equal(t, good.ID, settlements[0].BetID)

	require.Len(t, failures, 1)
	assert.Equal(t, bad.ID, failures[0].BetID)
	assert.NotEmpty(t, failures[0].Error)
}

func TestSettleAll_IncludesPreviouslySettledBets(t *testing.T) {
	ledger, _, _ := testLedger(t)
	round := activeRound()
	ctx := context.Background()

	first, err := ledger.Create(ctx, round, CreateParams{
		Name: "low round", Category: CategoryWholeRound, Stake: 20,
		CreatorID: "amy", Participants: []string{"amy", "ben"},
	})
	require.NoError(t, err)
	second, err := ledger.Create(ctx, round, CreateParams{
		Name: "front nine", Category: CategoryHoleRange, Stake: 10,
		CreatorID: "ben", Participants: []string{"amy", "ben"},
		HoleStart: 1, HoleEnd: 2,
	})
	require.NoError(t, err)

	round.Completed = true
	snap := snapshotFor(t, 18, map[string][]int{"amy": {3, 3}, "ben": {4, 4}})

	// One bet settles ahead of the batch, as happens when a completion run
	// settles its bets but dies before persisting the result.
	early, err := ledger.Settle(ctx, round, first.ID, snap)
	require.NoError(t, err)

	settlements, failures, err := ledger.SettleAll(ctx, round, snap)
	require.NoError(t, err)
	require.Empty(t, failures)
	require.Len(t, settlements, 2)

	byBet := make(map[string]*Settlement, len(settlements))
	for _, s := range settlements {
		byBet[s.BetID] = s
	}
	require.Contains(t, byBet, second.ID)
	assert.Equal(t, early, byBet[first.ID], "stored settlement returned unchanged")
}

func TestSuggestions_NoSideEffects(t *testing.T) {
	ledger, store, _ := testLedger(t)
	round := activeRound()

	snap := snapshotFor(t, 18, map[string][]int{"amy": {2, 3}})
	suggestions := ledger.Suggestions(round, snap, "amy")

	require.NotEmpty(t, suggestions)
	assert.Empty(t, store.bets, "suggestions must not create bets")

	// 18 holes should offer front and back nine range bets.
	var categories []Category
	for _, s := range suggestions {
		categories = append(categories, s.Category)
	}
	assert.Contains(t, categories, CategoryWholeRound)
	assert.Contains(t, categories, CategoryHoleRange)
}
