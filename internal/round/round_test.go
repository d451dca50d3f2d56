package round

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/scoring"
)

func newTestRound(t *testing.T, players []string, holes int, skins scoring.SkinsConfig) *Round {
	t.Helper()
	r, err := New(Params{
		ID:         "round-1",
		Name:       "Saturday league",
		CourseName: "Maple Hill",
		CreatedBy:  players[0],
		Players:    players,
		HoleCount:  holes,
		Skins:      skins,
		CreatedAt:  time.Unix(1000, 0),
	})
	require.NoError(t, err)
	return r
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Params{ID: "r", CreatedBy: "a", Players: []string{"a"}, HoleCount: 0})
	assert.True(t, errs.IsKind(err, errs.Validation))

	_, err = New(Params{ID: "r", CreatedBy: "a", Players: nil, HoleCount: 9})
	assert.True(t, errs.IsKind(err, errs.Validation))

	_, err = New(Params{ID: "r", CreatedBy: "x", Players: []string{"a", "b"}, HoleCount: 9})
	assert.True(t, errs.IsKind(err, errs.Validation))

	_, err = New(Params{ID: "r", CreatedBy: "a", Players: []string{"a", "a"}, HoleCount: 9})
	assert.True(t, errs.IsKind(err, errs.Validation))

	_, err = New(Params{
		ID: "r", CreatedBy: "a", Players: []string{"a"}, HoleCount: 9,
		Skins: scoring.SkinsConfig{Enabled: true, StakePerHole: 0},
	})
	assert.True(t, errs.IsKind(err, errs.Validation))
}

func TestRecordScore_UnknownPlayer(t *testing.T) {
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})

	err := r.RecordScore("stranger", 1, 3)
	require.ErrorIs(t, err, ErrPlayerNotInRound)
	assert.True(t, errs.IsKind(err, errs.NotFound))
}

func TestRecordScore_ClosedAfterCompletionStarts(t *testing.T) {
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})
	require.NoError(t, r.RecordScore("amy", 1, 3))

	_, err := r.beginCompletion()
	require.NoError(t, err)

	if err := r.RecordScore("amy", 2, 3); !errors.Is(err, scoring.ErrRoundClosed) {
		t.Errorf("Expected ErrRoundClosed while completing, got %v", err)
	}

	r.finishCompletion(time.Unix(2000, 0))
	if err := r.RecordScore("amy", 2, 3); !errors.Is(err, scoring.ErrRoundClosed) {
		t.Errorf("Expected ErrRoundClosed after completion, got %v", err)
	}
}

func TestBeginCompletion_SingleWinner(t *testing.T) {
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})

	_, err := r.beginCompletion()
	require.NoError(t, err)

	_, err = r.beginCompletion()
	require.ErrorIs(t, err, ErrAlreadyCompleted)

	r.finishCompletion(time.Unix(2000, 0))
	_, err = r.beginCompletion()
	require.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestAbortCompletion_ReopensRound(t *testing.T) {
	r := newTestRound(t, []string{"amy", "ben"}, 9, scoring.SkinsConfig{})

	_, err := r.beginCompletion()
	require.NoError(t, err)
	r.abortCompletion()

	assert.Equal(t, StatusActive, r.Status())
	require.NoError(t, r.RecordScore("amy", 1, 3))
}

func TestRestore_CompletedRoundIsFrozen(t *testing.T) {
	scores := map[string]map[int]int{"amy": {1: 3, 2: 4}, "ben": {1: 4}}
	r, err := Restore(Params{
		ID: "r", CreatedBy: "amy", Players: []string{"amy", "ben"}, HoleCount: 9,
	}, StatusCompleted, time.Unix(5000, 0), scores, map[int]int{1: 4})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, r.Status())
	assert.Equal(t, time.Unix(5000, 0), r.CompletedAt())

	err = r.RecordScore("amy", 3, 3)
	assert.ErrorIs(t, err, scoring.ErrRoundClosed)

	snap := r.Snapshot()
	strokes, ok := snap.Strokes("amy", 2)
	require.True(t, ok)
	assert.Equal(t, 4, strokes)
	assert.Equal(t, 4, snap.Par(1))
}

func TestRestore_CompletingRoundReopens(t *testing.T) {
	// A crash mid-completion leaves the store in completing; hydration
	// treats that as active so completion can retry.
	r, err := Restore(Params{
		ID: "r", CreatedBy: "amy", Players: []string{"amy"}, HoleCount: 9,
	}, StatusCompleting, time.Time{}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, r.Status())
}
