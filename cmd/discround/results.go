package main

import (
	"context"
	"fmt"

	"github.com/treeline/discround/internal/display"
	"github.com/treeline/discround/internal/round"
	"github.com/treeline/discround/internal/scoring"
	"github.com/treeline/discround/internal/store"
	"github.com/treeline/discround/internal/store/sqlite"
)

// dbFlags locates the database the offline commands read.
type dbFlags struct {
	DB    string `kong:"default='discround.db',help='Path to the SQLite database'"`
	Round string `arg:"" help:"Round id" required:"true"`
}

// RoundsCmd lists the rounds in a database.
type RoundsCmd struct {
	DB string `kong:"default='discround.db',help='Path to the SQLite database'"`
}

func (c *RoundsCmd) Run() error {
	st, err := sqlite.Open(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	rounds, err := st.ListRounds(context.Background())
	if err != nil {
		return err
	}
	for _, rec := range rounds {
		fmt.Printf("%-36s %-10s %3d holes %3d players  %s\n",
			rec.ID, rec.Status, rec.HoleCount, len(rec.Players), rec.Name)
	}
	return nil
}

// LeaderboardCmd prints a round's standings.
type LeaderboardCmd struct {
	dbFlags
}

func (c *LeaderboardCmd) Run() error {
	st, r, err := loadRound(c.DB, c.Round)
	if err != nil {
		return err
	}
	defer st.Close()

	entries := scoring.Leaderboard(r.Snapshot(), r.Players())
	fmt.Print(display.NewRenderer().Leaderboard(entries))
	return nil
}

// SkinsCmd prints a round's skins outcome.
type SkinsCmd struct {
	dbFlags
}

func (c *SkinsCmd) Run() error {
	st, r, err := loadRound(c.DB, c.Round)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := r.Skins()
	if !cfg.Enabled {
		return fmt.Errorf("skins are not enabled for round %s", c.Round)
	}
	result := scoring.CalculateSkins(r.Snapshot(), cfg)
	fmt.Print(display.NewRenderer().Skins(result))
	return nil
}

// ResultsCmd prints a completed round's persisted results.
type ResultsCmd struct {
	dbFlags
}

func (c *ResultsCmd) Run() error {
	st, err := sqlite.Open(c.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := st.CompletionResult(context.Background(), c.Round)
	if err != nil {
		return err
	}
	fmt.Print(display.NewRenderer().CompletionResult(result))
	return nil
}

// loadRound hydrates a round aggregate straight from the database.
func loadRound(dbPath, roundID string) (store.Store, *round.Round, error) {
	st, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	ctx := context.Background()

	rec, err := st.Round(ctx, roundID)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	scoreRecs, err := st.ScoresByRound(ctx, roundID)
	if err != nil {
		st.Close()
		return nil, nil, err
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
	parRecs, err := st.ParsByRound(ctx, roundID)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	pars := make(map[int]int)
	for _, pr := range parRecs {
		pars[pr.Hole] = pr.Par
	}

	r, err := round.Restore(round.Params{
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
		st.Close()
		return nil, nil, err
	}
	return st, r, nil
}
