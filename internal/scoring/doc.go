// Package scoring implements the core round scoring logic for disc golf.
//
// The main type is ScoreTable, which accumulates per-player, per-hole stroke
// counts for a single round. Downstream calculators never read the table
// directly; they operate on an immutable Snapshot so results are pure and
// deterministic.
//
// # Basic Usage
//
// Record scores and derive standings:
//
//	t := scoring.NewScoreTable(18)
//	_ = t.RecordScore("p1", 1, 3)
//	_ = t.RecordScore("p2", 1, 4)
//	snap := t.Snapshot()
//	entries := scoring.Leaderboard(snap, []string{"p1", "p2"})
//
// # Architecture
//
// ScoreTable delegates derivation to two pure functions:
//   - Leaderboard: ranked standings with competition ranking on ties
//   - CalculateSkins: per-hole skins awards with carry-over on ties
//
// Both consume only a Snapshot, so independent rounds may be computed fully
// in parallel with no shared mutable state. Exclusion between score
// recording and round completion is the round aggregate's responsibility,
// not the table's.
package scoring
