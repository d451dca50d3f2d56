package scoring

import "sort"

// LeaderboardEntry is one ranked row of a round's standings. Entries are
// derived from a snapshot and never stored independently of it.
type LeaderboardEntry struct {
	PlayerID       string `json:"player_id"`
	TotalStrokes   int    `json:"total_strokes"`
	TotalPar       int    `json:"total_par"`
	RelativeScore  int    `json:"relative_score"`
	HolesCompleted int    `json:"holes_completed"`
	CurrentHole    int    `json:"current_hole"`
	Rank           int    `json:"rank"`
	Tied           bool   `json:"tied"`
}

// Leaderboard derives ranked standings from a snapshot for the given
// players. Ordering is total strokes ascending with player id ascending as
// the tie-break, so identical input always yields identical output. Players
// with no recorded holes rank after all scored players, ordered by id among
// themselves.
//
// Ranks use standard competition ranking: tied players share a rank and the
// next distinct player skips the tied positions (1, 2, 2, 4).
func Leaderboard(snap *Snapshot, playerIDs []string) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(playerIDs))
	for _, id := range playerIDs {
		e := LeaderboardEntry{PlayerID: id, CurrentHole: 1}
		e.TotalStrokes, e.HolesCompleted = snap.Totals(id)
		for hole := 1; hole <= snap.HoleCount(); hole++ {
			if _, ok := snap.Strokes(id, hole); ok {
				e.TotalPar += snap.Par(hole)
				if hole >= e.CurrentHole {
					e.CurrentHole = hole + 1
				}
			}
		}
		e.RelativeScore = e.TotalStrokes - e.TotalPar
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		// Unscored players sort after everyone with a score.
		if (a.HolesCompleted == 0) != (b.HolesCompleted == 0) {
			return b.HolesCompleted == 0
		}
		if a.HolesCompleted == 0 && b.HolesCompleted == 0 {
			return a.PlayerID < b.PlayerID
		}
		if a.TotalStrokes != b.TotalStrokes {
			return a.TotalStrokes < b.TotalStrokes
		}
		return a.PlayerID < b.PlayerID
	})

	assignRanks(entries)
	return entries
}

// assignRanks applies competition ranking in place. Two entries tie when
// both have scores and the same stroke total, or when both are unscored.
func assignRanks(entries []LeaderboardEntry) {
	for i := range entries {
		if i > 0 && sameRank(entries[i-1], entries[i]) {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
	for i := range entries {
		prev := i > 0 && entries[i-1].Rank == entries[i].Rank
		next := i+1 < len(entries) && entries[i+1].Rank == entries[i].Rank
		entries[i].Tied = prev || next
	}
}

func sameRank(a, b LeaderboardEntry) bool {
	if a.HolesCompleted == 0 && b.HolesCompleted == 0 {
		return true
	}
	if a.HolesCompleted == 0 || b.HolesCompleted == 0 {
		return false
	}
	return a.TotalStrokes == b.TotalStrokes
}
