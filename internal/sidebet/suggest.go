package sidebet

import (
	"fmt"

	"github.com/treeline/discround/internal/scoring"
)

// Suggestion is an advisory bet template. Suggestions never create bets or
// touch settlement state; they only parameterize the standard catalogue by
// the round's shape and play so far.
type Suggestion struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	HoleStart   int      `json:"hole_start,omitempty"`
	HoleEnd     int      `json:"hole_end,omitempty"`
}

// Suggestions returns plausible bet templates for the round. The requesting
// player only shapes phrasing around birdies they have or have not made;
// there are no wagering side effects.
func (l *Ledger) Suggestions(round RoundInfo, snap *scoring.Snapshot, playerID string) []Suggestion {
	suggestions := []Suggestion{{
		Name:        "Low round",
		Category:    CategoryWholeRound,
		Description: "Lowest total strokes across the whole round wins",
	}}

	if round.HoleCount >= 18 {
		suggestions = append(suggestions,
			Suggestion{
				Name:        "Best front nine",
				Category:    CategoryHoleRange,
				Description: "Lowest total over holes 1-9",
				HoleStart:   1,
				HoleEnd:     9,
			},
			Suggestion{
				Name:        "Best back nine",
				Category:    CategoryHoleRange,
				Description: fmt.Sprintf("Lowest total over holes 10-%d", round.HoleCount),
				HoleStart:   10,
				HoleEnd:     round.HoleCount,
			},
		)
	} else if round.HoleCount >= 4 {
		half := round.HoleCount / 2
		suggestions = append(suggestions, Suggestion{
			Name:        "Best opening stretch",
			Category:    CategoryHoleRange,
			Description: fmt.Sprintf("Lowest total over holes 1-%d", half),
			HoleStart:   1,
			HoleEnd:     half,
		})
	}

	if birdieCount(snap, playerID) == 0 {
		suggestions = append(suggestions, Suggestion{
			Name:        "First birdie",
			Category:    CategoryFirstBirdie,
			Description: "First player to card under par wins",
		})
	} else {
		suggestions = append(suggestions, Suggestion{
			Name:        "Most birdies",
			Category:    CategoryMostBirdies,
			Description: "Most holes under par by the end of the round",
		})
	}

	if hole := shortestHole(snap); hole > 0 {
		suggestions = append(suggestions, Suggestion{
			Name:        fmt.Sprintf("Closest to pin on hole %d", hole),
			Category:    CategoryClosestToPin,
			Description: "Nearest tee shot to the basket, called on the spot",
		})
	}
	if hole := longestHole(snap); hole > 0 {
		suggestions = append(suggestions, Suggestion{
			Name:        fmt.Sprintf("Longest drive on hole %d", hole),
			Category:    CategoryLongestDrive,
			Description: "Longest measured drive off the tee",
		})
	}
	return suggestions
}

func birdieCount(snap *scoring.Snapshot, playerID string) int {
	count := 0
	for hole := 1; hole <= snap.HoleCount(); hole++ {
		if strokes, ok := snap.Strokes(playerID, hole); ok && strokes < snap.Par(hole) {
			count++
		}
	}
	return count
}

// shortestHole picks the lowest-par hole, earliest on ties.
func shortestHole(snap *scoring.Snapshot) int {
	best, bestPar := 0, 0
	for hole := 1; hole <= snap.HoleCount(); hole++ {
		if par := snap.Par(hole); best == 0 || par < bestPar {
			best, bestPar = hole, par
		}
	}
	return best
}

// longestHole picks the highest-par hole, earliest on ties.
func longestHole(snap *scoring.Snapshot) int {
	best, bestPar := 0, 0
	for hole := 1; hole <= snap.HoleCount(); hole++ {
		if par := snap.Par(hole); best == 0 || par > bestPar {
			best, bestPar = hole, par
		}
	}
	return best
}
