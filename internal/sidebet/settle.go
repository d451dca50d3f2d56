package sidebet

import (
	"sort"
	"time"

	"github.com/treeline/discround/internal/errs"
	"github.com/treeline/discround/internal/scoring"
)

// resolve computes a bet's winners from a frozen snapshot. It is pure:
// identical input always yields an identical settlement.
func resolve(bet *SideBet, snap *scoring.Snapshot, settledAt time.Time) (*Settlement, error) {
	var winners []string
	var err error

	switch bet.Category {
	case CategoryWholeRound:
		winners, err = wholeRoundWinners(bet, snap)
	case CategoryHoleRange:
		winners, err = holeRangeWinners(bet, snap)
	default:
		return nil, errs.Newf(errs.Validation, "category %q requires manual resolution", bet.Category)
	}
	if err != nil {
		return nil, err
	}

	return &Settlement{
		BetID:     bet.ID,
		Winners:   winners,
		Payouts:   splitStake(bet.Stake, winners),
		SettledAt: settledAt,
	}, nil
}

// wholeRoundWinners re-ranks the bet participants among themselves with the
// same ordering rules as the round leaderboard and returns the rank-1 group.
func wholeRoundWinners(bet *SideBet, snap *scoring.Snapshot) ([]string, error) {
	participants := append([]string(nil), bet.Participants...)
	sort.Strings(participants)

	entries := scoring.Leaderboard(snap, participants)
	if len(entries) == 0 {
		return nil, errs.New(errs.Validation, "bet has no participants")
	}

	var winners []string
	for _, e := range entries {
		if e.Rank == 1 {
			winners = append(winners, e.PlayerID)
		}
	}
	return winners, nil
}

// holeRangeWinners returns the participant(s) with the lowest summed strokes
// over the bet's hole range. Participants with no recorded score in the
// range are not eligible; a bet where nobody scored cannot settle.
func holeRangeWinners(bet *SideBet, snap *scoring.Snapshot) ([]string, error) {
	type rangeScore struct {
		playerID string
		total    int
	}

	var scored []rangeScore
	for _, id := range bet.Participants {
		total, holes := snap.RangeTotals(id, bet.HoleStart, bet.HoleEnd)
		if holes == 0 {
			continue
		}
		scored = append(scored, rangeScore{playerID: id, total: total})
	}
	if len(scored) == 0 {
		return nil, errs.Newf(errs.Validation,
			"no scores recorded on holes %d-%d for this bet", bet.HoleStart, bet.HoleEnd)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].total != scored[j].total {
			return scored[i].total < scored[j].total
		}
		return scored[i].playerID < scored[j].playerID
	})

	low := scored[0].total
	var winners []string
	for _, s := range scored {
		if s.total == low {
			winners = append(winners, s.playerID)
		}
	}
	return winners, nil
}

// splitStake divides the stake evenly among winners. The integer remainder,
// if any, goes to the lowest player id.
func splitStake(stake int, winners []string) map[string]int {
	payouts := make(map[string]int, len(winners))
	if len(winners) == 0 {
		return payouts
	}

	sorted := append([]string(nil), winners...)
	sort.Strings(sorted)

	share := stake / len(sorted)
	remainder := stake % len(sorted)
	for _, id := range sorted {
		payouts[id] = share
	}
	payouts[sorted[0]] += remainder
	return payouts
}
