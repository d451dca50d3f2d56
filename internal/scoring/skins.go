package scoring

import "sort"

// SkinsConfig is a round's skins wagering configuration.
type SkinsConfig struct {
	Enabled      bool `json:"enabled"`
	StakePerHole int  `json:"stake_per_hole"`
}

// HoleSkin is the outcome of one hole in the skins game.
type HoleSkin struct {
	Hole      int    `json:"hole"`
	WinnerID  string `json:"winner_id,omitempty"` // empty when the pot carries
	Strokes   int    `json:"strokes,omitempty"`   // winning or tied low score, 0 when unscored
	Value     int    `json:"value"`               // awarded pot, 0 when carried
	CarriedIn int    `json:"carried_in"`          // skins carried into this hole
	Carried   bool   `json:"carried"`             // true when the pot rolled to the next hole
}

// PlayerSkins summarizes one player's skins winnings.
type PlayerSkins struct {
	PlayerID string `json:"player_id"`
	SkinsWon int    `json:"skins_won"`
	ValueWon int    `json:"value_won"`
}

// SkinsResult is the full skins computation for a round. Any pot still
// carried after the final hole is surfaced as unresolved, never dropped;
// disposition (refund, split, award to leader) is a settlement-layer policy.
type SkinsResult struct {
	StakePerHole    int           `json:"stake_per_hole"`
	Holes           []HoleSkin    `json:"holes"`
	Players         []PlayerSkins `json:"players"`
	TotalAwarded    int           `json:"total_awarded"`
	UnresolvedCarry int           `json:"unresolved_carry"` // skins left carrying at round end
	UnresolvedValue int           `json:"unresolved_value"` // carry count x stake
}

// CalculateSkins computes per-hole skins winners and carry-over from a
// snapshot. Holes are processed in increasing hole-number order. The sole
// lowest score on a hole wins stake x (1 + carried skins) and resets the
// carry; a tie at the low score, or a hole with no recorded scores, rolls
// one more skin onto the pot.
func CalculateSkins(snap *Snapshot, cfg SkinsConfig) *SkinsResult {
	result := &SkinsResult{StakePerHole: cfg.StakePerHole}
	if !cfg.Enabled {
		return result
	}

	won := make(map[string]*PlayerSkins)
	carry := 0
	for hole := 1; hole <= snap.HoleCount(); hole++ {
		holeScores := snap.HoleScores(hole)
		winner, low := soleLowest(holeScores)

		if winner == "" {
			// Tied or unscored: the skin rolls forward.
			result.Holes = append(result.Holes, HoleSkin{
				Hole:      hole,
				Strokes:   low,
				CarriedIn: carry,
				Carried:   true,
			})
			carry++
			continue
		}

		value := cfg.StakePerHole * (1 + carry)
		result.Holes = append(result.Holes, HoleSkin{
			Hole:      hole,
			WinnerID:  winner,
			Strokes:   low,
			Value:     value,
			CarriedIn: carry,
		})
		ps, ok := won[winner]
		if !ok {
			ps = &PlayerSkins{PlayerID: winner}
			won[winner] = ps
		}
		ps.SkinsWon += 1 + carry
		ps.ValueWon += value
		result.TotalAwarded += value
		carry = 0
	}

	result.UnresolvedCarry = carry
	result.UnresolvedValue = carry * cfg.StakePerHole

	for _, ps := range won {
		result.Players = append(result.Players, *ps)
	}
	sort.Slice(result.Players, func(i, j int) bool {
		return result.Players[i].PlayerID < result.Players[j].PlayerID
	})
	return result
}

// soleLowest returns the single player with the lowest stroke count, or ""
// when the hole is unscored or the low score is shared. The low score is
// returned either way (0 when unscored).
func soleLowest(holeScores map[string]int) (string, int) {
	winner := ""
	low := 0
	tied := false
	for player, strokes := range holeScores {
		switch {
		case winner == "" && !tied:
			winner, low = player, strokes
		case strokes < low:
			winner, low = player, strokes
			tied = false
		case strokes == low:
			tied = true
			winner = ""
		}
	}
	if tied {
		return "", low
	}
	return winner, low
}
