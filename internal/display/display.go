// Package display renders round results for terminal output.
package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/treeline/discround/internal/round"
	"github.com/treeline/discround/internal/scoring"
	"github.com/treeline/discround/internal/sidebet"
)

// Styles contains styling for result display
type Styles struct {
	Header    lipgloss.Style
	SubHeader lipgloss.Style
	Winner    lipgloss.Style
	Muted     lipgloss.Style
	Money     lipgloss.Style
	UnderPar  lipgloss.Style
	OverPar   lipgloss.Style
}

// NewStyles creates a new set of display styles
func NewStyles() *Styles {
	return &Styles{
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 2).
			Bold(true),
		SubHeader: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true),
		Winner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
		Money: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		UnderPar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")),
		OverPar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")),
	}
}

// Renderer formats round results as styled terminal text.
type Renderer struct {
	styles *Styles
}

// NewRenderer creates a renderer with the default styles.
func NewRenderer() *Renderer {
	return &Renderer{styles: NewStyles()}
}

// Leaderboard renders the standings as an aligned table, one row per
// player in rank order.
func (r *Renderer) Leaderboard(entries []scoring.LeaderboardEntry) string {
	var b strings.Builder
	b.WriteString(r.styles.Header.Render("LEADERBOARD"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%-4s %-20s %7s %7s %6s %6s\n",
		"POS", "PLAYER", "TOTAL", "TO PAR", "THRU", "")
	for _, e := range entries {
		pos := fmt.Sprintf("%d", e.Rank)
		if e.Tied {
			pos = "T" + pos
		}
		row := fmt.Sprintf("%-4s %-20s %7d %7s %6d %6s",
			pos, e.PlayerID, e.TotalStrokes, r.relative(e), e.HolesCompleted, "")
		if e.Rank == 1 && e.HolesCompleted > 0 {
			row = r.styles.Winner.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Renderer) relative(e scoring.LeaderboardEntry) string {
	if e.HolesCompleted == 0 {
		return "-"
	}
	switch {
	case e.RelativeScore < 0:
		return r.styles.UnderPar.Render(fmt.Sprintf("%d", e.RelativeScore))
	case e.RelativeScore > 0:
		return r.styles.OverPar.Render(fmt.Sprintf("+%d", e.RelativeScore))
	default:
		return "E"
	}
}

// Skins renders the hole-by-hole skins outcome and the per-player totals.
func (r *Renderer) Skins(result *scoring.SkinsResult) string {
	var b strings.Builder
	b.WriteString(r.styles.Header.Render("SKINS"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%-6s %-20s %8s %8s\n", "HOLE", "WINNER", "VALUE", "CARRY")
	for _, h := range result.Holes {
		if h.Carried {
			fmt.Fprintf(&b, "%-6d %-20s %8s %8d\n",
				h.Hole, r.styles.Muted.Render("carried"), "-", h.CarriedIn+1)
			continue
		}
		fmt.Fprintf(&b, "%-6d %-20s %8s %8d\n",
			h.Hole, h.WinnerID, r.styles.Money.Render(fmt.Sprintf("%d", h.Value)), h.CarriedIn)
	}
	b.WriteString("\n")
	for _, p := range result.Players {
		fmt.Fprintf(&b, "%-20s %d skins, %s\n",
			p.PlayerID, p.SkinsWon, r.styles.Money.Render(fmt.Sprintf("%d", p.ValueWon)))
	}
	if result.UnresolvedCarry > 0 {
		fmt.Fprintf(&b, "%s\n", r.styles.Muted.Render(fmt.Sprintf(
			"unresolved: %d skins worth %d carried past the final hole",
			result.UnresolvedCarry, result.UnresolvedValue)))
	}
	return b.String()
}

// Settlements renders the side-bet payouts of a completed round.
func (r *Renderer) Settlements(settlements []*sidebet.Settlement, failures []sidebet.BetFailure) string {
	var b strings.Builder
	b.WriteString(r.styles.Header.Render("SIDE BETS"))
	b.WriteString("\n")
	if len(settlements) == 0 && len(failures) == 0 {
		b.WriteString(r.styles.Muted.Render("no side bets"))
		b.WriteString("\n")
		return b.String()
	}
	for _, s := range settlements {
		fmt.Fprintf(&b, "%s %s\n",
			r.styles.SubHeader.Render("settled"), strings.Join(s.Winners, ", "))
		players := make([]string, 0, len(s.Payouts))
		for id := range s.Payouts {
			players = append(players, id)
		}
		sort.Strings(players)
		for _, id := range players {
			fmt.Fprintf(&b, "  %-20s %s\n",
				id, r.styles.Money.Render(fmt.Sprintf("%d", s.Payouts[id])))
		}
	}
	for _, f := range failures {
		fmt.Fprintf(&b, "%s %s: %s\n",
			r.styles.OverPar.Render("failed"), f.Name, f.Error)
	}
	return b.String()
}

// CompletionResult renders everything a finished round produced.
func (r *Renderer) CompletionResult(result *round.CompletionResult) string {
	var b strings.Builder
	b.WriteString(r.Leaderboard(result.Leaderboard))
	b.WriteString("\n")
	if result.Skins != nil {
		b.WriteString(r.Skins(result.Skins))
		b.WriteString("\n")
	}
	b.WriteString(r.Settlements(result.Settlements, result.BetFailures))
	return b.String()
}
