package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version     kong.VersionFlag `short:"v" help:"Show version"`
	Server      ServerCmd        `cmd:"" help:"Run the round scoring server"`
	Rounds      RoundsCmd        `cmd:"" help:"List rounds in a local database"`
	Leaderboard LeaderboardCmd   `cmd:"" help:"Show a round's standings from a local database"`
	Skins       SkinsCmd         `cmd:"" help:"Show a round's skins outcome from a local database"`
	Results     ResultsCmd       `cmd:"" help:"Show a completed round's full results from a local database"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("discround"),
		kong.Description("Disc golf round scoring, skins, and side-bet settlement"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
