// Package app defines the sitewatch command-line application
package app

import (
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/trackerhq/sitewatch/config"
)

// disableStyling disables all styling provided by pterm.
func disableStyling() {
	pterm.DisableColor()
	pterm.DisableStyling()
	pterm.Debug.Prefix.Text = ""
	pterm.Info.Prefix.Text = ""
	pterm.Success.Prefix.Text = ""
	pterm.Warning.Prefix.Text = ""
	pterm.Error.Prefix.Text = ""
	pterm.Fatal.Prefix.Text = ""
}

// Get retrieves the sitewatch app instance.
func Get() *cli.App {
	sitewatchApp := &cli.App{
		Name: "sitewatch",
		Usage: `
		Sitewatch attributes browsing time to the site in focus. It consumes
		activity events from a browser extension, records per-domain sessions
		in a local database, and reports aggregated usage statistics.`,
		UsageText:            "[COMMAND] [OPTIONS]",
		Version:              config.Version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name: "track",
				Usage: `
				Run the tracking daemon. Activity events are consumed as
				newline-delimited JSON on standard input`,
				Action: trackAction,
				Flags: []cli.Flag{
					debounceFlag,
					saveIntervalFlag,
					verboseFlag,
				},
			},
			{
				Name: "stats",
				Usage: `
				Report aggregated per-site statistics. Defaults to a reporting
				period of 7 days`,
				Action: statsAction,
				Flags: []cli.Flag{
					periodFlag,
					startFlag,
					endFlag,
					siteFlag,
					jsonFlag,
				},
			},
			{
				Name:   "sessions",
				Usage:  "List the recorded sessions within a time period",
				Action: sessionsAction,
				Flags: []cli.Flag{
					periodFlag,
					startFlag,
					endFlag,
					siteFlag,
					jsonFlag,
				},
			},
			{
				Name:   "edit-config",
				Usage:  "Edit the configuration file",
				Action: editConfigAction,
			},
		},
		Flags: []cli.Flag{
			noColorFlag,
		},
		Action: trackAction,
		Before: beforeAction,
		After:  afterAction,
	}

	return sitewatchApp
}
