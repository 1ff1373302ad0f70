package app

import "github.com/urfave/cli/v2"

var (
	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable coloured output",
	}

	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug-level logging",
	}

	debounceFlag = &cli.DurationFlag{
		Name:  "debounce",
		Usage: "Quiet window a focus change must survive before it becomes a transition (e.g. '300ms')",
	}

	saveIntervalFlag = &cli.DurationFlag{
		Name:    "save-interval",
		Aliases: []string{"i"},
		Usage:   "Cadence of the periodic persistence loop (e.g. '3s')",
	}

	periodFlag = &cli.StringFlag{
		Name:    "period",
		Aliases: []string{"p"},
		Usage:   "Specify a time period for the report. Options: today, yesterday, 7days, 14days, 30days,\n\t\t\t\t90days, 180days, 365days, all-time",
		Value:   "7days",
	}

	startFlag = &cli.StringFlag{
		Name:  "start",
		Usage: "Specify a start date/time for the report (e.g. '2024-06-01')",
	}

	endFlag = &cli.StringFlag{
		Name:  "end",
		Usage: "Specify an end date/time for the report. Defaults to the current time",
	}

	siteFlag = &cli.StringFlag{
		Name:    "site",
		Aliases: []string{"s"},
		Usage:   "Limit the report to comma-delimited domains (e.g. 'youtube.com,reddit.com')",
	}

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Output as JSON for the UI/sync layer",
	}
)
