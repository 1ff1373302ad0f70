package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/trackerhq/sitewatch/config"
	"github.com/trackerhq/sitewatch/internal/logutil"
	"github.com/trackerhq/sitewatch/internal/session"
	"github.com/trackerhq/sitewatch/internal/ui"
	"github.com/trackerhq/sitewatch/stats"
	"github.com/trackerhq/sitewatch/store"
	"github.com/trackerhq/sitewatch/tracker"
)

const (
	envNoColor          = "NO_COLOR"
	envSitewatchNoColor = "SITEWATCH_NO_COLOR"
)

// firstNonEmptyString returns its first non-empty argument, or "" if
// all arguments are empty.
func firstNonEmptyString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}

	return ""
}

// openStore initialises the tracking configuration, logging, and the
// session database shared by every command.
func openStore(ctx *cli.Context) (*config.TrackerConfig, store.DB, error) {
	cfg := config.Tracker(ctx)

	logutil.Init(cfg.PathToLog, cfg.Verbose)

	ui.DarkTheme = cfg.DarkTheme

	db, err := store.NewClient(cfg.PathToDB, cfg.MaxSessionDuration, cfg.MaxDelta())
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}

// trackAction runs the tracking daemon until interrupted or until the
// event source closes its end of the pipe.
func trackAction(ctx *cli.Context) error {
	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}

	defer db.Close()

	trk := tracker.New(db, cfg, nil)
	coord := tracker.NewCoordinator(trk, cfg.DebounceWindow)
	saver := tracker.NewAutosave(trk, cfg.SaveInterval, nil)

	runCtx, stop := signal.NotifyContext(
		ctx.Context,
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	go saver.Run(runCtx)

	lines := make(chan []byte)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())

			select {
			case lines <- line:
			case <-runCtx.Done():
				return
			}
		}
	}()

	slog.Info("sitewatch is tracking", slog.String("db", cfg.PathToDB))
	pterm.Info.Println("tracking started: reading activity events from stdin")

loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				// event source went away
				break loop
			}

			var ev tracker.RawEvent

			if err := json.Unmarshal(line, &ev); err != nil {
				slog.Debug("discarding undecodable event", slog.Any("error", err))
				continue
			}

			coord.Feed(ev)
		}
	}

	coord.Stop()
	trk.Stop(tracker.SystemClock{}.Now())

	slog.Info(
		"tracking stopped",
		slog.Int64("malformed_events", coord.Malformed()),
		slog.Int64("stale_events", coord.Stale()),
		slog.Int64("rejected_transitions", trk.Rejected()),
	)

	return nil
}

// statsAction computes the stats for the specified time period.
func statsAction(ctx *cli.Context) error {
	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}

	defer db.Close()

	opts := config.Filter(ctx)

	sessions, err := db.GetSessions(opts.StartTime, opts.EndTime, opts.Domains)
	if err != nil {
		return err
	}

	s := &stats.Stats{
		Opts:               opts,
		MaxSessionDuration: cfg.MaxSessionDuration,
	}

	s.Compute(sessions)

	s.Summary.CorruptRecords += db.Corrupt()

	if ctx.Bool("json") {
		b, err := s.ToJSON()
		if err != nil {
			return err
		}

		fmt.Println(string(b))

		return nil
	}

	return s.Show(os.Stdout)
}

// sessionsAction prints the sessions recorded within a time period.
func sessionsAction(ctx *cli.Context) error {
	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}

	defer db.Close()

	opts := config.Filter(ctx)

	sessions, err := db.GetSessions(opts.StartTime, opts.EndTime, opts.Domains)
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		b, err := session.ToJSON(sessions)
		if err != nil {
			return err
		}

		pterm.Println(string(b))

		return nil
	}

	return session.List(os.Stdout, sessions)
}

// editConfigAction handles the edit-config command which opens the
// sitewatch config file in the user's default text editor.
func editConfigAction(ctx *cli.Context) error {
	defaultEditor := "nano"

	if runtime.GOOS == "windows" {
		defaultEditor = "C:\\Windows\\system32\\notepad.exe"
	}

	editor := firstNonEmptyString(
		os.Getenv("VISUAL"),
		os.Getenv("EDITOR"),
		defaultEditor,
	)

	cfg := config.Tracker(ctx)

	cmd := exec.Command(editor, cfg.PathToConfig)

	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	return cmd.Run()
}

func beforeAction(ctx *cli.Context) error {
	config.InitializePaths()

	pterm.Error.MessageStyle = pterm.NewStyle(pterm.FgRed)
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}

	// Disable colour output if NO_COLOR is set
	if _, exists := os.LookupEnv(envNoColor); exists {
		disableStyling()
	}

	// Disable colour output if SITEWATCH_NO_COLOR is set
	if _, exists := os.LookupEnv(envSitewatchNoColor); exists {
		disableStyling()
	}

	if ctx.Bool("no-color") {
		disableStyling()
	}

	return nil
}

func afterAction(ctx *cli.Context) error {
	slog.InfoContext(ctx.Context, "exiting sitewatch")

	return nil
}
