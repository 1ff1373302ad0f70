package config

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// viperKeys defines the mapping between config keys and their Viper
// counterparts.
const (
	keyDebounceWindow     = "tracking.debounce_window"
	keySaveInterval       = "tracking.save_interval"
	keyRevisitWindow      = "tracking.revisit_window"
	keyDriftTolerance     = "tracking.drift_tolerance"
	keyMaxSessionDuration = "tracking.max_session_duration"
	keyDeltaSafetyFactor  = "tracking.delta_safety_factor"
	keyDarkTheme          = "display.dark_theme"
	keyVerboseLogging     = "logging.verbose"
)

var (
	trackerCfg *TrackerConfig

	once sync.Once
)

// TrackerConfig represents the tracking daemon's settings.
type TrackerConfig struct {
	// DebounceWindow is the quiet period a focus change must survive
	// before it becomes a transition.
	DebounceWindow time.Duration
	// SaveInterval is the cadence of the periodic persistence loop.
	SaveInterval time.Duration
	// RevisitWindow bounds how soon a return to the previous domain
	// reopens its finalized session instead of creating a new one.
	RevisitWindow time.Duration
	// DriftTolerance bounds how far a transition timestamp may deviate
	// from the tracker's clock before it is rejected.
	DriftTolerance time.Duration
	// MaxSessionDuration is the sanity ceiling on any single session.
	MaxSessionDuration time.Duration
	// DeltaSafetyFactor scales SaveInterval into the largest duration
	// increment the store will accept in one write.
	DeltaSafetyFactor int
	DarkTheme         bool
	Verbose           bool
	PathToConfig      string
	PathToDB          string
	PathToLog         string
}

// MaxDelta is the ceiling on a single duration increment.
func (c *TrackerConfig) MaxDelta() time.Duration {
	return c.SaveInterval * time.Duration(c.DeltaSafetyFactor)
}

func setTrackerDefaults(v *viper.Viper) {
	v.SetDefault(keyDebounceWindow, "300ms")
	v.SetDefault(keySaveInterval, "3s")
	v.SetDefault(keyRevisitWindow, "15s")
	v.SetDefault(keyDriftTolerance, "5s")
	v.SetDefault(keyMaxSessionDuration, "4h")
	v.SetDefault(keyDeltaSafetyFactor, 3)
	v.SetDefault(keyDarkTheme, true)
	v.SetDefault(keyVerboseLogging, false)
}

func loadTrackerConfig(v *viper.Viper, c *TrackerConfig) error {
	c.DebounceWindow = v.GetDuration(keyDebounceWindow)
	c.SaveInterval = v.GetDuration(keySaveInterval)
	c.RevisitWindow = v.GetDuration(keyRevisitWindow)
	c.DriftTolerance = v.GetDuration(keyDriftTolerance)
	c.MaxSessionDuration = v.GetDuration(keyMaxSessionDuration)
	c.DeltaSafetyFactor = v.GetInt(keyDeltaSafetyFactor)
	c.DarkTheme = v.GetBool(keyDarkTheme)
	c.Verbose = v.GetBool(keyVerboseLogging)

	if c.DebounceWindow <= 0 || c.SaveInterval <= 0 {
		return errConfigValidation
	}

	if c.DeltaSafetyFactor < 1 {
		return errConfigValidation
	}

	return nil
}

func setTrackerConfig(ctx *cli.Context) error {
	v := viper.New()

	v.SetConfigFile(configFilePath)
	v.SetConfigType("yaml")

	setTrackerDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", errReadConfig, err)
		}

		if err = v.WriteConfig(); err != nil {
			return fmt.Errorf("%w: %v", errWriteConfig, err)
		}
	}

	if err = loadTrackerConfig(v, trackerCfg); err != nil {
		return err
	}

	// command-line overrides
	if ctx.Duration("debounce") > 0 {
		trackerCfg.DebounceWindow = ctx.Duration("debounce")
	}

	if ctx.Duration("save-interval") > 0 {
		trackerCfg.SaveInterval = ctx.Duration("save-interval")
	}

	if ctx.Bool("verbose") {
		trackerCfg.Verbose = true
	}

	return nil
}

// Tracker initializes and returns the tracking configuration, loading
// it from the config file and command-line arguments on first use.
func Tracker(ctx *cli.Context) *TrackerConfig {
	once.Do(func() {
		trackerCfg = &TrackerConfig{
			PathToConfig: configFilePath,
			PathToDB:     dbFilePath,
			PathToLog:    logFilePath,
		}

		if err := setTrackerConfig(ctx); err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
	})

	return trackerCfg
}
