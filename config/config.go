// Package config handles file paths and user-tunable settings for
// sitewatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pterm/pterm"
)

const Version = "v0.3.1"

var (
	configDir      = "sitewatch"
	configFileName = "config.yml"
	dbFileName     = "sitewatch.db"
	logFileName    = "sitewatch.log"
	dbFilePath     string
	configFilePath string
	logFilePath    string
)

func Dir() string {
	return configDir
}

func DBFilePath() string {
	return dbFilePath
}

func FilePath() string {
	return configFilePath
}

func LogFilePath() string {
	return logFilePath
}

// InitializePaths resolves the config, database, and log file locations
// through XDG. SITEWATCH_ENV suffixes the file names so that tests and
// development runs never touch real tracking data.
func InitializePaths() {
	env := strings.TrimSpace(os.Getenv("SITEWATCH_ENV"))
	if env != "" {
		configFileName = fmt.Sprintf("config_%s.yml", env)
		dbFileName = fmt.Sprintf("sitewatch_%s.db", env)
		logFileName = fmt.Sprintf("sitewatch_%s.log", env)
	}

	var err error

	relPath := filepath.Join(configDir, configFileName)

	configFilePath, err = xdg.ConfigFile(relPath)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	dataDir, err := xdg.DataFile(configDir)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

	dbFilePath = filepath.Join(dataDir, dbFileName)

	logFilePath = filepath.Join(dataDir, logFileName)
}
