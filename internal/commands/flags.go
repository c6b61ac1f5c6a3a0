package commands

import (
	"path/filepath"

	"github.com/nhle/noticeboard/internal/model"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Ephemeral keeps read state in memory for this run only.
	Ephemeral bool

	// Config is loaded in the Before hook and available to all commands
	Config *model.AppConfig
}

// DefaultConfigPath returns ~/.config/noticeboard/config.yaml.
func DefaultConfigPath() string {
	return model.DefaultConfigPath()
}

// DefaultLogFile returns the log path used when neither the flag nor the
// config names one. The TUI owns the terminal, so logs always go to a file.
func DefaultLogFile() string {
	return filepath.Join(model.ConfigDir(), "noticeboard.log")
}
