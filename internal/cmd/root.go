package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"testbed/config"
	"testbed/logging"
)

// ExitError carries the exit code of a failed test run.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"50"`

	Run         RunCmd         `cmd:"" help:"Run style checks and the test suite" default:"withargs"`
	EntryPoints EntryPointsCmd `cmd:"entrypoints" help:"List entry points registered by plugin manifests"`
	Settings    SettingsCmd    `cmd:"settings" help:"Show the effective settings"`

	settings *config.Settings `kong:"-"`
	out      io.Writer        `kong:"-"`
}

// SetSettings sets the settings on the CLI struct
func (c *CLI) SetSettings(settings *config.Settings) {
	c.settings = settings
}

// SetOutput changes where commands print. Defaults to stdout.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

func (c *CLI) output() io.Writer {
	if c.out == nil {
		return os.Stdout
	}
	return c.out
}

func (c *CLI) loadedSettings() *config.Settings {
	if c.settings == nil {
		return &config.Settings{}
	}
	return c.settings
}

// AfterApply initializes logging after CLI parsing and applies settings
func (c *CLI) AfterApply() error {
	// CLI flags > env vars > settings.json > defaults
	if c.settings != nil {
		if c.MaxLogFiles == logging.DefaultMaxLogFiles {
			if _, hasEnv := os.LookupEnv("TESTBED_MAX_LOG_FILES"); !hasEnv {
				if c.settings.MaxLogFiles != nil {
					c.MaxLogFiles = *c.settings.MaxLogFiles
				}
			}
		}

		if !c.Debug {
			if c.settings.Debug != nil && *c.settings.Debug {
				c.Debug = true
			}
		}
	}

	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// go test children log to the same file
	if c.Debug || c.DebugFile != "" {
		os.Setenv("TESTBED_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("TESTBED_DEBUG_FILE", logFilePath)
		}
	}
	if c.MaxLogFiles != logging.DefaultMaxLogFiles {
		os.Setenv("TESTBED_MAX_LOG_FILES", fmt.Sprintf("%d", c.MaxLogFiles))
	}

	return nil
}
