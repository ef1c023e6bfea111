package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Logger is the harness-wide logger. It discards everything until Initialize
// enables debug output, so packages can log unconditionally.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// DefaultMaxLogFiles is the rotation limit used when none is configured.
const DefaultMaxLogFiles = 50

// Initialize sets up the logger based on the debug flag and configuration.
// It returns the path of the log file in use, or "" when logging is discarded.
func Initialize(debug bool, debugFile string, maxLogFiles int) (string, error) {
	// Child processes (go test run by the CLI) inherit the parent's settings
	if os.Getenv("TESTBED_DEBUG") == "1" {
		debug = true
	}
	if envDebugFile := os.Getenv("TESTBED_DEBUG_FILE"); envDebugFile != "" && debugFile == "" {
		debugFile = envDebugFile
	}
	if envMaxLogFiles := os.Getenv("TESTBED_MAX_LOG_FILES"); envMaxLogFiles != "" && maxLogFiles == DefaultMaxLogFiles {
		// An explicit flag value wins over the environment
		if parsed, err := strconv.Atoi(envMaxLogFiles); err == nil {
			maxLogFiles = parsed
		}
	}

	if !debug && debugFile == "" {
		// Nothing asked for logs, keep discarding them
		Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return "", nil
	}

	var logFilePath string
	if debugFile != "" {
		// Custom debug file, never rotated
		logFilePath = debugFile

		// Create its directory if needed
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return "", fmt.Errorf("failed to create log directory: %w", err)
		}
	} else {
		// Per-OS log directory with rotation
		logDir, err := getLogDir()
		if err != nil {
			return "", fmt.Errorf("failed to get log directory: %w", err)
		}

		// Create log directory if it doesn't exist
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create log directory: %w", err)
		}

		// Rotate logs if needed
		if maxLogFiles > 0 {
			if err := rotateLogs(logDir, maxLogFiles); err != nil {
				// Keep logging even when old files cannot be removed
				fmt.Fprintf(os.Stderr, "Warning: log rotation failed: %v\n", err)
			}
		}

		// One file per run, named by UUID
		logFilePath = filepath.Join(logDir, fmt.Sprintf("%s.log", uuid.New().String()))
	}

	// Open log file
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}

	// JSON lines at debug level
	Logger = slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	Logger.Debug("Debug logging initialized", "log_file", logFilePath, "pid", os.Getpid())

	return logFilePath, nil
}

// SetOutput routes debug logs to w. Tests use it to capture harness logs.
func SetOutput(w io.Writer) {
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// rotateLogs deletes the oldest *.log files in logDir so that, counting the
// file about to be created, at most maxLogFiles remain.
func rotateLogs(logDir string, maxLogFiles int) error {
	// Read all entries in the directory
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	// Keep only *.log files with their modification time
	var files []logFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		if info, err := entry.Info(); err == nil {
			files = append(files, logFile{path: filepath.Join(logDir, entry.Name()), modTime: info.ModTime()})
		}
	}

	// +1 leaves room for the file about to be created
	excess := len(files) - maxLogFiles + 1
	if excess <= 0 {
		// Under the limit, nothing to do
		return nil
	}

	// Oldest first
	slices.SortFunc(files, func(a, b logFile) int { return a.modTime.Compare(b.modTime) })
	for _, f := range files[:excess] {
		if err := os.Remove(f.path); err != nil {
			// Continue with the rest
			fmt.Fprintf(os.Stderr, "Warning: failed to delete old log file %s: %v\n", f.path, err)
		}
	}
	return nil
}

// getLogDir returns the OS-specific log directory
func getLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		// macOS: ~/Library/Logs/testbed
		return filepath.Join(homeDir, "Library", "Logs", "testbed"), nil
	case "linux":
		// Linux: $XDG_STATE_HOME/testbed, defaulting to ~/.local/state/testbed
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			stateHome = filepath.Join(homeDir, ".local", "state")
		}
		return filepath.Join(stateHome, "testbed"), nil
	case "windows":
		// Windows: %LOCALAPPDATA%\testbed\logs
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "testbed", "logs"), nil
	default:
		// Anything else: ~/.testbed/logs
		return filepath.Join(homeDir, ".testbed", "logs"), nil
	}
}
