// Package logger writes diagnostics to a rotating file under the config
// directory. Until Init runs everything is discarded.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/tally/internal/constants"
)

// Logger is the process-wide logger.
var Logger = log.New(io.Discard)

var file *lumberjack.Logger

type Config struct {
	Debug     bool
	ConfigDir string
}

// Path is where Init writes the log for configDir.
func Path(configDir string) string {
	return filepath.Join(configDir, "logs", constants.LogFileName)
}

// Init points Logger at the rotating log file. Debug lowers the level and
// mirrors output to stderr.
func Init(cfg Config) error {
	path := Path(cfg.ConfigDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	_ = Close()
	file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // MB
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	Logger = log.NewWithOptions(output(cfg.Debug, file), options(cfg.Debug))
	return nil
}

// Close flushes and detaches the log file.
func Close() error {
	Logger = log.New(io.Discard)
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

func output(debug bool, w io.Writer) io.Writer {
	// stderr belongs to the TUI unless debugging
	if debug {
		return io.MultiWriter(os.Stderr, w)
	}
	return w
}

func options(debug bool) log.Options {
	opts := log.Options{
		Level:           log.WarnLevel,
		Prefix:          constants.AppName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}
	if debug {
		opts.Level = log.DebugLevel
		opts.ReportCaller = true
		opts.CallerOffset = 1
	}
	return opts
}

func Debug(msg string, keyvals ...any) { Logger.Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { Logger.Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { Logger.Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { Logger.Error(msg, keyvals...) }
