package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type LoggerConfig struct {
	LogPath     string
	LogLevel    string // "debug", "info", "warn", "error"
	MaxLogFiles int    // Maximum number of rotated log files to keep
}

var (
	level    Level
	output   *log.Logger
	logFile  *os.File
	logMutex sync.Mutex
)

// DefaultConfig provides a default logging configuration
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		LogPath:     filepath.Join(os.TempDir(), "waypoint.log"),
		LogLevel:    "info",
		MaxLogFiles: 5,
	}
}

// ParseLevel converts a level name to a Level, defaulting to info.
// The LOG_LEVEL environment variable wins over the configured name.
func ParseLevel(name string) Level {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		name = env
	}

	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// InitLogger sets up file-based logging with configuration
func InitLogger(cfg LoggerConfig) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if cfg.LogPath == "" {
		cfg = DefaultConfig()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rotateLogFiles(cfg)

	file, err := os.OpenFile(cfg.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file
	level = ParseLevel(cfg.LogLevel)
	output = log.New(file, "", log.Ldate|log.Ltime|log.Lshortfile)

	return nil
}

// rotateLogFiles manages log file rotation
func rotateLogFiles(cfg LoggerConfig) {
	if cfg.MaxLogFiles <= 0 {
		return
	}

	baseDir := filepath.Dir(cfg.LogPath)
	baseFileName := filepath.Base(cfg.LogPath)
	files, _ := filepath.Glob(filepath.Join(baseDir, baseFileName+".*"))

	if len(files) >= cfg.MaxLogFiles {
		sort.Slice(files, func(i, j int) bool {
			fiA, _ := os.Stat(files[i])
			fiB, _ := os.Stat(files[j])

			return fiA.ModTime().Before(fiB.ModTime())
		})

		for _, oldFile := range files[:len(files)-cfg.MaxLogFiles+1] {
			if err := os.Remove(oldFile); err != nil {
				log.Printf("failed to remove old log file %s: %v", oldFile, err)
			}
		}
	}
}

func emit(msgLevel Level, prefix string, v ...any) {
	if output == nil || msgLevel < level {
		return
	}

	_ = output.Output(3, prefix+": "+fmt.Sprintln(v...))
}

// Debug logs a debug message with caller context
func Debug(v ...any) {
	emit(LevelDebug, "DEBUG", v...)
}

// Info logs an informational message with caller context
func Info(v ...any) {
	emit(LevelInfo, "INFO", v...)
}

// Warn logs a warning message with caller context
func Warn(v ...any) {
	emit(LevelWarn, "WARN", v...)
}

// Error logs an error message with caller context
func Error(v ...any) {
	emit(LevelError, "ERROR", v...)
}

// Close closes the log file
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			log.Printf("failed to close log file: %v", err)
		}

		logFile = nil
		output = nil
	}
}
