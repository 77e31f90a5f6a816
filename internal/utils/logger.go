// internal/utils/logger.go
package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger writes leveled log lines to stdout and a daily log file
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	out      io.Writer
	file     *os.File
	fileDate string
	logDir   string
}

var (
	defaultLogger *Logger
	loggerOnce    sync.Once
)

// InitLogger sets up the default logger with the given directory and level.
// Safe to call once from main before any logging happens.
func InitLogger(logDir string, debugMode bool) error {
	var initErr error
	loggerOnce.Do(func() {
		level := INFO
		if debugMode {
			level = DEBUG
		}
		defaultLogger, initErr = newLogger(logDir, level)
	})
	return initErr
}

// GetLogger returns the default logger, falling back to stdout-only
// when InitLogger was never called (tests, tooling).
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		defaultLogger = &Logger{level: INFO, out: os.Stdout}
	})
	return defaultLogger
}

func newLogger(logDir string, level LogLevel) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Logger{
		level:  level,
		logDir: logDir,
	}
	if err := l.rotate(); err != nil {
		return nil, err
	}
	return l, nil
}

// rotate opens the log file for the current date; caller holds no lock
func (l *Logger) rotate() error {
	date := time.Now().Format("2006-01-02")
	if l.file != nil && l.fileDate == date {
		return nil
	}

	if l.file != nil {
		l.file.Close()
	}

	path := filepath.Join(l.logDir, fmt.Sprintf("app_%s.log", date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	l.file = file
	l.fileDate = date
	l.out = io.MultiWriter(os.Stdout, file)
	return nil
}

// SetLevel changes the minimum level that gets written
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	// caller of the exported wrapper
	_, file, line, ok := runtime.Caller(2)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	msg := fmt.Sprintf(format, args...)
	formatted := fmt.Sprintf("[%s] %s %s - %s\n",
		level.String(), time.Now().Format("2006-01-02 15:04:05.000"), caller, msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logDir != "" {
		if err := l.rotate(); err != nil {
			log.Printf("log rotation failed: %v", err)
		}
	}
	if l.out == nil {
		l.out = os.Stdout
	}
	fmt.Fprint(l.out, formatted)

	if level == FATAL {
		os.Exit(1)
	}
}

// Debug logs a debug-level message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info-level message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning-level message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error-level message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Fatal logs a fatal message and exits the process
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
}

// Close releases the underlying log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
