package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// sink is the output state shared by a Logger and every logger derived from it with With.
type sink struct {
	mu      sync.Mutex
	writer  io.Writer
	errOut  io.Writer
	fileLog *os.File
	hasBar  bool
}

// Logger handles leveled logging to the console with optional file output.
// Loggers derived with With share the same outputs and only differ in prefix.
type Logger struct {
	Verbose bool
	prefix  string
	out     *sink
}

// New creates a new Logger writing to stdout and stderr.
func New(verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		out:     &sink{writer: os.Stdout, errOut: os.Stderr},
	}
}

// NewWriter creates a Logger that sends every level, errors included, to w.
func NewWriter(w io.Writer, verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		out:     &sink{writer: w, errOut: w},
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, false)
}

// With returns a logger that tags each line with the component name.
func (l *Logger) With(component string) *Logger {
	prefix := component
	if l.prefix != "" {
		prefix = l.prefix + "/" + component
	}
	return &Logger{Verbose: l.Verbose, prefix: prefix, out: l.out}
}

// SetFileLog enables logging to a file
func (l *Logger) SetFileLog(path string) error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.out.fileLog = f
	return nil
}

// SetProgressBar indicates that a progress bar is active
func (l *Logger) SetProgressBar(active bool) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.hasBar = active
}

// Close closes the log file if open
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.fileLog != nil {
		err := l.out.fileLog.Close()
		l.out.fileLog = nil
		return err
	}
	return nil
}

// Info logs informational messages
func (l *Logger) Info(format string, args ...any) {
	l.log("INFO", format, args...)
}

// Debug logs detailed messages only in verbose mode
func (l *Logger) Debug(format string, args ...any) {
	if l.Verbose {
		l.log("DEBUG", format, args...)
		return
	}
	// Debug always reaches the log file, even in non-verbose mode
	l.logToFile("DEBUG", format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...any) {
	l.log("WARN", format, args...)
}

// Error logs error messages to stderr
func (l *Logger) Error(format string, args ...any) {
	msg := l.format("ERROR", format, args...)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	fmt.Fprint(l.out.errOut, msg)
	if l.out.fileLog != nil {
		l.out.fileLog.WriteString(msg)
	}
}

func (l *Logger) format(level, format string, args ...any) string {
	if l.prefix != "" {
		format = "(" + l.prefix + ") " + format
	}
	if level == "INFO" {
		return fmt.Sprintf(format+"\n", args...)
	}
	return fmt.Sprintf("["+level+"] "+format+"\n", args...)
}

func (l *Logger) log(level, format string, args ...any) {
	msg := l.format(level, format, args...)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	// Keep the console quiet while a progress bar owns the terminal
	if l.Verbose || !l.out.hasBar {
		fmt.Fprint(l.out.writer, msg)
	}

	if l.out.fileLog != nil {
		l.out.fileLog.WriteString(msg)
	}
}

func (l *Logger) logToFile(level, format string, args ...any) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.fileLog != nil {
		l.out.fileLog.WriteString(l.format(level, format, args...))
	}
}
