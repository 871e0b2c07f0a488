// Package logger prints the diagnostics of raindrop commands.
//
// Debug, Info and Warn lines and section headings are written only in
// verbose mode (the --verbose flag); they trace what the plugin manager,
// the storage backends and the task runner are doing. Error lines are
// always written. Output goes to stderr unless redirected.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var prefixes = [...]string{
	levelDebug: "[DEBUG] ",
	levelInfo:  "[INFO] ",
	levelWarn:  "[WARN] ",
	levelError: "[ERROR] ",
}

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// IsVerbose reports whether verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects all log lines to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// logf holds the write lock so concurrent lines never interleave.
func logf(l level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < levelError && !verbose {
		return
	}
	fmt.Fprintf(output, prefixes[l]+format+"\n", args...)
}

// Debug traces internal steps.
func Debug(format string, args ...any) { logf(levelDebug, format, args...) }

// Info reports notable events such as a created user.
func Info(format string, args ...any) { logf(levelInfo, format, args...) }

// Warn reports recoverable problems.
func Warn(format string, args ...any) { logf(levelWarn, format, args...) }

// Error reports failures. It is printed even when not verbose.
func Error(format string, args ...any) { logf(levelError, format, args...) }

// Section starts a titled block of verbose output.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
