// Package logging is a thin leveled wrapper over the standard log package.
// Commands configure it once at startup; debug output is opt-in.
package logging

import (
	"io"
	"log"
	"os"
)

type logger struct {
	debug bool
	out   *log.Logger
}

var current *logger

// Initialize configures the process-wide logger. Called from
// cobra.OnInitialize before any command runs.
func Initialize(debug bool) {
	var w io.Writer = os.Stdout
	if log.Writer() != os.Stderr {
		w = log.Writer()
	}
	current = &logger{
		debug: debug,
		out:   log.New(w, "", log.LstdFlags),
	}
}

// Info logs an operational event.
func Info(format string, args ...interface{}) {
	if current != nil {
		current.out.Printf(format, args...)
	}
}

// Debug logs diagnostic detail, emitted only when debug mode is on.
func Debug(format string, args ...interface{}) {
	if current != nil && current.debug {
		current.out.Printf("DEBUG: "+format, args...)
	}
}

// Error logs a handled failure that deserves operator attention.
func Error(format string, args ...interface{}) {
	if current != nil {
		current.out.Printf("ERROR: "+format, args...)
	}
}

// IsDebugEnabled reports whether debug output is on.
func IsDebugEnabled() bool {
	return current != nil && current.debug
}
