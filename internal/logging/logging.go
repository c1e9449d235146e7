// Package logging wires the leveled gommon logger shared by every fincache
// component.
package logging

import (
	"io"

	"github.com/labstack/gommon/log"
)

// Logger is the subset of a leveled logger the components use.
// *log.Logger from gommon and echo.Logger both satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// New returns a gommon logger with the given prefix, at DEBUG level when
// debug is set and INFO otherwise.
func New(prefix string, debug bool) *log.Logger {
	l := log.New(prefix)
	if debug {
		l.SetLevel(log.DEBUG)
	} else {
		l.SetLevel(log.INFO)
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	l := log.New("-")
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}
