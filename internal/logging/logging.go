// Package logging configures the process-wide logrus logger and hands out
// component-tagged entries.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options selects the log level, format and destination.
type Options struct {
	Level string
	JSON  bool
	File  string
}

// Setup applies opts to the standard logrus logger. An unknown level falls
// back to info. When File is set, output goes to both stderr and the file.
func Setup(opts Options) error {
	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if opts.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000000",
		})
	}

	if opts.File == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	f, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

// For returns an entry tagged with the given component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
