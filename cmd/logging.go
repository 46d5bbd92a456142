// Copyright 2013 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cmd

import (
	"io"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("juju.cmd")

// LoggingConfigEnvKey names the environment variable holding the default
// logging configuration.
const LoggingConfigEnvKey = "JUJU_LOGGING_CONFIG"

// Log supplies the flags controlling where log messages go and how
// verbose they are.
type Log struct {
	// DefaultConfig is used when no --logging-config is given.
	DefaultConfig string

	Config  string
	Verbose bool
	Debug   bool
}

// AddFlags adds the logging flags to f.
func (l *Log) AddFlags(f *gnuflag.FlagSet) {
	f.StringVar(&l.Config, "logging-config", l.DefaultConfig, "specify log levels for modules")
	f.BoolVar(&l.Verbose, "verbose", false, "show more verbose output")
	f.BoolVar(&l.Debug, "debug", false, "equivalent to --logging-config=<root>=DEBUG")
}

// Start replaces the default log writer with one writing to stderr and
// configures the log levels.
func (l *Log) Start(stderr io.Writer) error {
	config := l.Config
	switch {
	case l.Debug:
		config = "<root>=DEBUG;" + config
	case l.Verbose:
		config = "<root>=INFO;" + config
	}
	writer := loggo.NewSimpleWriter(stderr, loggo.DefaultFormatter)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		// The default writer has been removed; register a new one.
		if err := loggo.RegisterWriter(loggo.DefaultWriterName, writer); err != nil {
			return errors.Trace(err)
		}
	}
	if err := loggo.ConfigureLoggers(config); err != nil {
		return errors.Annotate(err, "configuring loggers")
	}
	return nil
}
