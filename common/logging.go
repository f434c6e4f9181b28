// Package common holds process-wide helpers shared by the binaries: logger
// setup and build metadata.
package common

import (
	"log/slog"
	"os"
)

// Version is set at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"

// PackageName is used as the metrics namespace.
const PackageName = "trex_suite_provisioning"

type LoggingOpts struct {
	Debug   bool
	JSON    bool
	Service string
	Version string
}

// SetupLogger creates the process logger. Text output goes to stderr so that
// stdout stays reserved for the address table hand-off.
func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	} else {
		log = slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}

	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}

	return log
}
