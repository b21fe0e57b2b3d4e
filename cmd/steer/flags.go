package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

var (
	logLevel  string
	logFormat string
	debug     bool

	flowPath   string
	traceFile  string
	modTimeout time.Duration

	seed   int64
	hidden int
	script string
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// backendFlags configure the toy backend.
func backendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "seed for the toy model weights and sampler",
			Value:       1,
			Destination: &seed,
		},
		&cli.IntFlag{
			Name:        "hidden",
			Usage:       "toy model hidden size",
			Value:       16,
			Destination: &hidden,
		},
		&cli.StringFlag{
			Name:        "script",
			Usage:       "text the toy model prefers to generate",
			Destination: &script,
		},
	}
}

func steeringFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "flow",
			Aliases:     []string{"f"},
			Usage:       "path to a YAML flow definition to run as a mod",
			Destination: &flowPath,
		},
		&cli.StringFlag{
			Name:        "trace-file",
			Usage:       "append finished request traces to this file as JSON lines",
			Destination: &traceFile,
		},
		&cli.DurationFlag{
			Name:        "mod-timeout",
			Usage:       "per-invocation mod deadline (negative disables)",
			Destination: &modTimeout,
		},
	}
}
