package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/steer/internal/inference"
	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/trace"
)

func runCmd() *cli.Command {
	var (
		prompt      string
		maxTokens   int
		temperature float64
		topK        int
		topP        float64
		stopTokens  []int64
		requests    int
		concurrency int
		showTrace   bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text (defaults to the first argument, or stdin)",
			Destination: &prompt,
		},
		&cli.IntFlag{
			Name:        "max-tokens",
			Aliases:     []string{"n"},
			Usage:       "maximum generated tokens",
			Value:       128,
			Destination: &maxTokens,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature",
			Value:       0.7,
			Destination: &temperature,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "top-k sampling",
			Value:       50,
			Destination: &topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Usage:       "top-p sampling",
			Value:       0.9,
			Destination: &topP,
		},
		&cli.Int64SliceFlag{
			Name:        "stop-token",
			Usage:       "extra stop token id (repeatable)",
			Destination: &stopTokens,
		},
		&cli.IntFlag{
			Name:        "requests",
			Usage:       "number of identical requests to run",
			Value:       1,
			Destination: &requests,
		},
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "maximum requests in flight",
			Value:       4,
			Destination: &concurrency,
		},
		&cli.BoolFlag{
			Name:        "trace",
			Usage:       "print each request's steering trace as JSON",
			Destination: &showTrace,
		},
	}
	flags = append(flags, backendFlags()...)
	flags = append(flags, steeringFlags()...)

	return &cli.Command{
		Name:      "run",
		Usage:     "Generate with the toy backend, optionally steered by a flow",
		ArgsUsage: "[prompt]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			cfgFile := LoadConfig()
			applySteeringConfig(c, cfgFile)

			if prompt == "" {
				prompt = c.Args().First()
			}
			if prompt == "" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read prompt: %w", err)
				}
				prompt = strings.TrimRight(string(b), "\n")
			}
			if requests < 1 {
				return errors.New("--requests must be at least 1")
			}

			s, err := buildStack(log)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.close(); cerr != nil {
					log.Warn("shutdown failed", "error", cerr)
				}
			}()

			opts := inference.Options{StopTokens: toInts(stopTokens)}
			if c.IsSet("max-tokens") {
				opts.MaxTokens = &maxTokens
			}
			if c.IsSet("temperature") {
				opts.Temperature = &temperature
			}
			if c.IsSet("top-k") {
				opts.TopK = &topK
			}
			if c.IsSet("top-p") {
				opts.TopP = &topP
			}
			defaults := cfgFile.Defaults()
			if defaults.MaxTokens == nil {
				defaults.MaxTokens = &maxTokens
			}
			cfg := inference.ResolveConfig(opts, defaults)

			inputIDs, err := s.engine.Tokenizer.Encode(prompt)
			if err != nil {
				return fmt.Errorf("encode prompt: %w", err)
			}
			jobs := make([]inference.Job, requests)
			for i := range jobs {
				jobs[i] = inference.Job{RequestID: inference.NewRequestID(), InputIDs: inputIDs, Config: cfg}
			}

			runner := inference.Runner{Engine: s.engine, Concurrency: concurrency}
			results, runErr := runner.Run(ctx, jobs)
			for i, res := range results {
				if res == nil {
					continue
				}
				printResult(os.Stdout, res, requests > 1)
				if showTrace {
					if entries, ok := s.engine.Mods.Traces().Get(jobs[i].RequestID); ok {
						if err := trace.Export(os.Stdout, jobs[i].RequestID, entries); err != nil {
							return err
						}
					}
				}
			}
			return runErr
		},
	}
}

func printResult(w io.Writer, res *inference.Result, labelled bool) {
	m := res.Metadata
	if labelled {
		_, _ = fmt.Fprintf(w, "== %s\n", m.RequestID)
	}
	_, _ = fmt.Fprintln(w, res.Text)
	_, _ = fmt.Fprintf(w, "-- finish=%s steps=%d backtracks=%d forced=%d duration=%s\n",
		m.FinishReason, m.Steps, m.Backtracks, m.ForcedTokens, m.Duration)
	if m.Error != "" {
		_, _ = fmt.Fprintf(w, "-- error: %s\n", m.Error)
	}
	for _, call := range m.ToolCalls {
		_, _ = fmt.Fprintf(w, "-- tool call %s %s %v\n", call.ID, call.Name, call.Arguments)
	}
}

func toInts(in []int64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
