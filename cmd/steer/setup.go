package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/samcharles93/steer/internal/flow"
	"github.com/samcharles93/steer/internal/inference"
	"github.com/samcharles93/steer/internal/logger"
	"github.com/samcharles93/steer/internal/mods"
	"github.com/samcharles93/steer/internal/tokenizer"
	"github.com/samcharles93/steer/internal/toy"
	"github.com/samcharles93/steer/internal/trace"
)

type stack struct {
	engine *inference.Engine
	flow   *flow.Engine
	close  func() error
}

// buildStack wires the toy backend, the trace store and, when configured,
// the flow mod into an engine.
func buildStack(log logger.Logger) (*stack, error) {
	tok := tokenizer.NewByteLevel()
	var closers []func() error

	var opts []trace.Option
	if traceFile != "" {
		f, err := os.OpenFile(traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		closers = append(closers, f.Close)
		opts = append(opts, trace.WithSink(trace.NewJSONLines(f)))
	}
	reg := mods.NewRegistry(mods.Options{
		ModTimeout: modTimeout,
		Logger:     log,
		Traces:     trace.NewStore(opts...),
	})

	s := &stack{}
	if flowPath != "" {
		fe, err := loadFlow(flowPath)
		if err != nil {
			return nil, errors.Join(err, closeAll(closers))
		}
		reg.Register(fe)
		s.flow = fe
		log.Info("flow loaded", "path", flowPath, "mod", fe.Name())
	}

	backend, err := toy.NewBackend(tok, toy.Options{Hidden: hidden, Seed: seed, Script: script})
	if err != nil {
		return nil, errors.Join(err, closeAll(closers))
	}
	closers = append([]func() error{backend.Shutdown}, closers...)

	s.engine = &inference.Engine{
		Backend:   backend,
		Tokenizer: tok,
		Mods:      reg,
		Logger:    log,
	}
	s.close = func() error { return closeAll(closers) }
	return s, nil
}

func loadFlow(path string) (*flow.Engine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	def, err := flow.LoadDefinition(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	fe, err := flow.New(def)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fe, nil
}

func closeAll(closers []func() error) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
