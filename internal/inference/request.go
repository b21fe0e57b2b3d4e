package inference

// Config is the resolved per-request generation configuration.
type Config struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
	MinP        float32
	// StopTokens end the request when committed unforced. EOS is always a
	// stop token.
	StopTokens []int
	// MaxIterations bounds forward passes plus commits; zero derives it from
	// the step budget.
	MaxIterations int
}

// Options are caller overrides; nil fields fall back to Defaults.
type Options struct {
	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	TopK          *int
	MinP          *float64
	StopTokens    []int
	MaxIterations *int
}

// Defaults come from the config file.
type Defaults struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	TopK        *int
}

// ResolveConfig layers opts over defaults over the built-in values.
func ResolveConfig(opts Options, defaults Defaults) Config {
	cfg := Config{
		MaxTokens:   2048,
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        50,
	}

	if defaults.MaxTokens != nil && *defaults.MaxTokens > 0 {
		cfg.MaxTokens = *defaults.MaxTokens
	}
	if defaults.Temperature != nil && *defaults.Temperature >= 0 {
		cfg.Temperature = float32(*defaults.Temperature)
	}
	if defaults.TopP != nil && *defaults.TopP > 0 && *defaults.TopP <= 1 {
		cfg.TopP = float32(*defaults.TopP)
	}
	if defaults.TopK != nil && *defaults.TopK > 0 {
		cfg.TopK = *defaults.TopK
	}

	if opts.MaxTokens != nil {
		cfg.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		cfg.Temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		cfg.TopP = float32(*opts.TopP)
	}
	if opts.TopK != nil {
		cfg.TopK = *opts.TopK
	}
	if opts.MinP != nil {
		cfg.MinP = float32(*opts.MinP)
	}
	if opts.MaxIterations != nil {
		cfg.MaxIterations = *opts.MaxIterations
	}
	cfg.StopTokens = append(cfg.StopTokens, opts.StopTokens...)

	return cfg
}

func iterationLimit(cfg Config, budget int) int {
	if cfg.MaxIterations > 0 {
		return cfg.MaxIterations
	}
	return 4*budget + 256
}
