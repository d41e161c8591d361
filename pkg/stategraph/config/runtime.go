package config

// Runtime holds executor settings extracted from a config file.
//
// Expected layout (YAML):
//
//	max_iterations: 500
//	metrics: true
//	tracing: false
//	checkpoint:
//	  driver: sqlite      # "sqlite" or "memory"
//	  path: ./threads.db
//	  fatal_failures: false
//	interrupt_before: [human_review]
//	interrupt_after: []
type Runtime struct {
	// MaxIterations caps node executions per run. 0 means library default.
	MaxIterations int

	// Metrics enables OpenTelemetry metrics.
	Metrics bool

	// Tracing enables OpenTelemetry tracing.
	Tracing bool

	// CheckpointDriver selects the checkpoint backend ("memory", "sqlite", "").
	// Empty means checkpointing disabled.
	CheckpointDriver string

	// CheckpointPath is the SQLite database path when driver is "sqlite".
	CheckpointPath string

	// CheckpointFatal makes checkpoint failures abort the run.
	CheckpointFatal bool

	// InterruptBefore lists nodes to pause before executing.
	InterruptBefore []string

	// InterruptAfter lists nodes to pause after executing.
	InterruptAfter []string
}

// RuntimeFromConfig extracts runtime settings from a loaded Config.
// Missing keys keep zero values, which the executor treats as defaults.
func RuntimeFromConfig(c Config) Runtime {
	cp := c.Sub("checkpoint")
	return Runtime{
		MaxIterations:    c.Int("max_iterations", 0),
		Metrics:          c.Bool("metrics", false),
		Tracing:          c.Bool("tracing", false),
		CheckpointDriver: cp.String("driver", ""),
		CheckpointPath:   cp.String("path", ""),
		CheckpointFatal:  cp.Bool("fatal_failures", false),
		InterruptBefore:  c.StringSlice("interrupt_before", nil),
		InterruptAfter:   c.StringSlice("interrupt_after", nil),
	}
}

// RuntimeFromFile loads a config file and extracts runtime settings.
func RuntimeFromFile(path string) (Runtime, error) {
	c, err := FromFile(path)
	if err != nil {
		return Runtime{}, err
	}
	return RuntimeFromConfig(c), nil
}
