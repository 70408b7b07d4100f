package hprof

// Config controls a single analysis run. The zero value is not valid;
// construct one with DefaultConfig and override fields, or let
// pkg/config.Load populate one from a file/environment/flags.
type Config struct {
	// InputPath is a local filesystem path or a "cos://bucket/key" URI.
	// Resolving it to a byte stream is internal/source's job, not the
	// core pipeline's: Pipeline.Run accepts an io.Reader.
	InputPath string `mapstructure:"input_path"`

	// TopN bounds how many rows appear in TopAllocatedClasses and
	// TopLargestInstances.
	TopN int `mapstructure:"top_n"`

	// ListStrings includes the full string table in the Result.
	ListStrings bool `mapstructure:"list_strings"`

	// EmitJSON is a hint to external renderers; the core ignores it.
	EmitJSON bool `mapstructure:"emit_json"`

	// Debug records per-stage timings in Result.StageTimings. It does not
	// enable any additional logging or diagnostic events.
	Debug bool `mapstructure:"debug"`

	// ChunkSize is the Byte Reader's read size, in bytes.
	ChunkSize int `mapstructure:"chunk_size"`

	// ChannelDepth is the bounded channel capacity between pipeline stages.
	ChannelDepth int `mapstructure:"channel_depth"`

	// AnalyzeStrings computes StringStats in an end-of-stream post-pass.
	AnalyzeStrings bool `mapstructure:"analyze_strings"`

	// AnalyzeArrays computes ArrayStats alongside the main class table.
	AnalyzeArrays bool `mapstructure:"analyze_arrays"`

	// ClassFilter, if non-empty, excludes a class category from the
	// top-N rankings without affecting totals. One of "jdk", "framework",
	// "primitive", "application", or "" (no filtering).
	ClassFilter string `mapstructure:"class_filter"`

	// Trace enables OpenTelemetry spans around each pipeline stage.
	Trace bool `mapstructure:"trace"`

	// HistoryDSN, if set, records this run in the history store.
	HistoryDSN string `mapstructure:"history_dsn"`
}

const (
	defaultTopN         = 20
	defaultChunkSize    = 256 * 1024
	defaultChannelDepth = 4
)

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		TopN:         defaultTopN,
		ChunkSize:    defaultChunkSize,
		ChannelDepth: defaultChannelDepth,
	}
}

// normalize fills in zero-valued fields with defaults, in place, and
// returns the receiver for chaining.
func (c *Config) normalize() *Config {
	if c.TopN <= 0 {
		c.TopN = defaultTopN
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChannelDepth <= 0 {
		c.ChannelDepth = defaultChannelDepth
	}
	return c
}
