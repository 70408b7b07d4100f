package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hprofstream/hprofstream/internal/hprof"
	"github.com/hprofstream/hprofstream/internal/history"
	"github.com/hprofstream/hprofstream/internal/render"
	"github.com/hprofstream/hprofstream/internal/source"
	"github.com/hprofstream/hprofstream/pkg/config"
	"github.com/hprofstream/hprofstream/pkg/filter"
)

var (
	inputPath     string
	outputFormat  string
	topN          int
	listStrings   bool
	analyzeArrays bool
	analyzeStrs   bool
	classFilter   string
	chunkSize     int
	channelDepth  int
	debugTiming   bool
	traceSpans    bool
	historyDSN    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Stream a heap dump through the analysis pipeline",
	Long: `analyze streams a HPROF heap dump (local path or cos://bucket/key)
through the Byte Reader / Framer+Parser / Aggregator pipeline and
prints the top allocated classes, largest single instances, and
array/string statistics.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Heap dump path: local file or cos://bucket/key (required)")
	analyzeCmd.MarkFlagRequired("input")

	analyzeCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table or json")
	analyzeCmd.Flags().IntVarP(&topN, "top", "n", 20, "Number of top classes to report")
	analyzeCmd.Flags().BoolVar(&listStrings, "list-strings", false, "Include the full string table in the result")
	analyzeCmd.Flags().BoolVar(&analyzeArrays, "analyze-arrays", true, "Compute array statistics")
	analyzeCmd.Flags().BoolVar(&analyzeStrs, "analyze-strings", true, "Compute string statistics")
	analyzeCmd.Flags().StringVar(&classFilter, "class-filter", "", "Exclude a category from top-N rankings: jdk, framework, primitive, application")
	analyzeCmd.Flags().IntVar(&chunkSize, "chunk-size", 256*1024, "Byte Reader read size, in bytes")
	analyzeCmd.Flags().IntVar(&channelDepth, "channel-depth", 4, "Bounded channel capacity between pipeline stages")
	analyzeCmd.Flags().BoolVar(&debugTiming, "debug", false, "Record per-stage timings in the result")
	analyzeCmd.Flags().BoolVar(&traceSpans, "trace", false, "Emit OpenTelemetry spans around each pipeline stage")
	analyzeCmd.Flags().StringVar(&historyDSN, "history", "", "Record this run in the history store (sqlite path, postgres://, or mysql:// DSN)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyAnalyzeFlags(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Opening input: %s", cfg.Analysis.InputPath)
	r, err := source.Open(ctx, cfg.Analysis.InputPath, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer r.Close()

	started := time.Now()
	pipeline := hprof.NewPipeline(cfg.Analysis)
	result, err := pipeline.Run(ctx, r)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", cfg.Analysis.InputPath, err)
	}

	result.ClassCategories = categoriesFor(result)

	format := render.FormatTable
	if outputFormat == "json" {
		format = render.FormatJSON
	}
	if err := render.Write(os.Stdout, result, format); err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}

	dsn := cfg.Analysis.HistoryDSN
	if dsn == "" {
		dsn = cfg.History.DSN
	}
	if historyDSN != "" {
		dsn = historyDSN
	}
	if dsn != "" {
		if err := saveRunHistory(ctx, dsn, cfg, started, result); err != nil {
			log.Warn("Failed to save run history: %v", err)
		}
	}

	return nil
}

// applyAnalyzeFlags overrides cfg.Analysis with any flag explicitly set on
// the command line, leaving config-file/default values in place otherwise.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	cfg.Analysis.InputPath = inputPath

	flags := cmd.Flags()
	if flags.Changed("top") {
		cfg.Analysis.TopN = topN
	}
	if flags.Changed("list-strings") {
		cfg.Analysis.ListStrings = listStrings
	}
	if flags.Changed("analyze-arrays") {
		cfg.Analysis.AnalyzeArrays = analyzeArrays
	}
	if flags.Changed("analyze-strings") {
		cfg.Analysis.AnalyzeStrings = analyzeStrs
	}
	if flags.Changed("class-filter") {
		cfg.Analysis.ClassFilter = classFilter
	}
	if flags.Changed("chunk-size") {
		cfg.Analysis.ChunkSize = chunkSize
	}
	if flags.Changed("channel-depth") {
		cfg.Analysis.ChannelDepth = channelDepth
	}
	if flags.Changed("debug") {
		cfg.Analysis.Debug = debugTiming
	}
	if flags.Changed("trace") {
		cfg.Analysis.Trace = traceSpans
	}
	if outputFormat == "json" {
		cfg.Analysis.EmitJSON = true
	}
}

// categoriesFor classifies every class name surfaced in the top-N
// rankings so render.Write can annotate each row with its category.
func categoriesFor(result hprof.Result) map[string]string {
	names := make([]string, 0, len(result.TopAllocatedClasses)+len(result.TopLargestInstances))
	for _, cs := range result.TopAllocatedClasses {
		names = append(names, cs.ClassName)
	}
	for _, cs := range result.TopLargestInstances {
		names = append(names, cs.ClassName)
	}
	return filter.CategorizeAll(names)
}

func saveRunHistory(ctx context.Context, dsn string, cfg *config.Config, started time.Time, result hprof.Result) error {
	maxConns := cfg.History.MaxOpenConns
	store, err := history.Open(ctx, dsn, maxConns)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	id, err := store.SaveRun(ctx, cfg.Analysis.InputPath, started, result)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	GetLogger().Info("Run recorded in history store (id=%d)", id)
	return nil
}
