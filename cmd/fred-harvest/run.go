package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/fred-series-harvester/internal/config"
	"github.com/Sternrassler/fred-series-harvester/pkg/client"
	"github.com/Sternrassler/fred-series-harvester/pkg/harvest"
	"github.com/Sternrassler/fred-series-harvester/pkg/logging"
	"github.com/Sternrassler/fred-series-harvester/pkg/metrics"
	"github.com/Sternrassler/fred-series-harvester/pkg/query"
	"github.com/Sternrassler/fred-series-harvester/pkg/ratelimit"
	"github.com/Sternrassler/fred-series-harvester/pkg/sink"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runOptions are the run flags that override the configuration.
type runOptions struct {
	apiKey      string
	baseURL     string
	sinkKind    string
	sinkPath    string
	metricsAddr string
	paying      bool
	payPerEvent bool
}

// newRunCmd creates the run subcommand.
func newRunCmd(root *rootOptions) *cobra.Command {
	qf := &queryFlags{}
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one harvest and stream the results to the configured sink",
		Long: "Run plans the FRED search pages for the query, fetches them under the shared rate limit, " +
			"deduplicates, filters and sorts the series and pushes at most maxItems results to the sink.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root, opts)
			if err != nil {
				return err
			}
			logging.Setup(cfg.LoggingConfig())

			q, err := qf.build(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runHarvest(ctx, cmd, cfg, q)
		},
	}

	qf.register(cmd)

	flags := cmd.Flags()
	flags.StringVar(&opts.apiKey, "api-key", "", "FRED API key (default $FRED_API_KEY)")
	flags.StringVar(&opts.baseURL, "base-url", "", "FRED API base URL")
	flags.StringVar(&opts.sinkKind, "sink", "", "Sink kind: jsonl, redis, kafka, clickhouse")
	flags.StringVarP(&opts.sinkPath, "output", "o", "", "JSONL output file (default stdout)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address during the run")
	flags.BoolVar(&opts.paying, "paying", false, "Apply the paid quota tier")
	flags.BoolVar(&opts.payPerEvent, "pay-per-event", false, "Tag pushed items as billable result-item events")

	return cmd
}

// loadConfig reads the configuration and applies the explicitly set flags
// before validating it.
func loadConfig(cmd *cobra.Command, root *rootOptions, opts *runOptions) (*config.Config, error) {
	cfg, err := config.Read(root.configPath, root.envFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("api-key") {
		cfg.FRED.APIKey = opts.apiKey
	}
	if changed("base-url") {
		cfg.FRED.BaseURL = opts.baseURL
	}
	if changed("sink") {
		cfg.Sink.Kind = opts.sinkKind
	}
	if changed("output") {
		cfg.Sink.Path = opts.sinkPath
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if changed("paying") {
		cfg.Harvest.IsPaying = opts.paying
	}
	if changed("pay-per-event") {
		cfg.Harvest.PayPerEvent = opts.payPerEvent
	}
	if root.logLevel != "" {
		cfg.Log.Level = root.logLevel
	}
	if root.pretty {
		cfg.Log.Pretty = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runHarvest wires limiter, client, sink and harvester for one run.
func runHarvest(ctx context.Context, cmd *cobra.Command, cfg *config.Config, q query.Query) error {
	runID := uuid.NewString()
	logger := logging.NewRunLogger("cli", runID)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	limiter, err := ratelimit.NewLimiter(cfg.RateLimitConfig(), logging.NewLogger("ratelimit"))
	if err != nil {
		return err
	}

	fred, err := client.New(cfg.ClientConfig(limiter))
	if err != nil {
		return fmt.Errorf("create FRED client: %w", err)
	}

	out, err := openSink(ctx, cmd, cfg, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close sink")
		}
	}()

	_, err = harvest.New(fred, out, cfg.HarvestOptions(runID)).Run(ctx, q, cfg.Entitlement())
	return err
}

// openSink opens the configured sink. JSONL without a path writes to the
// command's stdout.
func openSink(ctx context.Context, cmd *cobra.Command, cfg *config.Config, runID string) (sink.Sink, error) {
	if cfg.Sink.Kind == sink.KindJSONL && (cfg.Sink.Path == "" || cfg.Sink.Path == "-") {
		return sink.NewJSONLSink(cmd.OutOrStdout()), nil
	}
	out, err := sink.Open(ctx, cfg.SinkConfig(runID))
	if err != nil {
		return nil, fmt.Errorf("open %s sink: %w", cfg.Sink.Kind, err)
	}
	return out, nil
}
