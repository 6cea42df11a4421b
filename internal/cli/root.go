// Package cli provides the command-line interface for hearth.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/hearth-go/internal/config"
	"github.com/raphaelgruber/hearth-go/internal/db"
	"github.com/raphaelgruber/hearth-go/internal/hub"
	"github.com/raphaelgruber/hearth-go/internal/media"
	"github.com/raphaelgruber/hearth-go/internal/metrics"
	"github.com/raphaelgruber/hearth-go/internal/oracle"
	"github.com/raphaelgruber/hearth-go/internal/pipeline"
	"github.com/raphaelgruber/hearth-go/internal/search"
	"github.com/raphaelgruber/hearth-go/internal/service"
	"github.com/raphaelgruber/hearth-go/internal/speech"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and clients
	cfg       config.Config
	logger    *slog.Logger
	logClose  func() error
	dbClient  *db.Client
	hubClient *hub.Client
	collector *metrics.Collector

	// Lazy-initialized conversation pipeline
	model      *oracle.Oracle
	dispatcher *pipeline.Dispatcher
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hearth",
	Short: "Voice-driven home automation assistant",
	Long: `Hearth turns spoken requests into Home Assistant actions.

Utterances are classified, resolved against a cached device catalog,
executed against the hub, and evaluated until the request is satisfied
or a clarifying question goes back to the user.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip connections for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, logClose = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		ctx := context.Background()
		var err error
		dbClient, err = db.NewClient(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("connect to catalog cache: %w", err)
		}
		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		hubClient = hub.New(cfg, logger)
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close catalog cache: %v\n", err)
			}
		}
		if logClose != nil {
			_ = logClose()
		}
	},
}

// getDispatcher builds the conversation pipeline, initializing the
// model on first use. Commands that never talk to the model skip the
// provider handshake entirely.
func getDispatcher(speak bool) (*pipeline.Dispatcher, error) {
	if dispatcher != nil {
		return dispatcher, nil
	}

	var err error
	model, err = oracle.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	model.OnUsage(func(elapsed time.Duration, in, out int64) {
		collector.RecordOracleUsage(metrics.OpOracle, elapsed, in, out)
	})

	invoker := &service.TimedInvoker{Inner: service.NewInvoker(hubClient), Collector: collector}
	store := &service.TimedStore{Inner: dbClient, Collector: collector}
	sink := service.NewAutomationPublisher(hubClient, cfg.AutomationLogGrace)
	searcher := search.New(cfg, logger)
	player := media.NewPlayer(hubClient, cfg, logger)

	var notifier pipeline.Notifier
	if speak {
		notifier = speech.NewNotifier(hubClient, cfg, logger)
	} else {
		muted := cfg
		muted.TTSSpeaker = ""
		notifier = speech.NewNotifier(hubClient, muted, logger)
	}

	deps := pipeline.Dependencies{
		Classifier:   pipeline.NewClassifier(model, store, logger),
		Resolver:     pipeline.NewResolver(model, store, logger),
		Executor:     pipeline.NewExecutor(invoker, sink, searcher, player, model, cfg.BulkReadThreshold, logger),
		Evaluator:    pipeline.NewEvaluator(model, logger),
		Notifier:     notifier,
		Logger:       logger,
		MaxTurnLoops: cfg.MaxTurnLoops,
	}
	dispatcher = pipeline.NewDispatcher(service.InstrumentStages(deps, collector))
	return dispatcher, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(usageCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
