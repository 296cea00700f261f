package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/correlate"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/observability"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/reporting"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/store"
)

// storeProvider abstracts run store creation so tests can inject a mock
// instead of a live database connection.
type storeProvider interface {
	// Create initializes a RunStore and returns a cleanup function to
	// release its resources.
	Create(ctx context.Context) (schemas.RunStore, func(), error)
}

// defaultStoreProvider connects to the configured PostgreSQL database.
type defaultStoreProvider struct{}

func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context) (schemas.RunStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (CRAWLER_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := store.NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize run store: %w", err)
	}
	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed (via report cleanup).")
	}
	return s, cleanup, nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var runID string
	var pcapPath string
	var mobsfPath string
	var outputPath string
	var format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Correlates a completed run with captured traffic and scan data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			runStore, cleanup, err := provider.Create(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := runStore.GetRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}
			steps, err := runStore.GetSteps(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to load steps: %w", err)
			}

			correlator := correlate.NewCorrelator(correlate.NewHARParser(), correlate.NewMobSFParser(), logger)
			report := correlator.Correlate(*run, steps, pcapPath, mobsfPath)

			reporter, err := reporting.New(format, outputPath)
			if err != nil {
				return err
			}
			defer reporter.Close()

			if err := reporter.Write(&report); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			logger.Info("Report generated",
				zap.String("run_id", runID),
				zap.String("format", format),
				zap.Int("steps", report.Summary.StepCount),
			)
			return nil
		},
	}

	reportCmd.Flags().StringVar(&runID, "run-id", "", "Run id to report on (required)")
	reportCmd.Flags().StringVar(&pcapPath, "pcap", "", "Path to the HAR traffic capture for this run")
	reportCmd.Flags().StringVar(&mobsfPath, "mobsf", "", "Path to the MobSF scorecard JSON for this run")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. Defaults to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "json", "Report format ('json' or 'text')")
	_ = reportCmd.MarkFlagRequired("run-id")

	return reportCmd
}
