package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/crawler"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/device"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/llmclient"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/observability"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/ocr"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/store"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/vision"
)

// newCrawlCmd creates and configures the `crawl` command.
func newCrawlCmd() *cobra.Command {
	crawlCmd := &cobra.Command{
		Use:   "crawl <app-package>",
		Short: "Starts an autonomous exploration run against the given app",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values override
			// the config file and environment.
			if err := viper.BindPFlag("crawler.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			if err := viper.BindPFlag("crawler.objective", cmd.Flags().Lookup("objective")); err != nil {
				return err
			}
			return viper.BindPFlag("llm.default_model", cmd.Flags().Lookup("model"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Flag overrides are bound in PreRunE; re-resolve before use.
			if v := viper.GetInt("crawler.max_steps"); v > 0 {
				cfg.Crawler.MaxSteps = v
			}
			if v := viper.GetString("crawler.objective"); v != "" {
				cfg.Crawler.Objective = v
			}
			if v := viper.GetString("llm.default_model"); v != "" {
				cfg.LLM.DefaultModel = v
			}

			appPackage := args[0]
			serials, err := cmd.Flags().GetStringSlice("device")
			if err != nil {
				return err
			}
			if len(serials) == 0 {
				serials = []string{""}
			}
			activity, _ := cmd.Flags().GetString("activity")

			runStore, cleanup, err := openRunStore(ctx, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			modelCfg, ok := cfg.LLM.Models[cfg.LLM.DefaultModel]
			if !ok {
				return fmt.Errorf("model '%s' not found in llm.models", cfg.LLM.DefaultModel)
			}

			llm, err := llmclient.NewClient(cfg.LLM, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize model client: %w", err)
			}

			grounder := ocr.NewClient(cfg.OCR, logger)
			detector := vision.NewDetector(cfg.Vision.HashDistanceThreshold)

			// One machine per device; runs share nothing but the store, which
			// serializes writes per run id.
			g, runCtx := errgroup.WithContext(ctx)
			runIDs := make([]string, 0, len(serials))
			for _, serial := range serials {
				runID := uuid.New().String()
				runIDs = append(runIDs, runID)

				run := &schemas.Run{
					ID:            runID,
					DeviceID:      serial,
					AppPackage:    appPackage,
					StartActivity: activity,
					StartTime:     time.Now().UTC(),
					Status:        schemas.RunStatusUninitialized,
					Provider:      string(modelCfg.Provider),
					Model:         modelCfg.Model,
					SessionPath:   filepath.Join(cfg.Crawler.SessionDir, runID),
				}

				machine, err := crawler.New(cfg.Crawler, run, crawler.Deps{
					Device:   device.NewADBDriver(cfg.Device, serial, logger),
					Grounder: grounder,
					LLM:      llm,
					Store:    runStore,
					Detector: detector,
				}, logger)
				if err != nil {
					return fmt.Errorf("failed to build machine for device %q: %w", serial, err)
				}

				logger.Info("Starting run",
					zap.String("run_id", runID),
					zap.String("device", serial),
					zap.String("app_package", appPackage),
				)
				g.Go(func() error {
					return machine.Run(runCtx)
				})
			}

			if err := g.Wait(); err != nil {
				return fmt.Errorf("exploration failed: %w", err)
			}

			for _, id := range runIDs {
				fmt.Printf("Run complete: %s\n", id)
			}
			fmt.Printf("To generate a report, run: ui-crawler report --run-id <id>\n")
			return nil
		},
	}

	crawlCmd.Flags().StringSliceP("device", "d", nil, "Device serial(s); repeat for concurrent multi-device runs. Defaults to the only connected device.")
	crawlCmd.Flags().StringP("activity", "a", "", "Activity to launch. Defaults to the package's launcher activity.")
	crawlCmd.Flags().Int("max-steps", 0, "Maximum steps per run. (Overrides config/env)")
	crawlCmd.Flags().String("objective", "", "Exploration objective handed to the model. (Overrides config/env)")
	crawlCmd.Flags().StringP("model", "m", "", "Configured model name to drive the run. (Overrides config/env)")

	return crawlCmd
}

// openRunStore returns the Postgres-backed store when a database URL is
// configured, otherwise an in-memory store for throwaway runs.
func openRunStore(ctx context.Context, logger *zap.Logger) (schemas.RunStore, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("No database configured (CRAWLER_DATABASE_URL), run data will not survive the process")
		return store.NewMemory(), func() {}, nil
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
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}
