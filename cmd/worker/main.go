package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"taskboard/internal/pkg/logger"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/database"
	"taskboard/internal/workers"
)

func main() {
	var configPath string
	var once bool

	root := &cobra.Command{
		Use:          "worker",
		Short:        "Run taskboard background jobs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging)

			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sweeper := workers.NewSweeper(db)
			if once {
				n, err := sweeper.Rebalance(ctx)
				if err != nil {
					return err
				}
				log.Info().Int("renumbered", n).Msg("rebalance sweep finished")
				return nil
			}

			scheduler, err := sweeper.Schedule(ctx, cfg.Worker.RebalanceInterval)
			if err != nil {
				return err
			}
			log.Info().Dur("interval", cfg.Worker.RebalanceInterval).Msg("worker started")
			scheduler.StartAsync()
			<-ctx.Done()
			scheduler.Stop()
			log.Info().Msg("worker stopped")
			return nil
		},
	}
	root.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to config file")
	root.Flags().BoolVar(&once, "once", false, "Run a single sweep and exit")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
