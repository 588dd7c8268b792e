// Package main provides the AssetFlow reconciler, a scheduled sweep that
// backfills post-inspections for completed proposals whose scheduling side
// effect was lost.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/assetflow-io/assetflow/pkg/cmd"
	"github.com/assetflow-io/assetflow/pkg/log"
	"github.com/assetflow-io/assetflow/pkg/services"
)

func main() {
	logger := log.WithModule("reconciler")

	command := &cli.Command{
		Name:                  "assetflow-reconciler",
		Usage:                 "Backfill post-inspections for completed proposals",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Entity store URL (file root or postgres:// URL)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for the reconcile sweep",
				Value:   "*/10 * * * *",
				Sources: cli.EnvVars("RECONCILE_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "inspection-offset",
				Usage:   "Delay between proposal completion and the scheduled post-inspection",
				Value:   services.DefaultInspectionOffset,
				Sources: cli.EnvVars("INSPECTION_OFFSET"),
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single sweep and exit",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing AssetFlow reconciler")

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			roleService := services.NewRoles(persist)
			inspectionService := services.NewInspections(persist, roleService, eventBus, logger,
				command.Duration("inspection-offset"))

			sweep := func() {
				created, err := inspectionService.Reconcile(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Reconcile sweep failed", "error", err)

					return
				}

				logger.InfoContext(ctx, "Reconcile sweep finished", "inspections_created", created)
			}

			if command.Bool("once") {
				sweep()

				return nil
			}

			scheduler := cron.New(cron.WithChain(
				cron.SkipIfStillRunning(cron.DefaultLogger),
				cron.Recover(cron.DefaultLogger),
			))

			if _, err := scheduler.AddFunc(command.String("schedule"), sweep); err != nil {
				return fmt.Errorf("invalid reconcile schedule: %w", err)
			}

			scheduler.Start()
			logger.InfoContext(ctx, "Reconciler started", "schedule", command.String("schedule"))

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			logger.InfoContext(ctx, "Shutting down reconciler")
			<-scheduler.Stop().Done()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
