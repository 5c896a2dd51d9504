package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openscience/digest/config"
	"github.com/openscience/digest/internal/server"
	"github.com/openscience/digest/internal/telemetry"
	"github.com/openscience/digest/internal/trigger"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the standing scheduler process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			var tele *telemetry.Telemetry
			if cfg.Telemetry.Enabled {
				tele = telemetry.New(nil)
			}
			runner, err := buildRunner(cfg, tele)
			if err != nil {
				return err
			}

			schedule, err := trigger.NewSchedule(cfg.Schedule)
			if err != nil {
				return err
			}
			trig := trigger.New(schedule, cfg.General.DataDir, nil)

			ops := server.New(runner, trig, nil)
			go func() {
				if err := ops.Start(cfg.Server.Address); err != nil {
					log.Printf("[SERVER] stopped: %v", err)
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			trig.Run(ctx, func(runCtx context.Context) error {
				_, err := runner.Run(runCtx, time.Now())
				return err
			})
			return ops.Shutdown()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches . and ./config)")
	return cmd
}

func onceCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run the pipeline immediately, bypassing the schedule check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			runner, err := buildRunner(cfg, nil)
			if err != nil {
				return err
			}
			schedule, err := trigger.NewSchedule(cfg.Schedule)
			if err != nil {
				return err
			}
			trig := trigger.New(schedule, cfg.General.DataDir, nil)

			now := time.Now()
			artifact, err := runner.Run(cmd.Context(), now)
			if err != nil {
				return err
			}
			// Consume today's scheduling window so a later serve process
			// does not publish a second digest for the same date.
			trig.MarkFired(now)
			cmd.Printf("published %s: %s\n", artifact.Kind, artifact.Location)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches . and ./config)")
	return cmd
}
