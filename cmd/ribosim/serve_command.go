package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ribosim/internal/daemon"
	"ribosim/internal/logging"
	"ribosim/internal/preflight"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lab bench daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx, skipPreflight)
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even if readiness checks fail")
	return cmd
}

func runServe(cmd *cobra.Command, ctx *commandContext, skipPreflight bool) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !skipPreflight {
		results := preflight.RunAll(signalCtx, cfg)
		if preflight.Failed(results) {
			var failed []string
			for _, r := range results {
				if !r.Passed {
					failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
				}
			}
			return fmt.Errorf("preflight failed:\n  %s", strings.Join(failed, "\n  "))
		}
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ribosim bridge listening on %s (ws://%s/ws)\n", d.Addr(), d.Addr())

	<-signalCtx.Done()
	logger.Info("ribosim shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	d.Stop()
	return nil
}
