package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"AlphaSentinel/internal/notifier"
	"AlphaSentinel/internal/scheduler"
	"AlphaSentinel/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		mock    bool
	)
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Investment outlook engine for exchange-listed companies",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultCfg, "path to YAML config")
	root.PersistentFlags().BoolVar(&mock, "mock", false, "use generated market data instead of Yahoo Finance")

	root.AddCommand(newServeCmd(&cfgPath, &mock), newAnalyzeCmd(&cfgPath, &mock))
	return root
}

func newServeCmd(cfgPath *string, mock *bool) *cobra.Command {
	var refreshOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(*cfgPath, *mock)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var sender scheduler.Sender
			if a.telegram != nil {
				sender = a.telegram
			}
			sched := scheduler.NewScheduler(ctx, a.engine, a.cache, sender, a.cfg.Schedule.Watchlist, a.log)
			if err := sched.RegisterAll(a.cfg.Cache.PruneCron, a.cfg.Schedule.RefreshCron); err != nil {
				return fmt.Errorf("register cron tasks: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			if a.telegram != nil {
				cmds := &notifier.Commands{Analyzer: a.engine}
				go a.telegram.StartPolling(ctx, cmds.Handle)
				a.log.Info().Msg("telegram polling started")
			}

			if refreshOnStart || os.Getenv("RUN_ON_START") == "true" {
				a.log.Info().Msg("refresh on start enabled, refreshing watchlist now")
				go sched.RunRefreshNow()
			}

			srv := server.New(server.Config{
				Addr:     a.cfg.Server.Addr,
				Analyzer: a.engine,
				History:  a.history,
				Log:      a.log,
			})
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			a.log.Info().Msg("AlphaSentinel is running. Press Ctrl+C to stop.")
			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
				a.log.Info().Msg("shutdown signal received, stopping")
			}

			shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn().Err(err).Msg("http shutdown")
			}
			a.log.Info().Msg("AlphaSentinel stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&refreshOnStart, "refresh-on-start", false, "refresh the watchlist immediately")
	return cmd
}

func newAnalyzeCmd(cfgPath *string, mock *bool) *cobra.Command {
	var fresh bool
	cmd := &cobra.Command{
		Use:   "analyze <company name>",
		Short: "Analyze one company and print the report as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*cfgPath, *mock)
			if err != nil {
				return err
			}
			defer a.Close()

			company := strings.Join(args, " ")
			analyze := a.engine.Analyze
			if fresh {
				analyze = a.engine.Refresh
			}
			res := analyze(cmd.Context(), company)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if !res.OK() {
				_ = enc.Encode(res.Err)
				return fmt.Errorf("analysis failed: %s", res.Err.Kind)
			}
			return enc.Encode(res.Report)
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore cached reports")
	return cmd
}
