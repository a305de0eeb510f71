package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"redfishd/internal/config"
	"redfishd/internal/listener"
	"redfishd/internal/logging"
)

var (
	configPath string
	logLevel   string
	checkEvery time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "rf-listener",
		Short:        "Subscribe to a Redfish event service and log deliveries",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "./rf-listener.json", "path to listener config json")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().DurationVar(&checkEvery, "check-interval", time.Minute, "how often to confirm the subscription still exists")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, closer, err := logging.New(config.LogConfig{Level: logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}
	defer closer.Close()
	defer log.Sync()

	l, err := listener.New(configPath, log)
	if err != nil {
		return err
	}

	r := mux.NewRouter()
	r.PathPrefix("/").Handler(l).Methods("POST")
	srv := &http.Server{
		Addr:              l.Cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("rf-listener receiving", zap.String("addr", l.Cfg.ListenAddr), zap.String("callback", l.Cfg.CallbackURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := l.SubscribeIfNeeded(ctx); err != nil {
		_ = srv.Close()
		return err
	}

	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			if err := l.Resubscribe(ctx); err != nil {
				log.Warn("subscription check failed", zap.Error(err))
			}
		case err := <-errCh:
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if l.Cfg.UnsubscribeOnExit {
		if err := l.Unsubscribe(shutdownCtx); err != nil {
			log.Warn("unsubscribe failed", zap.Error(err))
		}
	}
	_ = srv.Shutdown(shutdownCtx)
	log.Info("rf-listener exited", zap.Int("deliveries", l.Received()))
	return nil
}
