package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"redfishd/internal/config"
	"redfishd/internal/events"
	"redfishd/internal/logging"
	"redfishd/internal/provider"
	"redfishd/internal/redfish"
	"redfishd/internal/registry"
	"redfishd/internal/server"
	"redfishd/internal/shared"
)

const version = "0.3.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "rf-server",
		Short: "Redfish management service",
		Long: `rf-server serves a Redfish resource tree for one chassis and one
computer system, dispatches actions to the hardware provider and delivers
events to subscribed listeners.`,
		Version:      version,
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to rf-server.yaml")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openProvider(cfg.Provider, log)
	if err != nil {
		return err
	}
	if c, ok := p.(io.Closer); ok {
		defer c.Close()
	}

	reg, err := registry.New(cfg.Registry.Dir)
	if err != nil {
		return fmt.Errorf("load registries: %w", err)
	}

	store, err := openStore(cfg.EventService, log)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := prometheus.NewRegistry()
	pubOpts := []events.Option{events.WithLogger(log.Named("events"))}
	if cfg.Metrics.Enabled {
		metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		pubOpts = append(pubOpts, events.WithMetrics(metrics))
	}
	if path := cfg.EventService.SigningKeyPath; path != "" {
		priv, err := shared.LoadOrCreateKey(path)
		if err != nil {
			return fmt.Errorf("signing key %s: %w", path, err)
		}
		log.Info("signing event deliveries",
			zap.String("key_path", path),
			zap.String("public_key", shared.EncodePubKey(priv)))
		pubOpts = append(pubOpts, events.WithSigner(shared.EventSigner(priv)))
	}
	publisher, err := events.NewPublisher(store, cfg.Publisher(), pubOpts...)
	if err != nil {
		return err
	}

	tree, err := redfish.Build(ctx, p, redfish.Options{
		ChassisID: cfg.Chassis.ID,
		Registry:  reg,
		Store:     store,
		Publisher: publisher,
		Logger:    log.Named("redfish"),
	})
	if err != nil {
		return fmt.Errorf("build resource tree: %w", err)
	}

	ropts := server.RouterOptions{AllowedOrigins: cfg.AllowedOrigins}
	if cfg.Metrics.Enabled {
		ropts.MetricsPath = cfg.Metrics.Path
		ropts.Registerer = metrics
		ropts.Gatherer = metrics
	}
	handler, err := server.NewRouter(&server.API{
		Tree:      tree,
		Registry:  reg,
		Store:     store,
		Publisher: publisher,
		Logger:    log.Named("http"),
	}, ropts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("rf-server listening",
			zap.String("addr", cfg.ListenAddr),
			zap.Bool("tls", cfg.TLSEnabled()),
			zap.String("provider", cfg.Provider.Kind),
			zap.String("store", cfg.EventService.Store))
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}
	if err := publisher.Close(shutdownCtx); err != nil {
		log.Warn("pending event deliveries abandoned", zap.Error(err))
	}
	log.Info("rf-server exited")
	return nil
}

func openProvider(cfg config.ProviderConfig, log *zap.Logger) (provider.Provider, error) {
	switch cfg.Kind {
	case "dbus":
		p, err := provider.NewDBusProvider(log.Named("dbus"))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		var f *provider.Fixture
		if cfg.FixturePath != "" {
			var err error
			if f, err = provider.LoadFixture(cfg.FixturePath); err != nil {
				return nil, err
			}
		}
		return provider.NewStaticProvider(f), nil
	}
}

func openStore(cfg config.EventServiceConfig, log *zap.Logger) (events.Store, error) {
	switch cfg.Store {
	case "sqlite":
		db, err := events.OpenDB(cfg.DatabasePath, log.Named("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("open subscription db %s: %w", cfg.DatabasePath, err)
		}
		return events.NewSQLiteStore(db), nil
	default:
		s, err := events.OpenFileStore(cfg.SubscriptionsPath)
		if err != nil {
			return nil, fmt.Errorf("open subscription file %s: %w", cfg.SubscriptionsPath, err)
		}
		return s, nil
	}
}
