package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/addityasingh/glaceon/pkg/admin"
	"github.com/addityasingh/glaceon/pkg/config"
	"github.com/addityasingh/glaceon/pkg/credentials"
	"github.com/addityasingh/glaceon/pkg/gateway"
	"github.com/addityasingh/glaceon/pkg/monitoring"
	"github.com/addityasingh/glaceon/pkg/network"
	"github.com/addityasingh/glaceon/pkg/notify"
	"github.com/addityasingh/glaceon/pkg/policy"
	"github.com/addityasingh/glaceon/pkg/service"
	"github.com/addityasingh/glaceon/pkg/watcher"
	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// stores are the persistent collaborators shared by every command.
type stores struct {
	db          *bolt.DB
	policies    *policy.BoltStore
	credentials *credentials.BoltStore
}

// openStores opens the state database and its two buckets.
func openStores(cfg *config.Config) (*stores, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.Path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(cfg.State.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("opening state db: %s is locked by a running daemon", cfg.State.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	policies, err := policy.NewBoltStore(db, policy.Defaults(home))
	if err != nil {
		db.Close()
		return nil, err
	}
	creds, err := credentials.NewBoltStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &stores{db: db, policies: policies, credentials: creds}, nil
}

func (s *stores) Close() error {
	return s.db.Close()
}

// newAPIClient builds the archive HTTP client.
func newAPIClient(cfg *config.Config, logger *logrus.Logger) (*gateway.Client, error) {
	return gateway.NewClient(cfg.API.BaseURL,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		gateway.WithLogger(logger),
	)
}

// newGateway builds the upload backend named by gateway.backend.
func newGateway(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (gateway.Gateway, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Gateway.Backend {
	case gateway.BackendHTTP:
		client, err := newAPIClient(cfg, logger)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil

	case gateway.BackendS3:
		client, err := gateway.NewS3Client(ctx, cfg.S3())
		if err != nil {
			return nil, noop, err
		}
		gw, err := gateway.NewS3Gateway(client, cfg.Gateway.S3.Bucket, cfg.Gateway.S3.Prefix)
		return gw, noop, err

	case gateway.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("creating gcs client: %w", err)
		}
		gw, err := gateway.NewGCSGateway(client, cfg.Gateway.GCS.Bucket, cfg.Gateway.GCS.Prefix)
		if err != nil {
			client.Close()
			return nil, noop, err
		}
		return gw, client.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown gateway backend %q", cfg.Gateway.Backend)
}

// Application represents the daemon with all components.
type Application struct {
	cfg    *config.Config
	logger *logrus.Logger

	stores       *stores
	closeGateway func() error
	slot         *notify.Slot
	metrics      *monitoring.Metrics
	service      *service.Service
	monitor      *monitoring.Monitor
	adminServer  *admin.Server

	cancel context.CancelFunc
}

// NewApplication creates a new application instance with all components.
func NewApplication(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Application, error) {
	st, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	app := &Application{
		cfg:    cfg,
		logger: logger,
		stores: st,
		slot:   notify.NewSlot(),
	}

	if err := app.initializeComponents(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("initializing components: %w", err)
	}
	return app, nil
}

// initializeComponents sets up all application components.
func (app *Application) initializeComponents(ctx context.Context) error {
	gw, closeGateway, err := newGateway(ctx, app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	app.closeGateway = closeGateway

	schedule, err := watcher.ParseSchedule(app.cfg.Monitor.ScanSchedule)
	if err != nil {
		return fmt.Errorf("parsing scan schedule: %w", err)
	}

	deviceID, err := os.Hostname()
	if err != nil || deviceID == "" {
		deviceID = uuid.NewString()
	}
	app.metrics = monitoring.NewMetrics(deviceID, app.logger)

	app.service, err = service.New(service.Config{
		WatchMode:     app.cfg.Monitor.Mode,
		ScanSchedule:  schedule,
		SettleDelay:   app.cfg.Monitor.SettleDelay,
		MaxInFlight:   app.cfg.Monitor.MaxInFlight,
		AwaitInFlight: app.cfg.Monitor.AwaitInFlight,
		StopTimeout:   app.cfg.Monitor.StopTimeout,
		Logger:        app.logger,
		Metrics:       app.metrics,
	}, service.Deps{
		Policies:    app.stores.policies,
		Credentials: credentials.Chain{credentials.Env{}, app.stores.credentials},
		Network:     network.FromMode(app.cfg.Network.Mode),
		Notifier:    notify.Multi{app.slot, notify.NewLogNotifier(app.logger)},
		Gateway:     gw,
	})
	if err != nil {
		closeGateway()
		return fmt.Errorf("creating service: %w", err)
	}

	app.monitor = monitoring.NewMonitor(app.metrics, app.service, app.slot, app.logger)
	app.adminServer = admin.NewServer(app.service, app.cfg.Admin.Port, app.logger)
	return nil
}

// Start starts all application components. Monitoring begins only when
// auto-upload is enabled; otherwise it waits for an admin START.
func (app *Application) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	if err := app.adminServer.Start(); err != nil {
		return fmt.Errorf("starting admin server: %w", err)
	}

	if app.cfg.Status.Port > 0 {
		if err := app.monitor.StartHTTPServer(runCtx, app.cfg.Status.Port); err != nil {
			return err
		}
	}
	app.monitor.LogMetrics(runCtx, 5*time.Minute)

	pol, err := app.stores.policies.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}
	if !pol.Enabled {
		app.logger.Info("⏸️ Auto-upload is disabled; enable it with 'glaceon settings set enabled true'")
		return nil
	}

	if err := app.service.Start(ctx); err != nil {
		return fmt.Errorf("starting auto-upload: %w", err)
	}
	return nil
}

// Shutdown stops every component in reverse order.
func (app *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if app.service.State() == service.StateRunning {
		if err := app.service.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := app.adminServer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing admin server: %w", err))
	}
	if app.cancel != nil {
		app.cancel()
	}
	if err := app.closeGateway(); err != nil {
		errs = append(errs, fmt.Errorf("closing gateway: %w", err))
	}
	if err := app.stores.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing state db: %w", err))
	}

	app.logger.Info("👋 Glaceon stopped")
	return errors.Join(errs...)
}
