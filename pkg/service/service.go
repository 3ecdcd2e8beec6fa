// Package service runs the auto-upload monitoring subsystem: it owns the
// known-file ledger, wires the watcher and the scanner to the decision
// pipeline and drives the start/stop lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/addityasingh/glaceon/pkg/credentials"
	"github.com/addityasingh/glaceon/pkg/gateway"
	"github.com/addityasingh/glaceon/pkg/network"
	"github.com/addityasingh/glaceon/pkg/notify"
	"github.com/addityasingh/glaceon/pkg/pipeline"
	"github.com/addityasingh/glaceon/pkg/policy"
	"github.com/addityasingh/glaceon/pkg/watcher"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxInFlight = 16
	DefaultStopTimeout = 30 * time.Second
)

// SourceFactory opens the change source for a run.
type SourceFactory func(mode string, folders []string, logger *logrus.Logger) (watcher.ChangeSource, error)

// Config holds subsystem tuning.
type Config struct {
	WatchMode     string
	ScanSchedule  cron.Schedule
	SettleDelay   time.Duration
	MaxInFlight   int
	AwaitInFlight bool
	StopTimeout   time.Duration
	Logger        *logrus.Logger
	Metrics       pipeline.MetricsCollector
	SourceFactory SourceFactory
}

// Deps are the collaborators borrowed by the subsystem.
type Deps struct {
	Policies    policy.Store
	Credentials credentials.Provider
	Network     network.Probe
	Notifier    notify.Notifier
	Gateway     gateway.Gateway
}

// Status is a point-in-time view of the subsystem.
type Status struct {
	State      State    `json:"state"`
	Folders    []string `json:"folders"`
	Subscribed []string `json:"subscribed"`
	LedgerSize int      `json:"ledger_size"`
	InFlight   int64    `json:"in_flight"`
}

// run holds the resources of one Starting..Stopped cycle.
type run struct {
	ctx      context.Context
	cancel   context.CancelFunc
	folders  []string
	ledger   *watcher.MemoryLedger
	pipeline *pipeline.Pipeline
	watcher  *watcher.FileWatcher
	group    *errgroup.Group
	pending  sync.WaitGroup
	scanDone chan struct{}
}

// Service is the auto-upload monitoring subsystem.
type Service struct {
	cfg       Config
	deps      Deps
	logger    *logrus.Logger
	lifecycle *lifecycle

	// opMu serializes Start, Stop and Restart.
	opMu sync.Mutex

	runMu    sync.RWMutex
	current  *run
	inFlight int64
}

// New validates the configuration and returns a stopped service.
func New(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Policies == nil:
		return nil, errors.New("policy store cannot be nil")
	case deps.Credentials == nil:
		return nil, errors.New("credential provider cannot be nil")
	case deps.Network == nil:
		return nil, errors.New("network probe cannot be nil")
	case deps.Notifier == nil:
		return nil, errors.New("notifier cannot be nil")
	case deps.Gateway == nil:
		return nil, errors.New("gateway cannot be nil")
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.WatchMode == "" {
		cfg.WatchMode = watcher.ModeAuto
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = pipeline.DefaultSettleDelay
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.SourceFactory == nil {
		cfg.SourceFactory = watcher.NewChangeSource
	}

	return &Service{
		cfg:       cfg,
		deps:      deps,
		logger:    cfg.Logger,
		lifecycle: newLifecycle(),
	}, nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return s.lifecycle.current()
}

// Status returns the state together with the running cycle's details.
func (s *Service) Status() Status {
	st := Status{
		State:    s.State(),
		InFlight: atomic.LoadInt64(&s.inFlight),
	}

	s.runMu.RLock()
	defer s.runMu.RUnlock()
	if r := s.current; r != nil {
		st.Folders = append([]string(nil), r.folders...)
		st.LedgerSize = r.ledger.Len()
		if r.watcher != nil {
			st.Subscribed = r.watcher.Subscribed()
		}
	}
	return st
}

// Start reads the monitored folders once, seeds the ledger, subscribes the
// watcher and launches the scanner.
func (s *Service) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(ctx)
}

// Stop cancels the scanner, closes the watcher and discards the ledger.
func (s *Service) Stop(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop(ctx)
}

// Restart stops a running subsystem and starts it again, which is the only
// way folder changes are picked up.
func (s *Service) Restart(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateRunning {
		if err := s.stop(ctx); err != nil {
			return err
		}
	}
	return s.start(ctx)
}

func (s *Service) start(ctx context.Context) error {
	if err := s.lifecycle.transition(StateStarting); err != nil {
		return err
	}

	r, err := s.prepare(ctx)
	if err != nil {
		_ = s.lifecycle.transition(StateStopped)
		return err
	}

	s.runMu.Lock()
	s.current = r
	s.runMu.Unlock()

	if err := s.lifecycle.transition(StateRunning); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"folders":    len(r.folders),
		"subscribed": len(r.watcher.Subscribed()),
		"known":      r.ledger.Len(),
	}).Info("🚀 Auto-upload monitoring started")
	return nil
}

func (s *Service) prepare(ctx context.Context) (*run, error) {
	pol, err := s.deps.Policies.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading monitored folders: %w", err)
	}

	r := &run{
		folders:  append([]string(nil), pol.MonitoredFolders...),
		ledger:   watcher.NewMemoryLedger(),
		group:    new(errgroup.Group),
		scanDone: make(chan struct{}),
	}
	r.group.SetLimit(s.cfg.MaxInFlight)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.pipeline, err = pipeline.New(pipeline.Config{
		SettleDelay: s.cfg.SettleDelay,
		Logger:      s.logger,
		Metrics:     s.cfg.Metrics,
	}, pipeline.Deps{
		Ledger:      r.ledger,
		Policies:    s.deps.Policies,
		Credentials: s.deps.Credentials,
		Network:     s.deps.Network,
		Notifier:    s.deps.Notifier,
		Gateway:     s.deps.Gateway,
	})
	if err != nil {
		r.cancel()
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	submitter := watcher.SubmitFunc(func(c watcher.Candidate) { s.spawn(r, c) })

	scanner := watcher.NewScanner(watcher.ScannerConfig{
		Folders:  r.folders,
		Schedule: s.cfg.ScanSchedule,
		Logger:   s.logger,
	}, r.ledger, submitter)

	// Seed before subscribing so nothing created in between is lost: it is
	// either seeded or seen by the watcher or the first scan pass.
	scanner.Seed()

	source, err := s.cfg.SourceFactory(s.cfg.WatchMode, r.folders, s.logger)
	if err != nil {
		r.cancel()
		return nil, fmt.Errorf("opening change source: %w", err)
	}

	r.watcher, err = watcher.NewFileWatcher(watcher.Config{Folders: r.folders, Logger: s.logger}, source, submitter)
	if err != nil {
		source.Close()
		r.cancel()
		return nil, err
	}
	if err := r.watcher.Start(); err != nil {
		source.Close()
		r.cancel()
		return nil, fmt.Errorf("starting watcher: %w", err)
	}

	go func() {
		defer close(r.scanDone)
		scanner.Run(r.ctx)
	}()

	return r, nil
}

func (s *Service) stop(ctx context.Context) error {
	if err := s.lifecycle.transition(StateStopping); err != nil {
		return err
	}

	s.runMu.RLock()
	r := s.current
	s.runMu.RUnlock()

	r.cancel()
	if err := r.watcher.Stop(); err != nil {
		s.logger.WithError(err).Warn("Error closing change source")
	}
	<-r.scanDone

	if s.cfg.AwaitInFlight {
		s.awaitPending(ctx, r)
	}

	s.runMu.Lock()
	r.ledger.Reset()
	s.current = nil
	s.runMu.Unlock()

	if err := s.lifecycle.transition(StateStopped); err != nil {
		return err
	}
	s.logger.Info("🛑 Auto-upload monitoring stopped")
	return nil
}

func (s *Service) awaitPending(ctx context.Context, r *run) {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		s.logger.Warnf("⏱️ Gave up waiting for in-flight candidates after %v", s.cfg.StopTimeout)
	case <-ctx.Done():
		s.logger.WithError(ctx.Err()).Warn("Stopped waiting for in-flight candidates")
	}
}

// spawn evaluates c on the bounded group without blocking the producer.
func (s *Service) spawn(r *run, c watcher.Candidate) {
	r.pending.Add(1)
	atomic.AddInt64(&s.inFlight, 1)

	task := func() error {
		defer atomic.AddInt64(&s.inFlight, -1)
		defer r.pending.Done()
		s.evaluate(r, c)
		return nil
	}

	if !r.group.TryGo(task) {
		go r.group.Go(task)
	}
}

// evaluate contains any panic to the one candidate.
func (s *Service) evaluate(r *run, c watcher.Candidate) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.WithFields(logrus.Fields{
				"path":  c.Path,
				"panic": rec,
			}).Error("❌ Error processing file")
			s.deps.Notifier.Show(fmt.Sprintf("Error processing file: %v", rec))
		}
	}()

	out := r.pipeline.Evaluate(r.ctx, c)
	s.logger.WithFields(logrus.Fields{
		"path":    c.Path,
		"origin":  c.Origin,
		"outcome": out.Kind,
		"reason":  out.Reason,
	}).Debug("Candidate evaluated")
}
