package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultScanInterval is the reference cadence of the polling scanner.
const DefaultScanInterval = 5 * time.Second

// ScannerConfig holds configuration for the Scanner.
type ScannerConfig struct {
	Folders  []string
	Schedule cron.Schedule
	Logger   *logrus.Logger
}

// Scanner re-lists monitored folders on a schedule and submits paths missing
// from the ledger. Passes never overlap.
type Scanner struct {
	folders   []string
	schedule  cron.Schedule
	ledger    Ledger
	submitter Submitter
	logger    *logrus.Logger
}

// NewScanner creates a scanner. A nil schedule means every DefaultScanInterval.
func NewScanner(cfg ScannerConfig, ledger Ledger, submitter Submitter) *Scanner {
	if cfg.Schedule == nil {
		cfg.Schedule = cron.Every(DefaultScanInterval)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Scanner{
		folders:   cfg.Folders,
		schedule:  cfg.Schedule,
		ledger:    ledger,
		submitter: submitter,
		logger:    cfg.Logger,
	}
}

// ParseSchedule accepts cron specs and descriptors such as "@every 5s".
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

// Seed performs the initial sweep: every existing file enters the ledger and
// nothing is submitted. It returns the number of files recorded.
func (s *Scanner) Seed() int {
	seeded := 0
	for _, folder := range s.folders {
		files, err := listFiles(folder)
		if err != nil {
			s.logger.WithError(err).Warnf("❌ Cannot scan folder %s", folder)
			continue
		}
		for _, path := range files {
			if s.ledger.Add(path, OriginSeed) {
				seeded++
			}
		}
	}

	s.logger.Infof("📊 Initial scan complete. Known files: %d", s.ledger.Len())
	return seeded
}

// Scan performs one pass and returns the number of candidates submitted.
func (s *Scanner) Scan() int {
	found := 0
	for _, folder := range s.folders {
		files, err := listFiles(folder)
		if err != nil {
			s.logger.WithError(err).Debugf("Skipping unreadable folder %s", folder)
			continue
		}
		for _, path := range files {
			if !s.ledger.Add(path, OriginScanner) {
				continue
			}
			found++
			s.logger.Infof("🆕 New file found: %s", path)
			s.submitter.Submit(NewCandidate(path, OriginScanner))
		}
	}

	if found > 0 {
		s.logger.Infof("📊 Scan complete. New files found: %d", found)
	}
	return found
}

// Run repeats Scan on the schedule until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	for {
		now := time.Now()
		timer := time.NewTimer(s.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.Scan()
	}
}

// listFiles returns the absolute paths of regular files directly inside dir.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if !e.Type().IsRegular() {
			info, err := os.Stat(full)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		if abs, err := filepath.Abs(full); err == nil {
			full = abs
		}
		files = append(files, full)
	}
	return files, nil
}
