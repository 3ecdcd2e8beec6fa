// Package pipeline is the single policy gate for upload candidates. Both the
// watcher and the scanner feed it, so a file is judged the same way no matter
// which producer found it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/addityasingh/glaceon/pkg/credentials"
	"github.com/addityasingh/glaceon/pkg/gateway"
	"github.com/addityasingh/glaceon/pkg/network"
	"github.com/addityasingh/glaceon/pkg/notify"
	"github.com/addityasingh/glaceon/pkg/policy"
	"github.com/addityasingh/glaceon/pkg/watcher"
	"github.com/sirupsen/logrus"
)

// DefaultSettleDelay is how long a file must stay put before it is trusted.
const DefaultSettleDelay = 2 * time.Second

// tempPrefixes mark files that are still being written.
var tempPrefixes = []string{".pending-", ".tmp", "~"}

// Config holds pipeline tuning.
type Config struct {
	SettleDelay time.Duration
	Logger      *logrus.Logger
	Metrics     MetricsCollector
}

// Deps are the collaborators the pipeline reads from and reports to.
type Deps struct {
	Ledger      watcher.Ledger
	Policies    policy.Store
	Credentials credentials.Provider
	Network     network.Probe
	Notifier    notify.Notifier
	Gateway     gateway.Gateway
}

// Pipeline evaluates candidates.
type Pipeline struct {
	settleDelay time.Duration
	ledger      watcher.Ledger
	policies    policy.Store
	credentials credentials.Provider
	network     network.Probe
	notifier    notify.Notifier
	executor    *Executor
	metrics     MetricsCollector
	logger      *logrus.Logger
}

// New validates deps and builds a pipeline with its executor.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("ledger cannot be nil")
	case deps.Policies == nil:
		return nil, errors.New("policy store cannot be nil")
	case deps.Credentials == nil:
		return nil, errors.New("credential provider cannot be nil")
	case deps.Network == nil:
		return nil, errors.New("network probe cannot be nil")
	}

	if cfg.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay cannot be negative: %v", cfg.SettleDelay)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}

	executor, err := NewExecutor(deps.Gateway, deps.Notifier, cfg.Metrics, cfg.Logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		settleDelay: cfg.SettleDelay,
		ledger:      deps.Ledger,
		policies:    deps.Policies,
		credentials: deps.Credentials,
		network:     deps.Network,
		notifier:    deps.Notifier,
		executor:    executor,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}, nil
}

// Evaluate runs the ordered checks for c and stops at the first that fails.
// Only the settle wait observes ctx cancellation; once a file has settled the
// rest of the evaluation and the upload run to completion.
func (p *Pipeline) Evaluate(ctx context.Context, c watcher.Candidate) Outcome {
	p.metrics.IncrementCandidates()
	log := p.logger.WithFields(logrus.Fields{
		"candidate": c.ID,
		"path":      c.Path,
		"origin":    c.Origin,
	})
	name := filepath.Base(c.Path)

	// 1. name filter
	if isTempName(name) {
		log.Debug("Skipping temporary file")
		return p.skip(skipped(ReasonTempName))
	}

	// 2. existence and type
	if !isReadableFile(c.Path) {
		log.Debug("File missing, unreadable or not a regular file")
		return p.skip(skipped(ReasonMissing))
	}

	// 3. settle
	if !p.settle(ctx) {
		log.Debug("Settle wait cancelled")
		return p.skip(skipped(ReasonCancelled))
	}
	info, err := os.Stat(c.Path)
	if err != nil || info.Size() == 0 || !info.Mode().IsRegular() {
		log.Debug("File disappeared or empty after settle delay")
		return p.skip(skipped(ReasonUnsettled))
	}
	ctx = context.WithoutCancel(ctx)

	// 3b. scanner candidates were claimed when discovered
	if c.Origin != watcher.OriginScanner && !p.ledger.Add(c.Path, c.Origin) {
		log.Debug("Path already known")
		return p.skip(skipped(ReasonAlreadyKnown))
	}

	// 4. feature toggle
	pol, err := p.policies.Snapshot(ctx)
	if err != nil {
		log.WithError(err).Warn("❌ Cannot read auto-upload policy")
		return p.skip(Outcome{Kind: KindSkipped, Reason: ReasonPolicyError, Err: err})
	}
	if !pol.Enabled {
		log.Debug("Auto upload disabled")
		return p.skip(skipped(ReasonDisabled))
	}

	// 5. extension allow-list
	ext := policy.NormalizeExtension(filepath.Ext(name))
	if !pol.AllowsExtension(ext) {
		log.WithField("extension", ext).Debug("File extension not allowed")
		return p.skip(skipped(ReasonExtension))
	}

	// 6. size limit
	if info.Size() > pol.SizeLimitBytes {
		log.WithFields(logrus.Fields{"size": info.Size(), "limit": pol.SizeLimitBytes}).Info("File exceeds size limit")
		p.notifier.Show(fmt.Sprintf("File too large: %s", name))
		return p.skip(rejected(ReasonTooLarge))
	}

	// 7. network gating
	if pol.WifiOnly && !p.network.IsOnWifi() {
		log.Info("Not on Wi-Fi, holding upload")
		p.notifier.Show(fmt.Sprintf("Waiting for WiFi: %s", name))
		return p.skip(rejected(ReasonNoWifi))
	}

	// 8. authentication
	token, ok := p.credentials.Token(ctx)
	if !ok {
		log.Info("No usable access token")
		p.notifier.Show("Authentication required for auto-upload")
		return p.skip(rejected(ReasonNoAuth))
	}

	// 9. forward
	log.Info("🚀 Starting upload")
	return p.executor.Execute(ctx, Request{
		Path:     c.Path,
		FileName: name,
		Token:    token,
		Metadata: Metadata(c.Path, pol.Category),
	})
}

// Metadata is the bundle attached to an auto-upload of path.
func Metadata(path, category string) map[string]string {
	return map[string]string{
		gateway.MetaDescription:  "Auto-uploaded from " + filepath.Dir(path),
		gateway.MetaCategory:     category,
		gateway.MetaOriginalPath: path,
	}
}

func (p *Pipeline) skip(o Outcome) Outcome {
	p.metrics.RecordSkip(string(o.Reason))
	return o
}

// settle waits out the settle delay. It returns false if ctx ended first.
func (p *Pipeline) settle(ctx context.Context) bool {
	if p.settleDelay == 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(p.settleDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func isTempName(name string) bool {
	for _, prefix := range tempPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// isReadableFile reports whether path is a regular file that can be opened.
// Opening a named pipe blocks until a writer appears, so only regular files
// reach os.Open.
func isReadableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
