// Package monitoring provides upload metrics and the local status endpoints
// of the auto-upload daemon.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/addityasingh/glaceon/pkg/notify"
	"github.com/addityasingh/glaceon/pkg/service"
	"github.com/sirupsen/logrus"
)

// StatusSource reports the subsystem state.
type StatusSource interface {
	Status() service.Status
}

// NotificationSource exposes the latest user-facing message.
type NotificationSource interface {
	Latest() (notify.Message, bool)
}

// Metrics tracks upload activity. It satisfies pipeline.MetricsCollector.
type Metrics struct {
	// Candidate counters
	candidates       int64
	uploadsSucceeded int64
	uploadsFailed    int64
	bytesUploaded    int64

	skipMu  sync.Mutex
	skipped map[string]int64

	// Performance metrics
	avgUploadTime    int64 // in milliseconds
	lastUploadTimeNs int64 // Unix nanoseconds, accessed atomically

	startTime time.Time
	deviceID  string

	logger *logrus.Logger
}

// UploadMetrics is the JSON view of Metrics.
type UploadMetrics struct {
	DeviceID         string           `json:"device_id"`
	Candidates       int64            `json:"candidates"`
	UploadsSucceeded int64            `json:"uploads_succeeded"`
	UploadsFailed    int64            `json:"uploads_failed"`
	Skipped          map[string]int64 `json:"skipped"`
	BytesUploaded    int64            `json:"bytes_uploaded"`
	AvgUploadTime    int64            `json:"avg_upload_time_ms"`
	LastUploadTime   string           `json:"last_upload_time"`
	MemoryUsage      int64            `json:"memory_usage_bytes"`
	Goroutines       int              `json:"goroutines"`
	Uptime           string           `json:"uptime"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Health is the JSON body of /health.
type Health struct {
	DeviceID   string    `json:"device_id"`
	State      string    `json:"state"`
	Folders    []string  `json:"folders"`
	Subscribed []string  `json:"subscribed"`
	LedgerSize int       `json:"ledger_size"`
	InFlight   int64     `json:"in_flight"`
	Uptime     string    `json:"uptime"`
	Timestamp  time.Time `json:"timestamp"`
}

// Monitor serves metrics and health for one daemon.
type Monitor struct {
	metrics       *Metrics
	status        StatusSource
	notifications NotificationSource
	logger        *logrus.Logger
}

// NewMetrics creates a new metrics instance.
func NewMetrics(deviceID string, logger *logrus.Logger) *Metrics {
	if logger == nil {
		logger = logrus.New()
	}

	return &Metrics{
		deviceID:  deviceID,
		skipped:   make(map[string]int64),
		startTime: time.Now(),
		logger:    logger,
	}
}

// NewMonitor creates a monitor over an existing metrics instance.
func NewMonitor(metrics *Metrics, status StatusSource, notifications NotificationSource, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		metrics:       metrics,
		status:        status,
		notifications: notifications,
		logger:        logger,
	}
}

func (m *Metrics) IncrementCandidates() {
	atomic.AddInt64(&m.candidates, 1)
}

func (m *Metrics) RecordSkip(reason string) {
	m.skipMu.Lock()
	defer m.skipMu.Unlock()
	m.skipped[reason]++
}

// RecordUpload counts a successful upload of bytes that took duration.
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	atomic.AddInt64(&m.uploadsSucceeded, 1)
	atomic.AddInt64(&m.bytesUploaded, bytes)
	atomic.StoreInt64(&m.lastUploadTimeNs, time.Now().UnixNano())

	ms := duration.Milliseconds()
	current := atomic.LoadInt64(&m.avgUploadTime)
	if current == 0 {
		atomic.StoreInt64(&m.avgUploadTime, ms)
	} else {
		// Weighted average: 90% old value, 10% new value
		atomic.StoreInt64(&m.avgUploadTime, (current*9+ms)/10)
	}
}

func (m *Metrics) RecordUploadFailure() {
	atomic.AddInt64(&m.uploadsFailed, 1)
}

// GetUploadMetrics returns a snapshot of the counters.
func (m *Metrics) GetUploadMetrics() UploadMetrics {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	lastUpload := "never"
	if ns := atomic.LoadInt64(&m.lastUploadTimeNs); ns != 0 {
		lastUpload = time.Unix(0, ns).Format(time.RFC3339)
	}

	m.skipMu.Lock()
	skipped := make(map[string]int64, len(m.skipped))
	for k, v := range m.skipped {
		skipped[k] = v
	}
	m.skipMu.Unlock()

	return UploadMetrics{
		DeviceID:         m.deviceID,
		Candidates:       atomic.LoadInt64(&m.candidates),
		UploadsSucceeded: atomic.LoadInt64(&m.uploadsSucceeded),
		UploadsFailed:    atomic.LoadInt64(&m.uploadsFailed),
		Skipped:          skipped,
		BytesUploaded:    atomic.LoadInt64(&m.bytesUploaded),
		AvgUploadTime:    atomic.LoadInt64(&m.avgUploadTime),
		LastUploadTime:   lastUpload,
		MemoryUsage:      int64(memStats.Alloc),
		Goroutines:       runtime.NumGoroutine(),
		Uptime:           time.Since(m.startTime).String(),
		Timestamp:        time.Now(),
	}
}

// GetHealth combines the subsystem status with uptime.
func (mon *Monitor) GetHealth() Health {
	st := mon.status.Status()
	return Health{
		DeviceID:   mon.metrics.deviceID,
		State:      string(st.State),
		Folders:    st.Folders,
		Subscribed: st.Subscribed,
		LedgerSize: st.LedgerSize,
		InFlight:   st.InFlight,
		Uptime:     time.Since(mon.metrics.startTime).String(),
		Timestamp:  time.Now(),
	}
}

// Handler returns the status mux.
func (mon *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, mon.metrics.GetUploadMetrics())
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, mon.GetHealth())
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if mon.status.Status().State == service.StateRunning {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready"))
		}
	})

	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("alive"))
	})

	mux.HandleFunc("/notification", func(w http.ResponseWriter, r *http.Request) {
		if mon.notifications == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		msg, ok := mon.notifications.Latest()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, msg)
	})

	mux.Handle("/dashboard", NewDashboard(mon, mon.logger))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]string{
			"service":   "glaceon-auto-upload",
			"device_id": mon.metrics.deviceID,
			"state":     string(mon.status.Status().State),
			"uptime":    time.Since(mon.metrics.startTime).String(),
		})
	})

	return mux
}

// StartHTTPServer serves Handler on loopback until ctx is cancelled. It
// returns once the listener is bound.
func (mon *Monitor) StartHTTPServer(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	srv := &http.Server{Handler: mon.Handler(), ReadHeaderTimeout: 5 * time.Second}
	addr := listener.Addr().String()
	mon.logger.Infof("📊 Status server starting on http://%s", addr)
	mon.logger.Infof("   Metrics: http://%s/metrics", addr)
	mon.logger.Infof("   Health:  http://%s/health", addr)
	mon.logger.Infof("   Dashboard: http://%s/dashboard", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mon.logger.WithError(err).Error("Status server failed")
		}
	}()

	return nil
}

// LogMetrics logs key metrics every interval until ctx is cancelled.
func (mon *Monitor) LogMetrics(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mon.logOnce()
			}
		}
	}()
}

func (mon *Monitor) logOnce() {
	metrics := mon.metrics.GetUploadMetrics()
	health := mon.GetHealth()

	mon.logger.WithFields(logrus.Fields{
		"candidates":        metrics.Candidates,
		"uploads_succeeded": metrics.UploadsSucceeded,
		"uploads_failed":    metrics.UploadsFailed,
		"bytes_uploaded":    metrics.BytesUploaded,
		"state":             health.State,
		"ledger_size":       health.LedgerSize,
		"in_flight":         health.InFlight,
		"memory_mb":         metrics.MemoryUsage / 1024 / 1024,
		"goroutines":        metrics.Goroutines,
	}).Info("Upload metrics")
}

// GetMetrics returns the underlying metrics instance.
func (mon *Monitor) GetMetrics() *Metrics {
	return mon.metrics
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
