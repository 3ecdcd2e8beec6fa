package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/addityasingh/glaceon/pkg/gateway"
	"github.com/addityasingh/glaceon/pkg/notify"
	"github.com/sirupsen/logrus"
)

// Request is everything the executor needs for one upload.
type Request struct {
	Path     string
	FileName string
	Token    string
	Metadata map[string]string
}

// Executor performs the upload and reports progress through the notifier.
// It never deletes the source file.
type Executor struct {
	gateway  gateway.Gateway
	notifier notify.Notifier
	metrics  MetricsCollector
	logger   *logrus.Logger
}

func NewExecutor(gw gateway.Gateway, notifier notify.Notifier, metrics MetricsCollector, logger *logrus.Logger) (*Executor, error) {
	if gw == nil {
		return nil, errors.New("gateway cannot be nil")
	}
	if notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Executor{gateway: gw, notifier: notifier, metrics: metrics, logger: logger}, nil
}

// Execute uploads req.Path. Every failure takes the same notification path;
// only the log tells transport and server errors apart.
func (e *Executor) Execute(ctx context.Context, req Request) Outcome {
	e.notifier.Show(fmt.Sprintf("Uploading: %s", req.FileName))

	content, err := os.ReadFile(req.Path)
	if err != nil {
		e.logger.WithError(err).WithField("path", req.Path).Error("❌ Failed to read file for upload")
		e.notifier.Show(fmt.Sprintf("✗ Upload error: %s - %s", req.FileName, err.Error()))
		e.metrics.RecordUploadFailure()
		return failed(ReasonReadError, err)
	}

	start := time.Now()
	receipt, err := e.gateway.Upload(ctx, req.Token, content, req.FileName, req.Metadata)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"path":      req.Path,
			"transport": gateway.IsTransport(err),
			"status":    gateway.StatusCode(err),
		}).Error("❌ Upload failed")
		e.notifier.Show(fmt.Sprintf("✗ Upload failed: %s - %s", req.FileName, err.Error()))
		e.metrics.RecordUploadFailure()
		return failed(ReasonGateway, err)
	}

	e.metrics.RecordUpload(int64(len(content)), time.Since(start))
	e.logger.WithFields(logrus.Fields{
		"path":      req.Path,
		"remote_id": receipt.RemoteID,
		"bytes":     len(content),
	}).Info("✅ Uploaded file")
	e.notifier.Show(fmt.Sprintf("✓ Uploaded: %s", req.FileName))

	return uploaded(receipt.RemoteID)
}
