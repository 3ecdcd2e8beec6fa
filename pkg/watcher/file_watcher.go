package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileWatcher translates native change notifications for monitored folders
// into candidates.
type FileWatcher struct {
	folders    []string
	subscribed []string
	source     ChangeSource
	submitter  Submitter
	logger     *logrus.Logger
	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
}

// Config holds configuration for the FileWatcher.
type Config struct {
	Folders []string
	Logger  *logrus.Logger
}

// NewFileWatcher creates a watcher over source. Nothing is subscribed until Start.
func NewFileWatcher(cfg Config, source ChangeSource, submitter Submitter) (*FileWatcher, error) {
	if source == nil {
		return nil, errors.New("change source cannot be nil")
	}
	if submitter == nil {
		return nil, errors.New("submitter cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &FileWatcher{
		folders:   cfg.Folders,
		source:    source,
		submitter: submitter,
		logger:    cfg.Logger,
	}, nil
}

// Start subscribes every folder that currently exists and begins delivering events.
// Missing folders are logged and skipped.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.started {
		return errors.New("file watcher already started")
	}

	for _, folder := range fw.folders {
		info, err := os.Stat(folder)
		if err != nil || !info.IsDir() {
			fw.logger.Warnf("Folder does not exist or is not a directory: %s", folder)
			continue
		}
		if err := fw.source.Add(folder); err != nil {
			fw.logger.WithError(err).Warnf("Failed to watch folder %s", folder)
			continue
		}
		fw.subscribed = append(fw.subscribed, folder)
		fw.logger.Debugf("Watching folder: %s", folder)
	}

	fw.started = true
	fw.wg.Add(1)
	go fw.watchFiles()

	fw.logger.Infof("🔍 File watcher started for %d folder(s)", len(fw.subscribed))
	return nil
}

// Stop tears down all subscriptions and waits for the event loop to exit.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	err := fw.source.Close()
	if fw.started {
		fw.wg.Wait()
		fw.started = false
	}
	if err != nil {
		return fmt.Errorf("closing change source: %w", err)
	}
	return nil
}

// Subscribed returns the folders that were actually watched.
func (fw *FileWatcher) Subscribed() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.subscribed...)
}

// watchFiles pumps source events until the source is closed.
func (fw *FileWatcher) watchFiles() {
	defer fw.wg.Done()

	events := fw.source.Events()
	errs := fw.source.Errors()
	for events != nil || errs != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			fw.handleFileEvent(event)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fw.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent submits a candidate for creations and moves into a folder.
// Other operations are observed only.
func (fw *FileWatcher) handleFileEvent(event fsnotify.Event) {
	fw.logger.WithFields(logrus.Fields{
		"op":   event.Op.String(),
		"path": event.Name,
	}).Debug("File event")

	if !IsCandidateEvent(event) {
		return
	}
	fw.submitter.Submit(NewCandidate(filepath.Clean(event.Name), OriginWatcher))
}

// IsCandidateEvent reports whether event may announce a new file.
// fsnotify reports inotify CREATE and MOVED_TO both as Create.
func IsCandidateEvent(event fsnotify.Event) bool {
	return event.Has(fsnotify.Create)
}
