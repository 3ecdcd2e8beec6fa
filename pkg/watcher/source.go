package watcher

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch modes.
const (
	ModeFSNotify = "fsnotify"
	ModePoll     = "poll"
	ModeAuto     = "auto"
)

// ChangeSource delivers filesystem change notifications for subscribed directories.
// Closing the source closes both channels.
type ChangeSource interface {
	Add(dir string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// FSNotifySource is a ChangeSource backed by the OS watch API.
type FSNotifySource struct {
	watcher *fsnotify.Watcher
}

// NewFSNotifySource opens a native watcher.
func NewFSNotifySource() (*FSNotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return &FSNotifySource{watcher: w}, nil
}

// Add subscribes to changes in dir.
func (s *FSNotifySource) Add(dir string) error {
	return s.watcher.Add(dir)
}

// Events returns the raw event channel.
func (s *FSNotifySource) Events() <-chan fsnotify.Event {
	return s.watcher.Events
}

// Errors returns the watcher error channel.
func (s *FSNotifySource) Errors() <-chan error {
	return s.watcher.Errors
}

// Close removes all watches.
func (s *FSNotifySource) Close() error {
	return s.watcher.Close()
}

// PollingOnlySource never reports events; the scanner does all detection.
type PollingOnlySource struct {
	events chan fsnotify.Event
	errors chan error
	once   sync.Once
}

// NewPollingOnlySource creates an inert source.
func NewPollingOnlySource() *PollingOnlySource {
	return &PollingOnlySource{
		events: make(chan fsnotify.Event),
		errors: make(chan error),
	}
}

// Add accepts any directory.
func (s *PollingOnlySource) Add(dir string) error {
	return nil
}

// Events returns a channel that only closes.
func (s *PollingOnlySource) Events() <-chan fsnotify.Event {
	return s.events
}

// Errors returns a channel that only closes.
func (s *PollingOnlySource) Errors() <-chan error {
	return s.errors
}

// Close closes both channels. It is safe to call more than once.
func (s *PollingOnlySource) Close() error {
	s.once.Do(func() {
		close(s.events)
		close(s.errors)
	})
	return nil
}

// NewChangeSource builds the source for mode. In auto mode the first existing
// folder is probed and polling-only is used when native events are not delivered.
func NewChangeSource(mode string, folders []string, logger *logrus.Logger) (ChangeSource, error) {
	if logger == nil {
		logger = logrus.New()
	}

	switch mode {
	case ModeFSNotify:
		return NewFSNotifySource()

	case ModePoll:
		return NewPollingOnlySource(), nil

	case ModeAuto, "":
		for _, dir := range folders {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				continue
			}
			res := Probe(dir, defaultProbeTimeout)
			if res.Supported {
				return NewFSNotifySource()
			}
			logger.Warnf("Native file events disabled for %s: %s", dir, res.Reason)
			return NewPollingOnlySource(), nil
		}
		return NewFSNotifySource()

	default:
		return nil, fmt.Errorf("unknown watch mode %q", mode)
	}
}
