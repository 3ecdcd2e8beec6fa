package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a ChangeSource driven by the test.
type fakeSource struct {
	events chan fsnotify.Event
	errors chan error
	once   sync.Once
	mu     sync.Mutex
	added  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan fsnotify.Event, 16),
		errors: make(chan error, 4),
	}
}

func (s *fakeSource) Add(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, dir)
	return nil
}

func (s *fakeSource) Events() <-chan fsnotify.Event { return s.events }
func (s *fakeSource) Errors() <-chan error          { return s.errors }

func (s *fakeSource) Close() error {
	s.once.Do(func() {
		close(s.events)
		close(s.errors)
	})
	return nil
}

// collector records submitted candidates.
type collector struct {
	mu  sync.Mutex
	got []Candidate
}

func (c *collector) Submit(cd Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, cd)
}

func (c *collector) candidates() []Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Candidate(nil), c.got...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewFileWatcher_Validation(t *testing.T) {
	_, err := NewFileWatcher(Config{}, nil, &collector{})
	assert.Error(t, err)

	_, err = NewFileWatcher(Config{}, newFakeSource(), nil)
	assert.Error(t, err)

	fw, err := NewFileWatcher(Config{}, newFakeSource(), &collector{})
	require.NoError(t, err)
	assert.NotNil(t, fw.logger)
}

func TestFileWatcher_SkipsMissingFolders(t *testing.T) {
	existing := t.TempDir()
	missing := filepath.Join(existing, "does-not-exist")
	notDir := filepath.Join(existing, "file.txt")
	require.NoError(t, os.WriteFile(notDir, []byte("x"), 0644))

	src := newFakeSource()
	fw, err := NewFileWatcher(Config{Folders: []string{existing, missing, notDir}, Logger: quietLogger()}, src, &collector{})
	require.NoError(t, err)

	require.NoError(t, fw.Start())
	defer fw.Stop()

	assert.Equal(t, []string{existing}, fw.Subscribed())
	assert.Equal(t, []string{existing}, src.added)
}

func TestFileWatcher_OnlyCreateProducesCandidates(t *testing.T) {
	dir := t.TempDir()
	src := newFakeSource()
	sink := &collector{}

	fw, err := NewFileWatcher(Config{Folders: []string{dir}, Logger: quietLogger()}, src, sink)
	require.NoError(t, err)
	require.NoError(t, fw.Start())

	created := filepath.Join(dir, "photo.jpg")
	src.events <- fsnotify.Event{Name: filepath.Join(dir, "gone.jpg"), Op: fsnotify.Remove}
	src.events <- fsnotify.Event{Name: filepath.Join(dir, "old.jpg"), Op: fsnotify.Rename}
	src.events <- fsnotify.Event{Name: filepath.Join(dir, "edit.jpg"), Op: fsnotify.Write}
	src.events <- fsnotify.Event{Name: filepath.Join(dir, "mode.jpg"), Op: fsnotify.Chmod}
	src.events <- fsnotify.Event{Name: created, Op: fsnotify.Create}
	src.errors <- assert.AnError

	require.NoError(t, fw.Stop())

	got := sink.candidates()
	require.Len(t, got, 1)
	assert.Equal(t, created, got[0].Path)
	assert.Equal(t, OriginWatcher, got[0].Origin)
	assert.NotEmpty(t, got[0].ID)
}

func TestFileWatcher_RepeatedEventsAreNotDeduplicated(t *testing.T) {
	dir := t.TempDir()
	src := newFakeSource()
	sink := &collector{}

	fw, err := NewFileWatcher(Config{Folders: []string{dir}, Logger: quietLogger()}, src, sink)
	require.NoError(t, err)
	require.NoError(t, fw.Start())

	path := filepath.Join(dir, "burst.png")
	for i := 0; i < 3; i++ {
		src.events <- fsnotify.Event{Name: path, Op: fsnotify.Create}
	}
	require.NoError(t, fw.Stop())

	assert.Len(t, sink.candidates(), 3)
}

func TestFileWatcher_StartTwice(t *testing.T) {
	fw, err := NewFileWatcher(Config{Logger: quietLogger()}, newFakeSource(), &collector{})
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	assert.Error(t, fw.Start())
}

func TestFileWatcher_NativeEvents(t *testing.T) {
	dir := t.TempDir()
	src, err := NewFSNotifySource()
	require.NoError(t, err)
	sink := &collector{}

	fw, err := NewFileWatcher(Config{Folders: []string{dir}, Logger: quietLogger()}, src, sink)
	require.NoError(t, err)
	require.NoError(t, fw.Start())
	defer fw.Stop()

	path := filepath.Join(dir, "native.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	assert.Eventually(t, func() bool {
		for _, c := range sink.candidates() {
			if c.Path == path {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestIsCandidateEvent(t *testing.T) {
	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{name: "create", op: fsnotify.Create, want: true},
		{name: "create_and_write", op: fsnotify.Create | fsnotify.Write, want: true},
		{name: "write", op: fsnotify.Write, want: false},
		{name: "remove", op: fsnotify.Remove, want: false},
		{name: "rename", op: fsnotify.Rename, want: false},
		{name: "chmod", op: fsnotify.Chmod, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCandidateEvent(fsnotify.Event{Name: "/x", Op: tt.op}))
		})
	}
}
