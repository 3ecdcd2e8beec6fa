package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollingOnlySource(t *testing.T) {
	src := NewPollingOnlySource()
	assert.NoError(t, src.Add("/anything"))

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, ok := <-src.Events()
	assert.False(t, ok)
	_, ok = <-src.Errors()
	assert.False(t, ok)
}

func TestNewChangeSource(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		mode    string
		want    interface{}
		wantErr bool
	}{
		{name: "fsnotify", mode: ModeFSNotify, want: &FSNotifySource{}},
		{name: "poll", mode: ModePoll, want: &PollingOnlySource{}},
		{name: "auto", mode: ModeAuto, want: &FSNotifySource{}},
		{name: "unknown", mode: "inotify-ng", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewChangeSource(tt.mode, []string{dir}, quietLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer src.Close()
			assert.IsType(t, tt.want, src)
		})
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()

	res := Probe(dir, time.Second)
	assert.True(t, res.Supported, res.Reason)

	// Probe files are cleaned up.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProbe_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	res := Probe(file, time.Second)
	assert.False(t, res.Supported)
	assert.Equal(t, "not a directory", res.Reason)

	res = Probe(filepath.Join(file, "missing"), time.Second)
	assert.False(t, res.Supported)
	assert.Contains(t, res.Reason, "stat failed")
}
