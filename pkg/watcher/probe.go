package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultProbeTimeout = 200 * time.Millisecond

// Probe file names start with ".tmp" so the upload pipeline ignores them.
const (
	probeTempName  = ".tmp-glaceon-probe"
	probeFinalName = ".tmp-glaceon-probe-final"
)

// ProbeResult reports whether native file events work in a directory.
type ProbeResult struct {
	Supported bool
	Reason    string
}

// Probe performs a real create+rename in dir and waits for fsnotify to report it.
func Probe(dir string, timeout time.Duration) ProbeResult {
	st, err := os.Stat(dir)
	if err != nil {
		return ProbeResult{false, fmt.Sprintf("stat failed: %v", err)}
	}
	if !st.IsDir() {
		return ProbeResult{false, "not a directory"}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return ProbeResult{false, fmt.Sprintf("fsnotify unavailable: %v", err)}
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return ProbeResult{false, fmt.Sprintf("cannot watch directory: %v", err)}
	}

	tmp := filepath.Join(dir, probeTempName)
	final := filepath.Join(dir, probeFinalName)

	f, err := os.Create(tmp)
	if err != nil {
		return ProbeResult{false, fmt.Sprintf("cannot create temp file: %v", err)}
	}
	f.Close()

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return ProbeResult{false, fmt.Sprintf("rename failed: %v", err)}
	}
	defer os.Remove(final)

	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return ProbeResult{false, "event channel closed"}
			}
			if ev.Op&(fsnotify.Rename|fsnotify.Create|fsnotify.Write) != 0 {
				return ProbeResult{true, ""}
			}
		case <-deadline:
			return ProbeResult{false, "no events received (rename not reported)"}
		}
	}
}
