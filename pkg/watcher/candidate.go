// Package watcher detects new files in monitored folders and submits them as upload candidates.
package watcher

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Origin identifies which producer detected a path.
type Origin string

const (
	OriginWatcher Origin = "watcher"
	OriginScanner Origin = "scanner"
	OriginSeed    Origin = "seed"
)

// Candidate is a filesystem path flagged as potentially new.
type Candidate struct {
	ID         string
	Path       string
	Origin     Origin
	DetectedAt time.Time
}

// NewCandidate builds a candidate for path, resolving it to an absolute path.
func NewCandidate(path string, origin Origin) Candidate {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Candidate{
		ID:         uuid.NewString(),
		Path:       path,
		Origin:     origin,
		DetectedAt: time.Now(),
	}
}

// Submitter receives candidates from the watcher and the scanner.
type Submitter interface {
	Submit(c Candidate)
}

// SubmitFunc adapts a plain function to the Submitter interface.
type SubmitFunc func(c Candidate)

// Submit calls f(c).
func (f SubmitFunc) Submit(c Candidate) {
	f(c)
}
