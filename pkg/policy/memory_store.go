package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemoryStore keeps the policy in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	policy Policy
}

// NewMemoryStore returns a store holding a copy of p.
func NewMemoryStore(p Policy) *MemoryStore {
	return &MemoryStore{policy: clonePolicy(p)}
}

func (s *MemoryStore) Snapshot(ctx context.Context) (Policy, error) {
	if err := ctx.Err(); err != nil {
		return Policy{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePolicy(s.policy), nil
}

func (s *MemoryStore) SetEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy.Enabled = enabled
	return nil
}

func (s *MemoryStore) AddFolder(_ context.Context, folder string) error {
	folder = cleanFolder(folder)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !containsFolder(s.policy.MonitoredFolders, folder) {
		s.policy.MonitoredFolders = append(s.policy.MonitoredFolders, folder)
	}
	return nil
}

func (s *MemoryStore) RemoveFolder(_ context.Context, folder string) error {
	folder = cleanFolder(folder)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy.MonitoredFolders = withoutFolder(s.policy.MonitoredFolders, folder)
	return nil
}

func (s *MemoryStore) SetWifiOnly(_ context.Context, wifiOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy.WifiOnly = wifiOnly
	return nil
}

func (s *MemoryStore) SetCategory(_ context.Context, category string) error {
	if category == "" {
		return errors.New("category cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy.Category = category
	return nil
}

func (s *MemoryStore) SetSizeLimit(_ context.Context, limit int64) error {
	if limit <= 0 {
		return fmt.Errorf("size limit must be positive, got %d", limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy.SizeLimitBytes = limit
	return nil
}

func (s *MemoryStore) SetAllowedExtensions(_ context.Context, extensions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy.AllowedExtensions = ExtensionSet(extensions)
	return nil
}

func clonePolicy(p Policy) Policy {
	out := p
	out.MonitoredFolders = append([]string(nil), p.MonitoredFolders...)
	out.AllowedExtensions = make(map[string]bool, len(p.AllowedExtensions))
	for k, v := range p.AllowedExtensions {
		out.AllowedExtensions[k] = v
	}
	return out
}
