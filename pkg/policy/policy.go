// Package policy holds the user-configurable auto-upload rules and the stores
// that persist them.
package policy

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultCategory is the category label attached to auto-uploaded files.
const DefaultCategory = "auto-upload"

// DefaultSizeLimit is the largest file auto-upload will send (100 MiB).
const DefaultSizeLimit int64 = 100 << 20

var defaultExtensions = []string{
	"jpg", "jpeg", "png", "gif", "bmp", "webp",
	"mp4", "avi", "mov", "mkv", "webm",
	"pdf", "doc", "docx", "txt", "rtf",
	"zip", "rar", "7z", "tar", "gz",
}

// Policy is a consistent snapshot of the auto-upload rules.
type Policy struct {
	Enabled           bool            `json:"enabled"`
	MonitoredFolders  []string        `json:"monitored_folders"`
	WifiOnly          bool            `json:"wifi_only"`
	Category          string          `json:"category"`
	SizeLimitBytes    int64           `json:"size_limit_bytes"`
	AllowedExtensions map[string]bool `json:"allowed_extensions"`
}

// Store reads and writes auto-upload rules.
type Store interface {
	Snapshot(ctx context.Context) (Policy, error)
	SetEnabled(ctx context.Context, enabled bool) error
	AddFolder(ctx context.Context, folder string) error
	RemoveFolder(ctx context.Context, folder string) error
	SetWifiOnly(ctx context.Context, wifiOnly bool) error
	SetCategory(ctx context.Context, category string) error
	SetSizeLimit(ctx context.Context, limit int64) error
	SetAllowedExtensions(ctx context.Context, extensions []string) error
}

// AllowsExtension reports whether ext (with or without a leading dot, any
// case) is in the allow-list.
func (p Policy) AllowsExtension(ext string) bool {
	return p.AllowedExtensions[NormalizeExtension(ext)]
}

// Extensions returns the allow-list sorted.
func (p Policy) Extensions() []string {
	out := make([]string, 0, len(p.AllowedExtensions))
	for ext, ok := range p.AllowedExtensions {
		if ok {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeExtension lowercases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ExtensionSet builds an allow-list from a slice, dropping empty entries.
func ExtensionSet(extensions []string) map[string]bool {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		if n := NormalizeExtension(ext); n != "" {
			set[n] = true
		}
	}
	return set
}

// DefaultExtensions returns the starter allow-list.
func DefaultExtensions() []string {
	return append([]string(nil), defaultExtensions...)
}

// DefaultFolders returns the standard download, camera and pictures folders
// under home plus any screenshot directories that exist right now.
func DefaultFolders(home string) []string {
	folders := []string{
		filepath.Join(home, "Downloads"),
		filepath.Join(home, "DCIM", "Camera"),
		filepath.Join(home, "Pictures"),
	}

	screenshots := []string{
		filepath.Join(home, "Pictures", "Screenshots"),
		filepath.Join(home, "DCIM", "Screenshots"),
		filepath.Join(home, "Screenshots"),
	}
	for _, dir := range screenshots {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			folders = append(folders, dir)
		}
	}
	return folders
}

// Defaults returns the policy used when nothing has been stored.
func Defaults(home string) Policy {
	return Policy{
		Enabled:           false,
		MonitoredFolders:  DefaultFolders(home),
		WifiOnly:          true,
		Category:          DefaultCategory,
		SizeLimitBytes:    DefaultSizeLimit,
		AllowedExtensions: ExtensionSet(defaultExtensions),
	}
}

func cleanFolder(folder string) string {
	if abs, err := filepath.Abs(folder); err == nil {
		return abs
	}
	return filepath.Clean(folder)
}

func containsFolder(folders []string, folder string) bool {
	for _, f := range folders {
		if f == folder {
			return true
		}
	}
	return false
}

func withoutFolder(folders []string, folder string) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		if f != folder {
			out = append(out, f)
		}
	}
	return out
}
