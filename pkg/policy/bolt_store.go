package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boltdb/bolt"
)

// Bucket and key names of the persisted settings.
const (
	BucketName = "auto_upload_settings"

	KeyEnabled    = "auto_upload_enabled"
	KeyFolders    = "monitored_folders"
	KeyWifiOnly   = "wifi_only"
	KeyCategory   = "auto_category"
	KeySizeLimit  = "file_size_limit"
	KeyExtensions = "allowed_extensions"
)

// BoltStore persists the policy in a bolt bucket, one JSON value per key.
// Keys that were never written read as the store's defaults.
type BoltStore struct {
	db       *bolt.DB
	defaults Policy
}

// NewBoltStore creates the settings bucket if needed.
func NewBoltStore(db *bolt.DB, defaults Policy) (*BoltStore, error) {
	if db == nil {
		return nil, errors.New("bolt db cannot be nil")
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating settings bucket: %w", err)
	}

	return &BoltStore{db: db, defaults: defaults}, nil
}

// Snapshot reads every key inside one read transaction.
func (s *BoltStore) Snapshot(ctx context.Context) (Policy, error) {
	if err := ctx.Err(); err != nil {
		return Policy{}, err
	}

	p := s.defaults
	p.MonitoredFolders = append([]string(nil), s.defaults.MonitoredFolders...)
	p.AllowedExtensions = ExtensionSet(s.defaults.Extensions())

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return nil
		}

		if err := readKey(b, KeyEnabled, &p.Enabled); err != nil {
			return err
		}
		if err := readKey(b, KeyFolders, &p.MonitoredFolders); err != nil {
			return err
		}
		if err := readKey(b, KeyWifiOnly, &p.WifiOnly); err != nil {
			return err
		}
		if err := readKey(b, KeyCategory, &p.Category); err != nil {
			return err
		}
		if err := readKey(b, KeySizeLimit, &p.SizeLimitBytes); err != nil {
			return err
		}

		var exts []string
		if raw := b.Get([]byte(KeyExtensions)); raw != nil {
			if err := json.Unmarshal(raw, &exts); err != nil {
				return fmt.Errorf("decoding %s: %w", KeyExtensions, err)
			}
			p.AllowedExtensions = ExtensionSet(exts)
		}
		return nil
	})
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy: %w", err)
	}

	return p, nil
}

func (s *BoltStore) SetEnabled(ctx context.Context, enabled bool) error {
	return s.put(ctx, KeyEnabled, enabled)
}

func (s *BoltStore) SetWifiOnly(ctx context.Context, wifiOnly bool) error {
	return s.put(ctx, KeyWifiOnly, wifiOnly)
}

func (s *BoltStore) SetCategory(ctx context.Context, category string) error {
	if category == "" {
		return errors.New("category cannot be empty")
	}
	return s.put(ctx, KeyCategory, category)
}

func (s *BoltStore) SetSizeLimit(ctx context.Context, limit int64) error {
	if limit <= 0 {
		return fmt.Errorf("size limit must be positive, got %d", limit)
	}
	return s.put(ctx, KeySizeLimit, limit)
}

func (s *BoltStore) SetAllowedExtensions(ctx context.Context, extensions []string) error {
	set := ExtensionSet(extensions)
	normalized := Policy{AllowedExtensions: set}.Extensions()
	return s.put(ctx, KeyExtensions, normalized)
}

// AddFolder appends folder to the current effective folder set, defaults
// included.
func (s *BoltStore) AddFolder(ctx context.Context, folder string) error {
	folder = cleanFolder(folder)
	return s.updateFolders(ctx, func(folders []string) []string {
		if containsFolder(folders, folder) {
			return folders
		}
		return append(folders, folder)
	})
}

func (s *BoltStore) RemoveFolder(ctx context.Context, folder string) error {
	folder = cleanFolder(folder)
	return s.updateFolders(ctx, func(folders []string) []string {
		return withoutFolder(folders, folder)
	})
}

func (s *BoltStore) updateFolders(ctx context.Context, fn func([]string) []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		if err != nil {
			return err
		}

		folders := append([]string(nil), s.defaults.MonitoredFolders...)
		if err := readKey(b, KeyFolders, &folders); err != nil {
			return err
		}

		raw, err := json.Marshal(fn(folders))
		if err != nil {
			return fmt.Errorf("encoding %s: %w", KeyFolders, err)
		}
		return b.Put([]byte(KeyFolders), raw)
	})
}

func (s *BoltStore) put(ctx context.Context, key string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func readKey(b *bolt.Bucket, key string, dst interface{}) error {
	raw := b.Get([]byte(key))
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
