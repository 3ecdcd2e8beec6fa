package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

const (
	BucketName = "credentials"

	KeyAccessToken = "access_token"
	KeyUserID      = "current_user_id"
	KeyUsername    = "current_username"
	KeyEmail       = "current_email"
)

var allKeys = []string{KeyAccessToken, KeyUserID, KeyUsername, KeyEmail}

// BoltStore keeps the token and account in a bolt bucket.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	if db == nil {
		return nil, errors.New("bolt db cannot be nil")
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating credentials bucket: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Token returns the stored token when it is present and not expired.
func (s *BoltStore) Token(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}

	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(BucketName)); b != nil {
			token = string(b.Get([]byte(KeyAccessToken)))
		}
		return nil
	})
	if err != nil {
		return "", false
	}
	return token, Usable(token, s.now())
}

// Save stores the token and account in one transaction.
func (s *BoltStore) Save(token string, account Account) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}

	values := map[string]string{
		KeyAccessToken: token,
		KeyUserID:      account.UserID,
		KeyUsername:    account.Username,
		KeyEmail:       account.Email,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		if err != nil {
			return err
		}
		for k, v := range values {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// Clear removes the token and account.
func (s *BoltStore) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return nil
		}
		for _, k := range allKeys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// Account returns the stored account, or false when nobody is signed in.
func (s *BoltStore) Account() (Account, bool, error) {
	var account Account
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return nil
		}
		found = len(b.Get([]byte(KeyAccessToken))) > 0
		account = Account{
			UserID:   string(b.Get([]byte(KeyUserID))),
			Username: string(b.Get([]byte(KeyUsername))),
			Email:    string(b.Get([]byte(KeyEmail))),
		}
		return nil
	})
	if err != nil {
		return Account{}, false, fmt.Errorf("reading account: %w", err)
	}
	return account, found, nil
}
