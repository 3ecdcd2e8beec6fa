package credentials

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp *time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "user-1"}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestUsable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{name: "empty", token: "", want: false},
		{name: "whitespace", token: "   ", want: false},
		{name: "opaque", token: "abc123", want: true},
		{name: "jwt_valid", token: signedToken(t, &future), want: true},
		{name: "jwt_expired", token: signedToken(t, &past), want: false},
		{name: "jwt_no_exp", token: signedToken(t, nil), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Usable(tt.token, now))
		})
	}
}

func TestStaticAndChain(t *testing.T) {
	ctx := context.Background()

	token, ok := Static("tok").Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	_, ok = Static("").Token(ctx)
	assert.False(t, ok)

	token, ok = Chain{nil, Static(""), Static("second")}.Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "second", token)

	_, ok = Chain{}.Token(ctx)
	assert.False(t, ok)
}

func TestEnv(t *testing.T) {
	t.Setenv(EnvToken, "from-env")
	token, ok := Env{}.Token(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "from-env", token)

	t.Setenv(EnvToken, "")
	_, ok = Env{}.Token(context.Background())
	assert.False(t, ok)
}

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	db, err := bolt.Open(filepath.Join(t.TempDir(), "state.db"), 0600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewBoltStore(db)
	require.NoError(t, err)
	return store
}

func TestBoltStore_SaveAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok := store.Token(ctx)
	assert.False(t, ok)
	_, found, err := store.Account()
	require.NoError(t, err)
	assert.False(t, found)

	account := Account{UserID: "u-1", Username: "ash", Email: "ash@example.com"}
	require.NoError(t, store.Save("opaque-token", account))

	token, ok := store.Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "opaque-token", token)

	got, found, err := store.Account()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, account, got)

	require.NoError(t, store.Clear())
	_, ok = store.Token(ctx)
	assert.False(t, ok)
}

func TestBoltStore_ExpiredTokenIsNone(t *testing.T) {
	store := newTestStore(t)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(signedToken(t, &past), Account{}))

	_, ok := store.Token(context.Background())
	assert.False(t, ok)
}

func TestBoltStore_SaveRejectsEmpty(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.Save("", Account{}))
}

func TestNewBoltStore_NilDB(t *testing.T) {
	_, err := NewBoltStore(nil)
	assert.Error(t, err)
}
