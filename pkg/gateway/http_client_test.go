package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.Error(t, err)

	_, err = NewClient("://bad")
	assert.Error(t, err)

	c, err := NewClient("https://api.example.com/v1/")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", c.baseURL)
}

func TestClient_Upload(t *testing.T) {
	var got uploadRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/archive/upload", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"archiveId":"arc-1","message":"stored"}`))
	})

	meta := map[string]string{MetaCategory: "auto-upload"}
	receipt, err := c.Upload(context.Background(), "tok", []byte("hello"), "a.jpg", meta)
	require.NoError(t, err)

	assert.Equal(t, "arc-1", receipt.RemoteID)
	assert.Equal(t, "stored", receipt.Message)
	assert.Equal(t, "a.jpg", got.FileName)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), got.FileContent)
	assert.Equal(t, meta, got.Metadata)
}

func TestClient_UploadBearerNotDoubled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"archiveId":"arc-1"}`))
	})

	_, err := c.Upload(context.Background(), "Bearer tok", nil, "a.jpg", nil)
	require.NoError(t, err)
}

func TestClient_UploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		wantIs   error
		wantCode int
	}{
		{name: "unauthorized", status: 401, body: "nope", wantMsg: "Authentication failed", wantIs: ErrUnauthorized, wantCode: 401},
		{name: "too_large", status: 413, wantMsg: "File too large for server", wantIs: ErrTooLarge, wantCode: 413},
		{name: "server_error", status: 500, body: "boom", wantMsg: "Upload failed (500): boom", wantCode: 500},
		{name: "empty_body", status: 200, body: "", wantMsg: "Empty response from server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Upload(context.Background(), "tok", []byte("x"), "a.jpg", nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Equal(t, tt.wantCode, StatusCode(err))
			assert.False(t, IsTransport(err))
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), "tok", []byte("x"), "a.jpg", nil)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, StatusCode(err))
	assert.Contains(t, err.Error(), "Network error: ")
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestClient_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/archive/list", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "next-1", r.URL.Query().Get("continuationToken"))
		w.Write([]byte(`{"archives":[{"archiveId":"a1","fileName":"x.jpg","fileSize":12,"status":"ARCHIVED"}],"continuationToken":"next-2","hasMore":true}`))
	})

	res, err := c.List(context.Background(), "tok", 10, "next-1")
	require.NoError(t, err)
	require.Len(t, res.Archives, 1)
	assert.Equal(t, "a1", res.Archives[0].ArchiveID)
	assert.Equal(t, int64(12), res.Archives[0].FileSize)
	assert.Equal(t, "next-2", res.ContinuationToken)
	assert.True(t, res.HasMore)
}

func TestClient_Delete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/archive/a1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Delete(context.Background(), "tok", "a1"))
	assert.Error(t, c.Delete(context.Background(), "tok", ""))
}

func TestClient_Login(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "ok", body: `{"success":true,"token":"jwt","user":{"userId":"u1","username":"ash","email":"a@b.c"}}`},
		{name: "rejected", body: `{"success":false,"error":"Invalid credentials"}`, wantErr: "Invalid credentials"},
		{name: "no_user", body: `{"success":true,"token":"jwt"}`, wantErr: "Login failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth", r.URL.Path)
				assert.Empty(t, r.Header.Get("Authorization"))
				var req authRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "login", req.Action)
				assert.Equal(t, "ash", req.Username)
				w.Write([]byte(tt.body))
			})

			res, err := c.Login(context.Background(), "ash", "pw")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "jwt", res.Token)
			assert.Equal(t, "u1", res.User.UserID)
		})
	}
}
