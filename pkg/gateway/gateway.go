// Package gateway sends files to the archive. The HTTP backend talks to the
// archive API; the S3 and GCS backends write objects straight to a bucket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Metadata keys attached to every auto-upload.
const (
	MetaDescription  = "description"
	MetaCategory     = "category"
	MetaOriginalPath = "originalPath"
)

// Backend names accepted by configuration.
const (
	BackendHTTP = "http"
	BackendS3   = "s3"
	BackendGCS  = "gcs"
)

// Gateway uploads one file and returns the archive receipt.
type Gateway interface {
	Upload(ctx context.Context, token string, content []byte, fileName string, metadata map[string]string) (*Receipt, error)
}

// Receipt is the successful result of an upload.
type Receipt struct {
	RemoteID string `json:"archiveId"`
	Message  string `json:"message"`
}

var (
	ErrUnauthorized = errors.New("authentication failed")
	ErrTooLarge     = errors.New("file too large for server")
)

// StatusError is returned when the remote side answered with a non-success
// status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

// Is lets errors.Is match ErrUnauthorized and ErrTooLarge by status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrTooLarge:
		return e.StatusCode == http.StatusRequestEntityTooLarge
	}
	return false
}

// TransportError wraps failures that happened before any response arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Network error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err never reached the server.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode extracts the remote status from err, or 0 when there is none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// statusError builds the error for a non-2xx response of op.
func statusError(op string, code int, body string) *StatusError {
	switch code {
	case http.StatusUnauthorized:
		return &StatusError{StatusCode: code, Message: "Authentication failed"}
	case http.StatusRequestEntityTooLarge:
		return &StatusError{StatusCode: code, Message: "File too large for server"}
	}
	if body == "" {
		body = http.StatusText(code)
	}
	return &StatusError{StatusCode: code, Message: fmt.Sprintf("%s failed (%d): %s", op, code, body)}
}
