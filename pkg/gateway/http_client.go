package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single archive API call.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of an error response ends up in a message.
const maxErrorBody = 4 << 10

// ArchiveItem is one entry of the archive listing.
type ArchiveItem struct {
	ArchiveID       string            `json:"archiveId"`
	FileName        string            `json:"fileName"`
	FileSize        int64             `json:"fileSize"`
	UploadTimestamp string            `json:"uploadTimestamp"`
	Status          string            `json:"status"`
	FileType        string            `json:"fileType"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ListResult is a page of the archive listing.
type ListResult struct {
	Archives          []ArchiveItem `json:"archives"`
	ContinuationToken string        `json:"continuationToken,omitempty"`
	HasMore           bool          `json:"hasMore"`
}

// User is the account returned by a successful login.
type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResult is the body of the auth endpoint.
type LoginResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type uploadRequest struct {
	FileName    string            `json:"fileName"`
	FileContent string            `json:"fileContent"`
	Metadata    map[string]string `json:"metadata"`
}

type authRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *logrus.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the archive HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates an archive API client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Upload sends the file as base64 JSON to archive/upload.
func (c *Client) Upload(ctx context.Context, token string, content []byte, fileName string, metadata map[string]string) (*Receipt, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	body, err := json.Marshal(uploadRequest{
		FileName:    fileName,
		FileContent: base64.StdEncoding.EncodeToString(content),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding upload request: %w", err)
	}

	var receipt Receipt
	if err := c.do(ctx, "Upload", http.MethodPost, "/archive/upload", token, body, &receipt); err != nil {
		return nil, err
	}
	if receipt.RemoteID == "" {
		return nil, errors.New("Empty response from server")
	}
	return &receipt, nil
}

// List returns one page of archived items. An empty continuation token asks
// for the first page.
func (c *Client) List(ctx context.Context, token string, limit int, continuationToken string) (*ListResult, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if continuationToken != "" {
		q.Set("continuationToken", continuationToken)
	}
	path := "/archive/list"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result ListResult
	if err := c.do(ctx, "List", http.MethodGet, path, token, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes an archived item.
func (c *Client) Delete(ctx context.Context, token string, archiveID string) error {
	if archiveID == "" {
		return errors.New("archive id cannot be empty")
	}
	return c.do(ctx, "Delete", http.MethodDelete, "/archive/"+url.PathEscape(archiveID), token, nil, nil)
}

// Login exchanges a username and password for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body, err := json.Marshal(authRequest{Action: "login", Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	var result LoginResult
	if err := c.do(ctx, "Login", http.MethodPost, "/auth", "", body, &result); err != nil {
		return nil, err
	}
	if !result.Success || result.Token == "" || result.User == nil {
		msg := result.Error
		if msg == "" {
			msg = "Login failed"
		}
		return nil, errors.New(msg)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", strings.ToLower(op), err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", bearer(token))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"op":         op,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"duration":   time.Since(start),
	}).Debug("Archive API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(op, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("Empty response from server")
		}
		return fmt.Errorf("decoding %s response: %w", strings.ToLower(op), err)
	}
	return nil
}

func bearer(token string) string {
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}
