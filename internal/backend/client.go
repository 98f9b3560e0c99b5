// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// maxBody bounds how much of a response is read back.
const maxBody = 64 << 10

// UploadRequest is the JSON body of an upload.
type UploadRequest struct {
	FingerprintID   string `json:"FingerprintID"`
	FingerprintData string `json:"FingerprintData"`
}

// Error is a transport-level failure on the backend leg.
// It never reflects sensor state.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("backend %s %s: %v", e.Op, e.URL, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Config is minimal transport config.
type Config struct {
	UploadURL string
	FetchURL  string
	Timeout   time.Duration
}

// Client is the HTTP gateway to the template backend.
// Calls are single attempts; callers log failures and move on.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// New creates a backend client.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.UploadURL == "" {
		return nil, errors.New("backend: upload url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "backend").Logger(),
	}, nil
}

// Upload posts an encoded template keyed by slot id.
// Any HTTP status is returned as-is; only transport failures are errors.
func (c *Client) Upload(ctx context.Context, slotID, encoded string) (int, error) {
	body, err := json.Marshal(UploadRequest{FingerprintID: slotID, FingerprintData: encoded})
	if err != nil {
		return 0, &Error{Op: "upload", URL: c.cfg.UploadURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL, bytes.NewReader(body))
	if err != nil {
		return 0, &Error{Op: "upload", URL: c.cfg.UploadURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	code, payload, err := c.do(req)
	if err != nil {
		return 0, &Error{Op: "upload", URL: c.cfg.UploadURL, Err: err}
	}

	c.log.Info().
		Str("slot", slotID).
		Int("status", code).
		Str("response", payload).
		Msg("template uploaded")
	return code, nil
}

// Fetch returns the raw payload served at the fetch URL.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	if c.cfg.FetchURL == "" {
		return "", &Error{Op: "fetch", Err: errors.New("fetch url not configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.FetchURL, nil)
	if err != nil {
		return "", &Error{Op: "fetch", URL: c.cfg.FetchURL, Err: err}
	}

	code, payload, err := c.do(req)
	if err != nil {
		return "", &Error{Op: "fetch", URL: c.cfg.FetchURL, Err: err}
	}

	c.log.Info().Int("status", code).Int("bytes", len(payload)).Msg("backend payload received")
	return payload, nil
}

func (c *Client) do(req *http.Request) (int, string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(b), nil
}
