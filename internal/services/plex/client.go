package plex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/amaumene/plexschedule/internal/config"
	"github.com/amaumene/plexschedule/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	product    = "plexschedule"
	version    = "1.0"
	maxRetries = 3
)

// APIError is returned when the Plex server answers with a non-2xx status
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plex %s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client talks to a single Plex Media Server
type Client struct {
	baseURL    string
	token      string
	clientID   string
	dryRun     bool
	httpClient *http.Client
	cache      *cache.Cache
	newBackOff func() backoff.BackOff
	logger     *logrus.Logger
}

// NewClient creates a new Plex API client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if err := cfg.ValidatePlex(); err != nil {
		return nil, err
	}
	if _, err := url.Parse(cfg.PlexBaseURL); err != nil {
		return nil, fmt.Errorf("invalid plex URL: %w", err)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.PlexBaseURL, "/"),
		token:    cfg.PlexToken,
		clientID: uuid.New().String(),
		dryRun:   cfg.DryRun,
		httpClient: &http.Client{
			Timeout: cfg.CallTimeout,
		},
		cache: cache.New(10*time.Minute, 20*time.Minute),
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
		},
		logger: logger,
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", product)
	req.Header.Set("X-Plex-Version", version)
	req.Header.Set("X-Plex-Platform", runtime.GOOS)
	req.Header.Set("X-Plex-Device-Name", product)
}

// doRequest performs a single request against the Plex server and decodes
// the JSON response into result when it is not nil
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, result interface{}) error {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"params": params.Encode(),
	}).Debug("Making Plex API request")

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", models.ErrNotFound, apiErr)
		}
		return apiErr
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// get performs a read-only request, retrying transient failures.
// Client errors (4xx) and cancellation are not retried.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	operation := func() error {
		err := c.doRequest(ctx, http.MethodGet, path, params, result)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"path": path,
			"wait": wait,
		}).Warn("Plex request failed, retrying")
	}

	return backoff.RetryNotify(operation, backoff.WithContext(c.newBackOff(), ctx), notify)
}
