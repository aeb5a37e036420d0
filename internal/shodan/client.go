// Package shodan implements the host lookup client used by the notifier.
package shodan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anstrom/shodan-notifier/internal/errors"
)

const (
	defaultBaseURL = "https://api.shodan.io"
	defaultTimeout = 30 * time.Second

	// Cap on error bodies read into memory.
	maxErrorBody = 64 << 10
)

// Lookup resolves an address to its host record.
type Lookup interface {
	Host(ctx context.Context, ip string) (*Host, error)
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Minify  bool

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is a Shodan REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	minify     bool
	httpClient *http.Client
}

// Ensure Client implements Lookup
var _ Lookup = (*Client)(nil)

// NewClient creates a new Shodan API client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		minify:     cfg.Minify,
		httpClient: httpClient,
	}
}

// Host returns all services that have been found on the given IP.
func (c *Client) Host(ctx context.Context, ip string) (*Host, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return nil, errors.NewLookupError(errors.CodeLookupFailed, "Empty address", ip)
	}

	query := url.Values{}
	query.Set("key", c.apiKey)
	if c.minify {
		query.Set("minify", "true")
	}
	endpoint := fmt.Sprintf("%s/shodan/host/%s?%s", c.baseURL, url.PathEscape(ip), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapLookupError(errors.CodeLookupFailed, "Failed to build request", ip, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapLookupError(errors.CodeCanceled, "Lookup canceled", ip, ctx.Err())
		}
		return nil, errors.WrapLookupError(errors.CodeLookupFailed, "Request failed", ip, redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, ip)
	}

	var host Host
	if err := json.NewDecoder(resp.Body).Decode(&host); err != nil {
		return nil, errors.WrapLookupError(errors.CodeInvalidPayload, "Failed to decode host", ip, err)
	}
	if host.IPStr == "" {
		host.IPStr = ip
	}

	return &host, nil
}

func statusError(resp *http.Response, ip string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := http.StatusText(resp.StatusCode)
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		message = apiErr.Error
	}

	code := errors.CodeLookupFailed
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = errors.CodeUnauthorized
	case http.StatusNotFound:
		code = errors.CodeHostNotFound
	case http.StatusTooManyRequests:
		code = errors.CodeRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		code = errors.CodeServiceUnavailable
	}

	return errors.NewLookupError(code, message, ip).WithStatus(resp.StatusCode)
}

// redactKey keeps the API key out of transport errors, which embed the URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
