package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/anstrom/shodan-notifier/internal/errors"
	"github.com/anstrom/shodan-notifier/internal/report"
)

const (
	defaultSlackURL     = "https://slack.com/api"
	defaultSlackTimeout = 30 * time.Second
)

// SlackConfig holds Slack Web API settings.
type SlackConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// HTTPClient is used as the transport base, mainly for tests.
	HTTPClient *http.Client
}

// Slack uploads reports as files through the external upload flow:
// reserve an upload URL, send the content, then share the file.
type Slack struct {
	baseURL string
	client  *http.Client
}

// Ensure Slack implements Publisher
var _ Publisher = (*Slack)(nil)

// NewSlack creates a Slack publisher presenting cfg.Token as a bearer token.
func NewSlack(cfg SlackConfig) *Slack {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultSlackURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSlackTimeout
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	}))
	client.Timeout = timeout

	return &Slack{baseURL: baseURL, client: client}
}

// Name implements Publisher.
func (s *Slack) Name() string { return ProviderSlack }

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type uploadURLResponse struct {
	slackResponse
	UploadURL string `json:"upload_url"`
	FileID    string `json:"file_id"`
}

type completeFile struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Publish uploads doc.Body as a file shared to channel.
func (s *Slack) Publish(ctx context.Context, channel string, doc report.Document) error {
	content := []byte(doc.Body)

	filename := doc.Filename
	if filename == "" {
		filename = doc.Title + ".txt"
	}

	var reserved uploadURLResponse
	if err := s.call(ctx, "files.getUploadURLExternal", url.Values{
		"filename": {filename},
		"length":   {strconv.Itoa(len(content))},
	}, &reserved); err != nil {
		return err
	}

	if err := s.upload(ctx, reserved.UploadURL, filename, content); err != nil {
		return err
	}

	files, err := json.Marshal([]completeFile{{ID: reserved.FileID, Title: doc.Title}})
	if err != nil {
		return errors.WrapPublishError(ProviderSlack, err)
	}

	var done slackResponse
	return s.call(ctx, "files.completeUploadExternal", url.Values{
		"files":      {string(files)},
		"channel_id": {channel},
	}, &done)
}

type okResponse interface {
	result() slackResponse
}

func (r slackResponse) result() slackResponse { return r }

// call posts a form encoded Web API method and decodes the reply into out.
func (s *Slack) call(ctx context.Context, method string, form url.Values, out okResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+method,
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.WrapPublishError(ProviderSlack, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.WrapPublishError(ProviderSlack, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewPublishError(ProviderSlack, fmt.Sprintf("%s: HTTP %d", method, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WrapPublishError(ProviderSlack, fmt.Errorf("%s: decode response: %w", method, err))
	}

	if r := out.result(); !r.OK {
		msg := r.Error
		if msg == "" {
			msg = "unknown_error"
		}
		return errors.NewPublishError(ProviderSlack, msg)
	}
	return nil
}

func (s *Slack) upload(ctx context.Context, uploadURL, filename string, content []byte) error {
	if uploadURL == "" {
		return errors.NewPublishError(ProviderSlack, "missing upload_url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(content))
	if err != nil {
		return errors.WrapPublishError(ProviderSlack, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("X-Filename", filename)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.WrapPublishError(ProviderSlack, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.NewPublishError(ProviderSlack, fmt.Sprintf("upload: HTTP %d", resp.StatusCode))
	}
	return nil
}
