package uploadpost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autopost/internal/platform"
	"autopost/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// Config captures the runtime settings for the publishing API.
type Config struct {
	APIKey         string
	BaseURL        string
	RequestTimeout int
}

// Client talks to the upload-post publishing API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a publisher client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			RequestTimeout: cfg.RequestTimeout,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.upload-post.com/api"
	}
	return client
}

// Ack is the publisher's acknowledgement of an accepted upload.
type Ack struct {
	JobID     string
	Scheduled bool
}

// Job is a pending scheduled upload already accepted by the publisher.
type Job struct {
	ID          string
	Profile     string
	Platform    string
	ScheduledAt time.Time
}

// Publish submits one platform upload built by the platform's strategy.
func (c *Client) Publish(ctx context.Context, req platform.Request, p platform.Platform) (Ack, error) {
	strategy, ok := platform.StrategyFor(p)
	if !ok {
		return Ack{}, services.Wrap(services.ErrConfiguration, "publisher", "upload", "unknown platform "+string(p), nil)
	}

	form := url.Values{}
	for key, value := range strategy.BuildRequest(req) {
		form.Set(key, value)
	}

	var parsed struct {
		Success   bool   `json:"success"`
		JobID     string `json:"job_id"`
		Scheduled bool   `json:"scheduled"`
		Message   string `json:"message"`
	}
	if err := c.postForm(ctx, "/upload", form, &parsed); err != nil {
		return Ack{}, services.Wrap(classifyStatus(err), "publisher", "upload", string(p), err)
	}
	if !parsed.Success {
		return Ack{}, services.Wrap(services.ErrUpstream, "publisher", "upload", parsed.Message, nil)
	}
	return Ack{JobID: parsed.JobID, Scheduled: parsed.Scheduled}, nil
}

// PendingJobs lists uploads the publisher has accepted but not yet posted.
// The allocator treats their scheduled times as occupied slots.
func (c *Client) PendingJobs(ctx context.Context) ([]Job, error) {
	var parsed struct {
		Jobs []struct {
			JobID         string `json:"job_id"`
			User          string `json:"user"`
			Platform      string `json:"platform"`
			ScheduledDate string `json:"scheduled_date"`
		} `json:"jobs"`
	}
	if err := c.getJSON(ctx, "/uploadposts/scheduled", &parsed); err != nil {
		return nil, services.Wrap(classifyStatus(err), "publisher", "pending-jobs", "", err)
	}

	jobs := make([]Job, 0, len(parsed.Jobs))
	for _, raw := range parsed.Jobs {
		job := Job{ID: raw.JobID, Profile: raw.User, Platform: raw.Platform}
		if at, err := time.Parse(time.RFC3339, raw.ScheduledDate); err == nil {
			job.ScheduledAt = at
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// CancelJob withdraws a pending scheduled upload.
func (c *Client) CancelJob(ctx context.Context, jobID string) (bool, error) {
	if strings.TrimSpace(jobID) == "" {
		return false, services.Wrap(services.ErrConfiguration, "publisher", "cancel", "job id required", nil)
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/uploadposts/scheduled/"+url.PathEscape(jobID), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "publisher", "cancel", jobID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= http.StatusMultipleChoices:
		err := statusError(resp)
		return false, services.Wrap(classifyStatus(err), "publisher", "cancel", jobID, err)
	}
	return true, nil
}

// Profiles lists the account handles registered with the publisher.
func (c *Client) Profiles(ctx context.Context) ([]string, error) {
	var parsed struct {
		Profiles []struct {
			Username string `json:"username"`
		} `json:"profiles"`
	}
	if err := c.getJSON(ctx, "/uploadposts/users", &parsed); err != nil {
		return nil, services.Wrap(classifyStatus(err), "publisher", "profiles", "", err)
	}
	handles := make([]string, 0, len(parsed.Profiles))
	for _, p := range parsed.Profiles {
		handles = append(handles, p.Username)
	}
	return handles, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, target any) error {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, target)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", errTransportFailure, err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publisher", "request", "api key required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("publisher request: %w", err)
	}
	req.Header.Set("Authorization", "Apikey "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type httpStatusError struct {
	StatusCode int
	Message    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

var errTransportFailure = errors.New("transport failure")

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
	}
	return &httpStatusError{StatusCode: resp.StatusCode, Message: message}
}

func classifyStatus(err error) error {
	if errors.Is(err, errTransportFailure) {
		return services.ErrTransient
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return services.ErrNotFound
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return services.ErrTransient
		}
	}
	return services.ErrUpstream
}
