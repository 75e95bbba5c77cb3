package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"autopost/internal/media"
	"autopost/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultListLimit   = 200

	// Listing is projected down to the fields the pipeline consumes.
	listFields = "items.name,items.path,items.md5,items.size,items.created"
)

// Config captures the runtime settings for the remote disk storage API.
type Config struct {
	BaseURL        string
	Token          string
	RequestTimeout int
	ListLimit      int
}

// Client talks to a Yandex Disk style REST API.
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

// NewClient constructs a storage client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Token:          strings.TrimSpace(cfg.Token),
			RequestTimeout: cfg.RequestTimeout,
			ListLimit:      cfg.ListLimit,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://cloud-api.yandex.net/v1/disk"
	}
	if client.cfg.ListLimit <= 0 {
		client.cfg.ListLimit = defaultListLimit
	}
	return client
}

type listResponse struct {
	Items []struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		MD5     string `json:"md5"`
		Size    int64  `json:"size"`
		Created string `json:"created"`
	} `json:"items"`
}

type linkResponse struct {
	Href string `json:"href"`
}

type apiError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	ErrorCode   string `json:"error"`
}

// ListFiles walks the account's flat video listing page by page and returns
// every item. The listing covers the whole disk; classification decides what
// is schedulable.
func (c *Client) ListFiles(ctx context.Context) ([]media.Item, error) {
	var items []media.Item
	for offset := 0; ; offset += c.cfg.ListLimit {
		page, err := c.listPage(ctx, c.cfg.ListLimit, offset)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if len(page) < c.cfg.ListLimit {
			return items, nil
		}
	}
}

func (c *Client) listPage(ctx context.Context, limit, offset int) ([]media.Item, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("media_type", "video")
	query.Set("fields", listFields)

	var parsed listResponse
	if err := c.getJSON(ctx, "/resources/files", query, &parsed); err != nil {
		return nil, services.Wrap(classifyStatus(err), "storage", "list", "", err)
	}

	items := make([]media.Item, 0, len(parsed.Items))
	for _, raw := range parsed.Items {
		item := media.Item{
			Name:      raw.Name,
			Path:      raw.Path,
			MD5:       raw.MD5,
			SizeBytes: raw.Size,
		}
		if created, err := time.Parse(time.RFC3339, raw.Created); err == nil {
			item.CreatedAt = created
		}
		items = append(items, item)
	}
	return items, nil
}

// GetDownloadLink resolves a storage locator into a short-lived direct URL.
func (c *Client) GetDownloadLink(ctx context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", services.Wrap(services.ErrConfiguration, "storage", "download-link", "path required", nil)
	}
	query := url.Values{}
	query.Set("path", path)

	var parsed linkResponse
	if err := c.getJSON(ctx, "/resources/download", query, &parsed); err != nil {
		return "", services.Wrap(classifyStatus(err), "storage", "download-link", path, err)
	}
	if parsed.Href == "" {
		return "", services.Wrap(services.ErrUpstream, "storage", "download-link", "empty href for "+path, nil)
	}
	return parsed.Href, nil
}

// DeleteFile permanently removes a file. Deleting an already-missing file is
// treated as success so cleanup stays idempotent.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(services.ErrConfiguration, "storage", "delete", "path required", nil)
	}
	query := url.Values{}
	query.Set("path", path)
	query.Set("permanently", "true")

	req, err := c.newRequest(ctx, http.MethodDelete, "/resources", query)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "delete", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		err := c.statusError(resp)
		return services.Wrap(classifyStatus(err), "storage", "delete", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, target any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection level failures are worth a retry upstream.
		return fmt.Errorf("%w: %w", errTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return c.statusError(resp)
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

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values) (*http.Request, error) {
	if c.cfg.Token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "request", "token required", nil)
	}
	target := c.cfg.BaseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("storage request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+c.cfg.Token)
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

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(body))
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			message = parsed.Message
		} else if parsed.Description != "" {
			message = parsed.Description
		}
	}
	return &httpStatusError{StatusCode: resp.StatusCode, Message: message}
}

// classifyStatus decides which sentinel an upstream failure maps to:
// rate limiting, server errors, and transport failures are transient;
// a 404 is ErrNotFound; everything else is a hard upstream rejection.
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
