package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const itemsPath = "/items"

// TokenSource supplies the bearer token for a request. stockroom.SessionStore
// implements it.
type TokenSource interface {
	BearerToken(ctx context.Context) (string, bool)
}

// Recorder observes every request the client issues. Status is 0 when the
// request never got a response.
type Recorder interface {
	ObserveRequest(method, path string, status int, duration time.Duration)
}

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Option customizes the Client.
type Option func(*Client)

// WithHTTPClient overrides the http.Client, e.g. to set a timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// WithRequestIDFunc overrides the X-Request-ID generator.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

// Client talks to the inventory REST API.
type Client struct {
	endpoint  string
	tokens    TokenSource
	http      *http.Client
	logger    Logger
	recorder  Recorder
	requestID func() string
	now       func() time.Time
}

// NewClient creates a client for endpoint. tokens may be nil, in which case
// every request is anonymous.
func NewClient(endpoint string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		endpoint:  strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		tokens:    tokens,
		http:      http.DefaultClient,
		logger:    defLogger{},
		requestID: uuid.NewString,
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// List returns every item. Unknown response shapes are logged and yield an
// empty slice.
func (c *Client) List(ctx context.Context) ([]Item, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, nil, nil, &raw); err != nil {
		return nil, err
	}

	items, err := NormalizeItems(raw)
	if err != nil {
		if IsMalformedResponse(err) {
			c.logger.Warn("fetched items data is not in an expected format: %s", truncate(raw, 256))
			return []Item{}, nil
		}
		return nil, err
	}
	return items, nil
}

func (c *Client) Get(ctx context.Context, itemID string) (*Item, error) {
	if err := validateID(itemID); err != nil {
		return nil, err
	}

	item := &Item{}
	if err := c.do(ctx, http.MethodGet, idQuery(itemID), nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) Create(ctx context.Context, input ItemInput) (*Item, error) {
	if err := input.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid item")
	}

	item := &Item{}
	if err := c.do(ctx, http.MethodPost, nil, input, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) Update(ctx context.Context, patch ItemPatch) (*Item, error) {
	if err := patch.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid item update")
	}

	item := &Item{}
	if err := c.do(ctx, http.MethodPut, nil, patch, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) Delete(ctx context.Context, itemID string) (*DeleteResult, error) {
	if err := validateID(itemID); err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	if err := c.do(ctx, http.MethodDelete, idQuery(itemID), nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method string, query url.Values, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
		}
		body = bytes.NewReader(raw)
	}

	target := c.endpoint + itemsPath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to build request")
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", c.requestID())

	if c.tokens != nil {
		if token, ok := c.tokens.BearerToken(ctx); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		c.logger.Error("%s %s: %v", method, itemsPath, err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, fmt.Sprintf("%s %s failed", method, itemsPath))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.observe(method, resp.StatusCode, start)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestFailedError{
			Status:  resp.StatusCode,
			Message: errorMessage(raw, resp.StatusCode),
			Method:  method,
			Path:    itemsPath,
		}
		c.logger.Error("%s %s: status %d: %s", method, itemsPath, reqErr.Status, reqErr.Message)
		return reqErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid json response").
			WithMetadata(map[string]any{
				"method": method,
				"status": resp.StatusCode,
			})
	}
	return nil
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveRequest(method, itemsPath, status, c.now().Sub(start))
}

func errorMessage(raw []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fallbackMessage(status)
}

func idQuery(itemID string) url.Values {
	return url.Values{"itemId": []string{itemID}}
}

func validateID(itemID string) error {
	if err := validation.Validate(itemID, validation.Required); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "item id is required")
	}
	return nil
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}

type defLogger struct{}

func (defLogger) Debug(format string, args ...any) {}

func (defLogger) Info(format string, args ...any) {}

func (defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] INVENTORY "+format+"\n", args...)
}

func (defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] INVENTORY "+format+"\n", args...)
}
