// Package client is the typed HTTP client for the menuboard API. Every
// request carries the caller's ID token as a bearer credential.
package client

import (
	"bytes"
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

	"go.uber.org/zap"

	"github.com/example/menuboard/pkg/apitypes"
)

// ErrUnauthorized is returned for 401 responses. Requests are not retried.
var ErrUnauthorized = errors.New("client: unauthorized")

// APIError is any other non-2xx response.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	return 0
}

// TokenSource yields the current ID token. identity.Provider satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL        *url.URL
	tokens         TokenSource
	httpClient     *http.Client
	logger         *zap.Logger
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithUnauthorizedHandler registers fn to run whenever the API answers 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(cl *Client) { cl.onUnauthorized = fn }
}

// New creates a client for the API rooted at baseURL (e.g.
// "http://localhost:8080/api/v1").
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base URL %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:    u,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetUnauthorizedHandler replaces the 401 hook after construction.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// Me returns the caller's snapshot, creating the user record on first call.
func (c *Client) Me(ctx context.Context) (*apitypes.Snapshot, error) {
	var snap apitypes.Snapshot
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetupRestaurant runs the onboarding wizard's final step.
func (c *Client) SetupRestaurant(ctx context.Context, req apitypes.SetupRestaurantRequest) (*apitypes.Restaurant, error) {
	var r apitypes.Restaurant
	if err := c.do(ctx, http.MethodPost, "/restaurants", nil, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) RegenerateQRCode(ctx context.Context) (*apitypes.QRCodeResponse, error) {
	var qr apitypes.QRCodeResponse
	if err := c.do(ctx, http.MethodPost, "/restaurants/me/qrcode", nil, nil, &qr); err != nil {
		return nil, err
	}
	return &qr, nil
}

func (c *Client) ListFeedback(ctx context.Context, page, limit int) (*apitypes.FeedbackPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var fp apitypes.FeedbackPage
	if err := c.do(ctx, http.MethodGet, "/feedback", q, nil, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}

// ListUsers requires an admin caller.
func (c *Client) ListUsers(ctx context.Context) ([]apitypes.User, error) {
	var users []apitypes.User
	if err := c.do(ctx, http.MethodGet, "/admin/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetSubscription(ctx context.Context) (*apitypes.Subscription, error) {
	var sub apitypes.Subscription
	if err := c.do(ctx, http.MethodGet, "/subscription", nil, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("client: obtain ID token: %w", err)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("API response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var er apitypes.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: er.Error, Details: er.Details}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s response: %w", method, path, err)
	}
	return nil
}
