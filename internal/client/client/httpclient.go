package client

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

	"github.com/dmitrijs2005/kopeck/internal/client/models"
)

// HTTPClient implements Client against the PostgREST-style sync backend.
// Data rows live under /rest/v1/<table>, auth under /auth/v1.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tokens  TokenSource
}

// NewHTTPClient returns a client for the backend at baseURL. The apiKey is
// sent with every request; timeout bounds each call end to end.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetTokenSource installs the supplier of access tokens for authenticated calls.
func (c *HTTPClient) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// sessionResponse is the token-endpoint payload shape.
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (r *sessionResponse) session(now time.Time) *models.Session {
	return &models.Session{
		UserID:       r.User.ID,
		Email:        r.User.Email,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(r.ExpiresIn) * time.Second),
	}
}

// Login exchanges credentials for a session.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", false, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.session(time.Now()), nil
}

// Refresh exchanges a refresh token for a new session.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", false, nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.session(time.Now()), nil
}

// Ping probes backend reachability.
func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/v1/health", false, nil, nil, nil)
}

// QueryChanges returns rows of a table with sync_token greater than
// afterToken, ascending.
func (c *HTTPClient) QueryChanges(ctx context.Context, table models.Table, afterToken int64) ([]json.RawMessage, error) {
	if !models.Known(table) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	path := fmt.Sprintf("/rest/v1/%s?select=*&sync_token=gt.%d&order=sync_token.asc",
		url.PathEscape(string(table)), afterToken)

	var rows []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, true, nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert pushes a batch of rows to a table, merging by id.
func (c *HTTPClient) Upsert(ctx context.Context, table models.Table, rows []json.RawMessage) error {
	if !models.Known(table) {
		return fmt.Errorf("%w: %s", models.ErrUnknownTable, table)
	}
	if len(rows) == 0 {
		return nil
	}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	path := "/rest/v1/" + url.PathEscape(string(table))
	return c.do(ctx, http.MethodPost, path, true, headers, rows, nil)
}

// do runs one request and decodes the JSON response into out when non-nil.
// withAuth attaches the access token from the TokenSource.
func (c *HTTPClient) do(ctx context.Context, method, path string, withAuth bool, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if withAuth {
		if c.tokens == nil {
			return ErrUnauthorized
		}
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to get access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Keep the transport cause in the chain; callers match the sentinel.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code >= 500:
		return ErrUnavailable
	default:
		return fmt.Errorf("unexpected status: %d", code)
	}
}
