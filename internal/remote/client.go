// Package remote implements the HTTP clients for the NoghreSod API, the
// authoritative source all local data syncs from. Requests carry a bearer
// token when one is stored; a 401 response clears the stored tokens as a side
// effect and is surfaced as an Unauthorized taxonomy error.
package remote

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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/auth"
)

const maxBodyBytes = 8 << 20

// TokenSource provides the bearer token for outgoing requests. auth.Store
// satisfies it.
type TokenSource interface {
	Current(ctx context.Context) (*auth.Tokens, error)
	Invalidate(ctx context.Context) error
}

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	log    *logrus.Entry
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, log *logrus.Entry) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		log:    log,
	}, nil
}

// Do performs a request against the versioned base path. Transport failures
// come back already classified; HTTP error statuses are left to the caller
// (DoJSON maps them).
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		tokens, err := c.tokens.Current(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tokens: %w", err)
		}
		if tokens != nil && tokens.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.FromTransport(err)
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
		// Token invalidation is a side effect of interception; there is no
		// retry and no automatic re-authentication.
		if invErr := c.tokens.Invalidate(ctx); invErr != nil {
			c.log.WithError(invErr).Warn("failed to clear tokens after 401")
		} else {
			c.log.Warn("cleared stored tokens after 401")
		}
	}

	return resp, nil
}

// DoJSON performs the request and decodes a JSON response into target.
// Statuses >= 400 are mapped to the error taxonomy. A 2xx with an empty body
// is an error carrying the original status code when a target is expected;
// with a nil target the body is discarded (204-style responses).
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, body, target any) error {
	resp, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperr.FromTransport(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return emptyBodyError(resp.StatusCode)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperr.Wrap(apperr.Unknown, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
