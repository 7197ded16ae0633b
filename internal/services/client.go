package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/pmx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit  = 10.0
	defaultMaxRetries = 2
	userAgent         = "pmx/1.0"
)

// Authorizer adds credentials to an outgoing request.
type Authorizer interface {
	Apply(req *http.Request) error
}

// NoAuth leaves requests untouched.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) error { return nil }

// TokenSourceAuth sets a bearer token obtained from an [oauth2.TokenSource], refreshing it as needed.
type TokenSourceAuth struct {
	Source oauth2.TokenSource
}

func (a TokenSourceAuth) Apply(req *http.Request) error {
	token, err := a.Source.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}
	token.SetAuthHeader(req)
	return nil
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return shared.ErrStatus }

// IsRateLimited reports a 429 response.
func (e *HTTPError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// retryable reports whether the request may be sent again. A gateway error on a request that
// creates something may arrive after the server committed it, so only 429 is retried for those.
func (e *HTTPError) retryable(creates bool) bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return !creates
	}
	return false
}

// callOpts describes how a request is sent.
type callOpts struct {
	authorize bool
	creates   bool
}

type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   *url.URL
}

// signingClient is implemented by authorizers that sign in a transport rather than in Apply.
type signingClient interface {
	Client(base *http.Client) *http.Client
}

// apiClient is a rate-limited HTTP client that authorizes and retries requests.
type apiClient struct {
	httpClient *http.Client
	authClient *http.Client
	limiter    *rate.Limiter
	auth       Authorizer
	maxRetries int
	backoff    time.Duration
}

func newAPIClient(httpClient *http.Client, rateLimit float64, auth Authorizer) *apiClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}
	if auth == nil {
		auth = NoAuth{}
	}
	authClient := httpClient
	if signer, ok := auth.(signingClient); ok {
		authClient = signer.Client(httpClient)
	}
	return &apiClient{
		httpClient: httpClient,
		authClient: authClient,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
		auth:       auth,
		maxRetries: defaultMaxRetries,
		backoff:    250 * time.Millisecond,
	}
}

// do builds a fresh request per attempt with build, waits on the limiter, authorizes it when
// opts.authorize is set, and returns the response of the first attempt that is not retryable.
func (c *apiClient) do(ctx context.Context, opts callOpts, build func(ctx context.Context) (*http.Request, error)) (*response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * c.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := c.once(ctx, opts.authorize, build)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.retryable(opts.creates) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (c *apiClient) once(ctx context.Context, authorize bool, build func(ctx context.Context) (*http.Request, error)) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	client := c.httpClient
	if authorize {
		if err := c.auth.Apply(req); err != nil {
			return nil, err
		}
		client = c.authClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	return &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		FinalURL:   resp.Request.URL,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
