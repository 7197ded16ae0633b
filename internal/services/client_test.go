package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/pmx/internal/shared"
	tu "github.com/desertthunder/pmx/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingAuth struct{}

func (failingAuth) Apply(*http.Request) error { return errors.New("no token") }

func getter(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestAPIClientRetries(t *testing.T) {
	tc := []struct {
		name      string
		statuses  []int
		creates   bool
		wantCalls int32
		wantErr   bool
	}{
		{name: "success", statuses: []int{200}, wantCalls: 1},
		{name: "retry on 503", statuses: []int{503, 200}, wantCalls: 2},
		{name: "retry on 429 until exhausted", statuses: []int{429, 429, 429}, wantCalls: 3, wantErr: true},
		{name: "no retry on 404", statuses: []int{404, 200}, wantCalls: 1, wantErr: true},
		{name: "no retry on 500", statuses: []int{500, 200}, wantCalls: 1, wantErr: true},
		{name: "create is not retried on 504", statuses: []int{504, 200}, creates: true, wantCalls: 1, wantErr: true},
		{name: "create is retried on 429", statuses: []int{429, 200}, creates: true, wantCalls: 2},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[n-1])
			}))
			defer server.Close()

			client := newAPIClient(server.Client(), 1000, nil)
			client.backoff = 0

			_, err := client.do(context.Background(), callOpts{authorize: true, creates: tt.creates}, getter(server.URL))
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrStatus)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAPIClientErrors(t *testing.T) {
	t.Run("authorizer failure", func(t *testing.T) {
		client := newAPIClient(nil, 1000, failingAuth{})
		_, err := client.do(context.Background(), callOpts{authorize: true}, getter("http://127.0.0.1:1"))
		assert.EqualError(t, err, "no token")
	})

	t.Run("transport failure", func(t *testing.T) {
		httpClient := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))}
		client := newAPIClient(httpClient, 1000, nil)
		_, err := client.do(context.Background(), callOpts{}, getter("http://example.com"))
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("body read failure", func(t *testing.T) {
		resp := &http.Response{StatusCode: 200, Body: &tu.FCloser{}, Header: http.Header{}}
		httpClient := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
		client := newAPIClient(httpClient, 1000, nil)
		_, err := client.do(context.Background(), callOpts{}, getter("http://example.com"))
		assert.ErrorIs(t, err, shared.ErrAPIRequest)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := newAPIClient(nil, 1000, nil)
		_, err := client.do(ctx, callOpts{}, getter("http://example.com"))
		require.Error(t, err)
	})
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{StatusCode: 429, Body: "slow down"}
	assert.True(t, err.IsRateLimited())
	assert.Equal(t, "status 429: slow down", err.Error())
	assert.ErrorIs(t, err, shared.ErrStatus)
	assert.Equal(t, "status 500", (&HTTPError{StatusCode: 500}).Error())
}
