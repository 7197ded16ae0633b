package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an [http.Handler].
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the paths it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router registers handlers behind a middleware stack.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// RequestLogger logs every request at debug level with its status and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Listen binds addr and serves h in the background. Serve errors other than a clean shutdown are
// sent on the returned channel.
func Listen(addr string, h http.Handler) (*http.Server, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()
	return srv, errs, nil
}

// Shutdown stops srv, waiting up to five seconds for in-flight requests.
func Shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
