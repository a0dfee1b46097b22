package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds the time servers take to drain their connections.
var ShutdownTimeout = 10 * time.Second

// ListenAndServe runs the given servers until ctx is done.
func ListenAndServe(ctx context.Context, servers ...*http.Server) {
	var g errgroup.Group

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logs.Warn(errors.New("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
		return nil
	})

	for _, s := range servers {
		s := s
		g.Go(func() error {
			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")

			default:
				logs.Warn(errors.New("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
			return nil
		})
	}

	g.Wait()
}

// MetricsPathFormatter drops the path of requests that did not match a route
// and replaces object GUIDs with a placeholder.
func MetricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}

	segments := strings.Split(path, "/")
	for i, s := range segments {
		if _, err := uuid.Parse(s); err == nil {
			segments[i] = "{guid}"
		}
	}
	return strings.Join(segments, "/")
}
