// Package web is the HTTP front door: it turns form POSTs into relayed
// submissions and serves the static pages around the form.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/formrelay/internal/core/config"
	"github.com/hay-kot/formrelay/internal/core/submission"
	"github.com/hay-kot/formrelay/internal/telemetry"
)

// Relay forwards a submission to the receiver.
type Relay interface {
	Send(ctx context.Context, sub submission.Submission) error
}

// Options configures a Server.
type Options struct {
	Routes          []config.Route
	NotFound        string
	MaxBody         int64
	ShutdownTimeout time.Duration
	MetricsPath     string // empty disables the metrics route
}

const (
	defaultMaxBody         = 64 << 10
	defaultShutdownTimeout = 5 * time.Second
)

// Server serves the HTTP front door.
type Server struct {
	relay   Relay
	assets  *Assets
	log     zerolog.Logger
	metrics *telemetry.Metrics
	opts    Options
	handler http.Handler
}

// New creates a Server. metrics may be nil.
func New(relay Relay, assets *Assets, opts Options, log zerolog.Logger, metrics *telemetry.Metrics) *Server {
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		relay:   relay,
		assets:  assets,
		log:     log,
		metrics: metrics,
		opts:    opts,
	}
	s.handler = s.accessLog(s.routes())
	return s
}

// routes builds the route table. Routes are matched in registration order.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	if s.opts.MetricsPath != "" && s.metrics != nil {
		r.Methods(http.MethodGet).Path(s.opts.MetricsPath).Handler(s.metrics.Handler())
	}

	for _, route := range s.opts.Routes {
		r.Methods(http.MethodGet, http.MethodHead).Path(route.Path).Handler(s.serveAsset(route.File, http.StatusOK))
	}

	// Submissions are accepted on any path. A plain matcher is used instead of
	// Methods so unknown GET paths fall through to NotFound rather than 405.
	r.MatcherFunc(isPost).HandlerFunc(s.handleSubmit)

	r.NotFoundHandler = s.serveAsset(s.opts.NotFound, http.StatusNotFound)

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown http server: %w", err)
	}

	return nil
}

// accessLog logs every request with its status and duration and tags it
// with a request id.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()
		w.Header().Set("X-Request-Id", id)

		log := s.log.With().Str("request_id", id).Logger()
		r = r.WithContext(log.WithContext(r.Context()))

		m := httpsnoop.CaptureMetrics(next, w, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", m.Code).
			Int64("bytes", m.Written).
			Dur("duration", m.Duration).
			Msg("handled")
	})
}

// serveAsset writes the named asset with the given status.
func (s *Server) serveAsset(name string, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, contentType, err := s.assets.Read(name)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("asset", name).Msg("failed to read asset")
			if status == http.StatusNotFound {
				http.Error(w, "404 page not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	})
}

func isPost(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodPost
}
