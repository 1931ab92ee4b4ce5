// Package metrics exposes Prometheus counters and gauges for the session
// and injector, and an optional HTTP listener to serve them.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric this client exports.
type Registry struct {
	reg *prometheus.Registry

	FramesReceived   prometheus.Counter
	FramesSent       prometheus.Counter
	ProtocolErrors   prometheus.Counter
	HandlerErrors    *prometheus.CounterVec
	DispatchQueueLen prometheus.Gauge
	SessionState     *prometheus.GaugeVec
	MouseMovesDrop   prometheus.Counter
	MouseMovesApply  prometheus.Counter
}

// New builds a Registry with every metric registered under the
// barrierscreen_client_ namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "barrierscreen_client",
			Name:      "frames_received_total",
			Help:      "Frames successfully parsed off the wire.",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "barrierscreen_client",
			Name:      "frames_sent_total",
			Help:      "Frames written to the server.",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "barrierscreen_client",
			Name:      "protocol_errors_total",
			Help:      "EBAD/EBSY/EICV/EUNK frames received from the server.",
		}),
		HandlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barrierscreen_client",
			Name:      "handler_errors_total",
			Help:      "Dispatcher handler errors, labeled by message code.",
		}, []string{"code"}),
		DispatchQueueLen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "barrierscreen_client",
			Name:      "dispatch_queue_length",
			Help:      "Current depth of the dispatcher's bounded queue.",
		}),
		SessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "barrierscreen_client",
			Name:      "session_state",
			Help:      "1 for the session's current state, 0 for all others.",
		}, []string{"state"}),
		MouseMovesDrop: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "barrierscreen_client",
			Name:      "mouse_moves_dropped_total",
			Help:      "DMMV events dropped by the throttle.",
		}),
		MouseMovesApply: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "barrierscreen_client",
			Name:      "mouse_moves_applied_total",
			Help:      "DMMV events applied to the virtual pointer.",
		}),
	}
}

// SetState marks state as current and every other named state as not
// current, so a Prometheus query can chart state occupancy over time.
func (r *Registry) SetState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1.0
		}

		r.SessionState.WithLabelValues(s).Set(v)
	}
}

// Server serves /metrics over HTTP on addr until the context is canceled.
type Server struct {
	addr string
	reg  *Registry
	srv  *http.Server
}

// NewServer builds a metrics HTTP server; it does not start listening
// until Serve is called.
func NewServer(addr string, reg *Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{}))

	return &Server{
		addr: addr,
		reg:  reg,
		srv:  &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}
}

// Serve blocks until ctx is canceled, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics: listen on %s: %w", s.addr, err)

			return
		}

		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}

		return nil

	case err := <-errCh:
		return err
	}
}
