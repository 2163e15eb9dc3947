package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thumbsmith/internal/logging"
)

// HealthResponse is the body returned by /healthz.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	BatchRunning bool   `json:"batchRunning"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	Memory *MemoryHealth `json:"memory,omitempty"`
}

// MemoryHealth reports the backpressure monitor state.
type MemoryHealth struct {
	Paused     bool    `json:"paused"`
	Throttled  bool    `json:"throttled"`
	AllocBytes int64   `json:"allocBytes"`
	LimitBytes int64   `json:"limitBytes"`
	UsageRatio float64 `json:"usageRatio"`
}

// MemoryStatus is the view of the memory monitor used by /healthz.
// *memory.Monitor implements it.
type MemoryStatus interface {
	IsPaused() bool
	ShouldThrottle() bool
	GetStats() (current, limit int64, usage float64)
}

// RouterOptions configures the exposition router.
type RouterOptions struct {
	Version   string
	StartTime time.Time
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Running reports whether a batch is in progress. Optional.
	Running func() bool
	// Memory adds the memory monitor state to /healthz. Optional.
	Memory MemoryStatus
}

// NewRouter returns a router serving /metrics and /healthz.
func NewRouter(opts RouterOptions) *mux.Router {
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if opts.StartTime.IsZero() {
		opts.StartTime = time.Now()
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/healthz", healthHandler(opts)).Methods("GET")
	r.HandleFunc("/health", healthHandler(opts)).Methods("GET")
	return r
}

func healthHandler(opts RouterOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		running := false
		if opts.Running != nil {
			running = opts.Running()
		}

		response := HealthResponse{
			Status:       "healthy",
			Version:      opts.Version,
			Uptime:       time.Since(opts.StartTime).Round(time.Second).String(),
			BatchRunning: running,
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
		}

		if opts.Memory != nil {
			current, limit, usage := opts.Memory.GetStats()
			response.Memory = &MemoryHealth{
				Paused:     opts.Memory.IsPaused(),
				Throttled:  opts.Memory.ShouldThrottle(),
				AllocBytes: current,
				LimitBytes: limit,
				UsageRatio: usage,
			}
			if response.Memory.Paused {
				response.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logging.Error("Failed to encode health response: %v", err)
		}
	}
}

// Server exposes the router on a TCP address for the lifetime of a batch.
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// StartServer listens on addr and serves handler in the background.
// The listener is bound before returning so that port errors surface
// immediately.
func StartServer(addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		listener: ln,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	logging.Info("Metrics server listening on %s", ln.Addr())
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
