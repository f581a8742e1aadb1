// Package metrics exposes simulation state to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "space"

// Collector holds every metric of one simulation run on its own registry.
type Collector struct {
	reg *prometheus.Registry

	Entities       prometheus.Gauge
	Ships          prometheus.Gauge
	PendingDestroy prometheus.Gauge
	OverflowBlocks prometheus.Gauge
	ArenaBytes     prometheus.Gauge

	TreeNodes    prometheus.Gauge
	TreeLeaves   prometheus.Gauge
	TreeDepth    prometheus.Gauge
	TreeSplits   prometheus.Counter
	TreeMerges   prometheus.Counter
	Neighbors    prometheus.Histogram
	FrameSeconds prometheus.Histogram

	ShipsSpawned   prometheus.Counter
	ShipsExpired   prometheus.Counter
	TargetsChanged *prometheus.CounterVec
}

func New(version string) *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	f.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "info",
		Help:        "The simulation version.",
		ConstLabels: prometheus.Labels{"version": version},
	}).Set(1)

	return &Collector{
		reg:            reg,
		Entities:       gauge("entities", "Live entities, dying ones included."),
		Ships:          gauge("ships", "Live ship components."),
		PendingDestroy: gauge("pending_destroy", "Entities waiting in the deferred destroy queues."),
		OverflowBlocks: gauge("overflow_blocks", "Component blocks allocated beyond the embedded one."),
		ArenaBytes:     gauge("arena_bytes", "Bytes handed out by the callsign arena."),
		TreeNodes:      gauge("quadtree_nodes", "Allocated quadtree nodes."),
		TreeLeaves:     gauge("quadtree_leaves", "Quadtree leaves."),
		TreeDepth:      gauge("quadtree_depth", "Deepest allocated quadtree node."),
		TreeSplits:     counter("quadtree_splits_total", "Quadtree leaf splits."),
		TreeMerges:     counter("quadtree_merges_total", "Quadtree sibling merges."),
		Neighbors: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "steering_neighbors",
			Help:      "Average neighbours returned per steering query, sampled per frame.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		FrameSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_seconds",
			Help:      "Wall time spent simulating one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		ShipsSpawned: counter("ships_spawned_total", "Ships created."),
		ShipsExpired: counter("ships_expired_total", "Ships destroyed at the end of their lifetime."),
		TargetsChanged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Target acquisitions and losses.",
		}, []string{"change"}),
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Server is the /metrics HTTP endpoint.
type Server struct {
	srv *http.Server
	ln  net.Listener
	log *zap.Logger
}

// Serve starts serving /metrics on addr in the background. Binding errors
// are returned immediately.
func (c *Collector) Serve(addr string, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
		log: log,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return s, nil
}

// Addr returns the bound address, useful when serving on port 0.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Shutdown stops the server, waiting for in-flight scrapes until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
