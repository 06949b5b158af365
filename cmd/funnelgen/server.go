package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/log"
	"github.com/velodata/funnelgen/pkg/metric"
	"github.com/velodata/funnelgen/pkg/pipeline"
	"github.com/velodata/funnelgen/pkg/progress"
	"github.com/velodata/funnelgen/pkg/verify"
)

// statusServer exposes run progress and results over HTTP while a
// generation runs: live progress over websocket, Prometheus metrics,
// and the run summary and consistency report once available.
type statusServer struct {
	srv *http.Server
	log log.Logger

	mu     sync.RWMutex
	output *pipeline.Output
	report *verify.Report
}

func newStatusServer(addr string, logger log.Logger, metrics *metric.Metrics, hub *progress.Hub) *statusServer {
	s := &statusServer{log: logger}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry, promhttp.HandlerOpts{})))
	router.GET("/ws/progress", gin.WrapH(hub))
	router.GET("/report", s.handleReport)
	router.GET("/summary", s.handleSummary)

	s.srv = &http.Server{Addr: addr, Handler: router}
	return s
}

// Start serves in the background until Stop.
func (s *statusServer) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("status server failed", zap.Error(err))
		}
	}()
	s.log.Info("status server listening", zap.String("addr", s.srv.Addr))
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *statusServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("status server shutdown", zap.Error(err))
	}
}

func (s *statusServer) SetOutput(out *pipeline.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = out
}

func (s *statusServer) SetReport(r *verify.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
}

func (s *statusServer) handleSummary(c *gin.Context) {
	s.mu.RLock()
	out := s.output
	s.mu.RUnlock()

	if out == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":         out.RunID,
		"scale":          out.Summary.ScaleName,
		"stores":         len(out.Stores),
		"users":          len(out.Users),
		"products":       len(out.Products),
		"traffic_events": len(out.Traffic),
		"orders":         len(out.Orders),
		"order_details":  len(out.Details),
		"skipped":        out.Skips.Total(),
		"elapsed":        out.Elapsed.String(),
	})
}

func (s *statusServer) handleReport(c *gin.Context) {
	s.mu.RLock()
	report := s.report
	s.mu.RUnlock()

	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no verification report yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}
