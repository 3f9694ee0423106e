// Package server serves the progress of a running port-bounce test over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/portbounce"
)

const (
	URLPathHealthz  = "/healthz"
	URLPathMetrics  = "/metrics"
	URLPathStatus   = "/status"
	URLPathFailures = "/status/failures"
)

// StatusSource is read on every status request while the run goes on.
type StatusSource interface {
	Status() portbounce.Status
}

var _ StatusSource = &portbounce.Tracker{}

// Server is the status endpoint of one test run.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// New listens on the address and serves in the background until Stop.
func New(address string, status StatusSource, reg *prometheus.Registry) (*Server, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s := &Server{
		srv: &http.Server{
			Handler:           newRouter(status, reg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln: ln,
	}
	go func() {
		log.Logger.Infow("serving run status", "address", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger.Errorw("status server failed", "address", ln.Addr().String(), "error", err)
		}
	}()
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Logger.Warnw("failed to shut down status server", "error", err)
	}
}

func newRouter(status StatusSource, reg *prometheus.Registry) *gin.Engine {
	router := gin.New()
	installMiddlewares(router, log.Logger.Desugar())

	router.GET(URLPathHealthz, createHealthzHandler())

	promHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	router.GET(URLPathMetrics, func(ctx *gin.Context) {
		promHandler.ServeHTTP(ctx.Writer, ctx.Request)
	})

	v1 := router.Group("/v1")

	// if the request header is set "Accept-Encoding: gzip",
	// the middleware automatically gzip-compresses the response with the response header "Content-Encoding: gzip"
	v1.Use(gzip.Gzip(gzip.DefaultCompression))

	v1.GET(URLPathStatus, createStatusHandler(status))
	v1.GET(URLPathFailures, createFailuresHandler(status))
	return router
}
