// Package adminapi is the relay's operational surface (C6): a small
// gin HTTP server, on its own port, exposing liveness and Prometheus
// metrics. It is additive tooling, not part of the chat protocol's
// external interface — the relay's TCP listener works identically
// whether or not this server is started.
package adminapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the admin HTTP server. A Port of 0 means disabled: Start
// becomes a no-op, matching TCHATSAPP_ADMIN_PORT's documented default.
type Server struct {
	port       int
	router     *gin.Engine
	httpServer *http.Server
}

// New builds an admin server bound to port, serving Prometheus metrics
// gathered from reg. Pass 0 for port to build a server whose Start is a
// deliberate no-op.
func New(port int, reg *prometheus.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggingMiddleware())

	router.GET("/healthz", handleHealthz)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &Server{
		port:   port,
		router: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start begins serving in the background. A disabled server (port 0)
// returns immediately without binding anything.
func (s *Server) Start() error {
	if s.port == 0 {
		return nil
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("adminapi: listen: %w", err)
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			fmt.Printf("adminapi: serve error: %v\n", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the admin server down, per ctx's deadline. A
// disabled server's Stop is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if s.port == 0 {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
