// Package simserver is a development stand-in for the real mediaplayer
// backend: it keeps the authoritative state in memory, serves the dashboard
// event stream, and accepts every dashboard command. Scripted hooks under
// /api/sim fake playback clients connecting and disconnecting.
package simserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/0x7030676e31/mediaplayer/internal/config"
)

// Server bundles the gin router and the simulated backend state.
type Server struct {
	http  *http.Server
	state *state
	log   *zerolog.Logger
}

// New builds a simulator listening on cfg.Addr.
func New(cfg config.Config, logger *zerolog.Logger) *Server {
	s := &Server{
		state: newState(logger),
		log:   logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggerMiddleware(logger))
	s.routes(router)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.http.Handler
}

func (s *Server) routes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	api.GET("/dashboard/stream", s.handleStream)

	api.POST("/media/upload/:nonce/:name", s.handleUpload)
	api.DELETE("/media/:id", s.handleDeleteMedia)
	api.POST("/media/:id/request_download", s.handleRequestDownload)
	api.POST("/media/:id/play", s.handlePlay)
	api.POST("/media/stop", s.handleStop)

	api.DELETE("/client/:id", s.handleDeleteClient)
	api.POST("/client/:id/shutdown", s.handleShutdown)
	api.POST("/client/:id/rename", s.handleRename)

	api.POST("/group", s.handleCreateGroup)

	sim := api.Group("/sim")
	sim.POST("/client", s.handleSimCreateClient)
	sim.POST("/client/:id/connect", s.handleSimConnect)
	sim.POST("/client/:id/disconnect", s.handleSimDisconnect)
	sim.PUT("/group/:id", s.handleSimEditGroup)
	sim.POST("/group/:id/member/:client", s.handleSimGroupMember(true))
	sim.DELETE("/group/:id/member/:client", s.handleSimGroupMember(false))
	sim.DELETE("/group/:id", s.handleSimDeleteGroup)
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal listen error.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.log.Info().Msg("shutting down simulator")
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-serverErr
	}
}

func loggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
