package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"hawton.dev/log4g"

	"github.com/kirill-gerasimenko-da/security-jwt/pkg/config"
)

var log = log4g.Category("server")

type Server struct {
	Engine      *gin.Engine
	RouterSetup func(e *gin.Engine)
}

func NewServer(router func(*gin.Engine)) *Server {
	e := gin.New()
	e.Use(gin.Recovery())

	return &Server{
		Engine:      e,
		RouterSetup: router,
	}
}

func (s *Server) BuildRoutes() {
	s.RouterSetup(s.Engine)
}

func (s *Server) handleStart(srv *http.Server) error {
	switch config.Cfg.Server.Mode {
	case "plain":
		return srv.ListenAndServe()
	case "tls":
		return srv.ListenAndServeTLS(config.Cfg.Server.SSLCert, config.Cfg.Server.SSLKey)
	default:
		return fmt.Errorf("unknown server mode: %s", config.Cfg.Server.Mode)
	}
}

// Start runs the server until interrupted, then shuts down gracefully.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Cfg.Server.Port),
		Handler: s.Engine,
	}

	errs := make(chan error, 1)
	go func() {
		if err := s.handleStart(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	select {
	case err := <-errs:
		return err
	case <-quit:
	}

	log.Info("Shutdown signal received, draining connections")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
