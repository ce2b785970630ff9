// shared/api/server.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// BaseServer is a mux router behind an http.Server with the shared middleware.
type BaseServer struct {
	Router *mux.Router
	Server *http.Server
	Logger *log.Logger
}

func NewBaseServer(addr string, logger *log.Logger) *BaseServer {
	if logger == nil {
		logger = log.Default()
	}

	router := mux.NewRouter()
	router.Use(RecoverMiddleware)
	router.Use(LoggingMiddleware)

	return &BaseServer{
		Router: router,
		Server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Logger: logger,
	}
}

// Start serves until Shutdown. It returns nil on a graceful shutdown.
func (bs *BaseServer) Start() error {
	bs.Logger.Printf("INFO: Starting HTTP server on %s...", bs.Server.Addr)
	if err := bs.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

func (bs *BaseServer) Shutdown(ctx context.Context) error {
	bs.Logger.Println("INFO: Shutting down HTTP server...")
	return bs.Server.Shutdown(ctx)
}
