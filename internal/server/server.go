// Package server assembles the HTTP surface: the shared middleware
// stack, the certificate-guarded reporting routes and the operational
// endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/metrics"
)

type Options struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Pool          *pgxpool.Pool
}

type HTTPServer struct {
	router *mux.Router
	log    *logrus.Logger
	srv    *http.Server
}

// New builds the router with the shared middleware stack and the
// operational endpoints. Domain controllers register themselves on
// Router before Start.
func New(opts Options) *HTTPServer {
	router := mux.NewRouter()
	router.Use(
		Recovery(opts.Logger),
		RequestID(),
		RequestLogger(opts.Logger),
		ProvidePool(opts.Pool),
	)

	NewHealthController(opts.Pool).Register(router)
	if opts.Configuration.Prometheus.Enabled {
		router.Handle(opts.Configuration.Prometheus.Path, metrics.Handler())
	}

	return &HTTPServer{router: router, log: opts.Logger}
}

func (s *HTTPServer) Router() *mux.Router {
	return s.router
}

func (s *HTTPServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	s.log.WithField("addr", addr).Info("http server listening")
	return s.srv.ListenAndServe()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
