package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"villabook/pkg/config"
	"villabook/pkg/contracts"
	"villabook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// Application owns the HTTP server and its middleware stacks. Health
// endpoints get a minimal chain so probes keep working when the booking
// pipeline is degraded; everything else goes through the full stack.
type Application struct {
	cfg            *config.Config
	server         *http.Server
	healthHandler  http.Handler
	bookingHandler http.Handler
}

func NewApplication() *Application {
	return &Application{}
}

func (a *Application) SetApp(cfg *config.Config, healthHandler contracts.Handler, bookingHandler contracts.Handler) {
	a.cfg = cfg
	a.setHealthHandler(cfg, healthHandler)
	a.setBookingHandler(cfg, bookingHandler)
	a.setAppServer(cfg)
}

func (a *Application) setHealthHandler(cfg *config.Config, h contracts.Handler) {
	healthRouter := httprouter.New()
	h.RegisterRoutes(healthRouter)

	var handler http.Handler = healthRouter
	handler = middleware.RequestLogging(cfg.Log)(handler)
	handler = middleware.Recovery(cfg.Log)(handler)
	a.healthHandler = handler
	cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setBookingHandler(cfg *config.Config, h contracts.Handler) {
	appRouter := httprouter.New()
	h.RegisterRoutes(appRouter)

	var handler http.Handler = appRouter
	handler = middleware.Identity()(handler)
	handler = middleware.RequestTimeout(cfg.RequestTimeout)(handler)
	handler = middleware.ContentTypeValidation(cfg.Log)(handler)
	handler = middleware.MaxRequestSize(int64(cfg.MaxRequestSize))(handler)
	handler = middleware.RequestLogging(cfg.Log)(handler)
	handler = middleware.Recovery(cfg.Log)(handler)
	a.bookingHandler = handler
	cfg.Log.Info("Booking endpoints configured with full middleware stack")
}

func (a *Application) setAppServer(cfg *config.Config) {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.bookingHandler)

	a.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	cfg.Log.Info("HTTP server configured", "port", cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
