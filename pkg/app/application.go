package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartparking/pkg/config"
	"smartparking/pkg/contracts"
	"smartparking/pkg/middleware"
	"smartparking/pkg/session"
)

type shutdownHook struct {
	name string
	fn   func() error
}

type Application struct {
	cfg              *config.Config
	registry         *prometheus.Registry
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.IPRateLimiter
	healthHandler    http.Handler
	appHttpHandler   http.Handler

	// beforeServer hooks stop producers of work (the sweeper); afterServer
	// hooks release what in-flight requests may still use (the event producer).
	beforeServer []shutdownHook
	afterServer  []shutdownHook
}

func NewApplication(cfg *config.Config, registry *prometheus.Registry) *Application {
	return &Application{cfg: cfg, registry: registry}
}

// OnShutdown registers a hook run before the HTTP server drains.
func (a *Application) OnShutdown(name string, fn func()) {
	a.beforeServer = append(a.beforeServer, shutdownHook{name: name, fn: func() error { fn(); return nil }})
}

// OnClose registers a hook run after the HTTP server has drained and before
// the store clients disconnect.
func (a *Application) OnClose(name string, fn func() error) {
	a.afterServer = append(a.afterServer, shutdownHook{name: name, fn: fn})
}

func (a *Application) SetApp(health *HealthHandler, sessions *session.Manager, appHandlers ...contracts.Handler) {
	a.setHealthHandler(health)
	a.setAppHandler(sessions, appHandlers)
	a.setAppServer()
}

func (a *Application) setHealthHandler(health *HealthHandler) {
	healthRouter := httprouter.New()
	health.RegisterRoutes(healthRouter)
	healthRouter.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	a.healthHandler = middleware.Chain(healthRouter,
		middleware.Recovery(a.cfg.Log),
		middleware.RequestLogging(a.cfg.Log),
	)
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(sessions *session.Manager, appHandlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range appHandlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewIPRateLimiter(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst)
	httpMetrics := middleware.NewHTTPMetrics(a.registry)

	a.appHttpHandler = middleware.Chain(appRouter,
		middleware.Recovery(a.cfg.Log),
		middleware.RequestLogging(a.cfg.Log),
		httpMetrics.Middleware(),
		middleware.CORS(a.cfg.CORSAllowedOrigins),
		middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize)),
		middleware.ContentTypeValidation(a.cfg.Log),
		middleware.RateLimit(a.rateLimiter, a.cfg.Log),
		middleware.RequestTimeout(a.cfg.RequestTimeout),
		middleware.Authenticate(sessions, a.cfg.Log),
		middleware.Idempotency(a.idempotencyStore),
	)
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/metrics", a.healthHandler)
	mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Handler() http.Handler {
	return a.server.Handler
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
		if !errors.Is(err, http.ErrServerClosed) {
			a.cfg.Log.Fatal("HTTP server failed", "error", err)
		}

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.cfg.Log.Info("Stopping background workers...")
	a.runHooks(a.beforeServer)
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}
	a.cfg.Log.Info("Server stopped gracefully")

	a.runHooks(a.afterServer)
	a.cfg.GracefulShutdown()
}

func (a *Application) runHooks(hooks []shutdownHook) {
	for _, h := range hooks {
		if err := h.fn(); err != nil {
			a.cfg.Log.Error("Shutdown hook failed", "hook", h.name, "error", err)
			continue
		}
		a.cfg.Log.Info("Shutdown hook completed", "hook", h.name)
	}
}
