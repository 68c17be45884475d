package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/locker-system/docs"
	"github.com/99minutos/locker-system/internal/api/handler"
	"github.com/99minutos/locker-system/internal/api/middleware"
	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Log         zerolog.Logger
	JWTSecret   string
	Admission   ports.AdmissionService
	Transitions ports.TransitionService
	Parcels     ports.ParcelService
	Repairer    ports.MirrorRepairer
	Watcher     handler.Watcher
	Readiness   map[string]handler.Pinger
	// Registry replaces the default Prometheus registry for HTTP metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(d.Log))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "parcel_http",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Ops (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Readiness)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Dependencies ---
	parcelHandler := handler.NewParcelHandler(d.Admission, d.Parcels)
	transitionHandler := handler.NewTransitionHandler(d.Transitions)
	streamHandler := handler.NewStreamHandler(d.Watcher)
	adminHandler := handler.NewAdminHandler(d.Repairer)

	// --- Authenticated API ---
	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret))

	v1.POST("/parcels", parcelHandler.Create)
	v1.GET("/parcels", parcelHandler.List)
	v1.GET("/parcels/stats", parcelHandler.Stats)
	v1.GET("/parcels/stream", streamHandler.Stream)
	v1.POST("/parcels/transitions", transitionHandler.TransitionBatch)
	v1.GET("/parcels/:id", parcelHandler.Get)
	v1.PATCH("/parcels/:id", parcelHandler.Update)
	v1.DELETE("/parcels/:id", parcelHandler.Delete)
	v1.POST("/parcels/:id/transitions", transitionHandler.Transition)

	v1.GET("/lockers", parcelHandler.Lockers)
	v1.GET("/capacity", parcelHandler.Capacity)

	admin := v1.Group("/admin", middleware.RBAC(domain.RoleOperator))
	admin.POST("/mirror/:id/resync", adminHandler.ResyncMirror)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
