package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/infrastructure/logger"
	"github.com/Triple-C-BE/wimood/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	registrars []RouteRegistrar
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine) *Router {
	return &Router{
		engine:     engine,
		registrars: make([]RouteRegistrar, 0),
	}
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes at the engine root
func (r *Router) Setup() {
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(&r.engine.RouterGroup)
	}
}

// EngineConfig configures the status server engine
type EngineConfig struct {
	Mode    string
	Tracing middleware.TracingConfig
	Logger  *zap.Logger
}

// NewEngine builds a gin engine with recovery, request ids, tracing and
// request logging installed
func NewEngine(cfg EngineConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
	)
	return engine
}
