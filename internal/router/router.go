package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/loleg/couchers/internal/handler"
	"github.com/loleg/couchers/internal/middleware"
)

// Handler mounts routes onto a router group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler additionally mounts routes outside service auth.
type PublicHandler interface {
	Handler
	RegisterPublicRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      *handler.Handler
	config Config
}

func NewRouter(auth *middleware.AuthMiddleware, h *handler.Handler, config Config) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine: gin.New(),
		auth:   auth,
		h:      h,
		config: config,
	}
}

// Setup installs the middleware chain and operational endpoints, then
// mounts the given handlers: authenticated ones under /api/v1, public
// ones at the root.
func (r *Router) Setup(handlers ...Handler) {
	r.engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		}).RateLimit(),
	)

	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/health/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	public := r.engine.Group("/")
	api := r.engine.Group("/api/v1")
	api.Use(r.auth.Authenticate())

	for _, h := range handlers {
		h.RegisterRoutes(api)
		if ph, ok := h.(PublicHandler); ok {
			ph.RegisterPublicRoutes(public)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
