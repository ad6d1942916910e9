package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/app"
	iauth "github.com/mdaccula/postcontrol/internal/auth"
	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/handlers"
	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/pkg/mail"
)

// Dependencies bundles the shared services the router needs.
type Dependencies struct {
	DB        *gorm.DB
	JWT       *iauth.JWTService
	Config    *app.Config
	Resolver  *guests.Resolver
	Mailer    mail.Mailer
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("guest resolver must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if rl := deps.Config.Server.RateLimit; rl.Enabled {
		r.Use(middleware.RateLimit(deps.RateStore, rl.MaxRequests, rl.Window))
	}

	r.NoRoute(middleware.NotFoundHandler)

	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB))
	}
	if prom := deps.Config.Monitoring.Prometheus; prom.Enabled {
		endpoint := prom.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	if err := registerAuthRoutes(r, deps); err != nil {
		return nil, err
	}
	if err := registerGuestAccessRoutes(r, deps); err != nil {
		return nil, err
	}

	requireAuth := middleware.Auth(deps.JWT)
	api := r.Group("/api")
	api.Use(requireAuth)

	if err := registerEventRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerSubmissionRoutes(r, api, deps); err != nil {
		return nil, err
	}
	if err := registerGuestAdminRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerGuestViewRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerAuditRoutes(api, deps); err != nil {
		return nil, err
	}

	return r, nil
}
