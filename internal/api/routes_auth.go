package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mdaccula/postcontrol/internal/handlers"
	"github.com/mdaccula/postcontrol/internal/middleware"
)

func registerAuthRoutes(r *gin.Engine, deps Dependencies) error {
	authHandler, err := handlers.NewAuthHandler(deps.DB, deps.JWT, deps.Resolver)
	if err != nil {
		return err
	}

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	// Authenticated auth routes
	authed := r.Group("/api/auth")
	authed.Use(middleware.Auth(deps.JWT))
	{
		authed.GET("/me", authHandler.Me)
		authed.POST("/logout", authHandler.Logout)
	}

	return nil
}
