package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mdaccula/postcontrol/internal/handlers"
	"github.com/mdaccula/postcontrol/internal/middleware"
)

func registerAuditRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewAuditHandler(deps.DB)
	if err != nil {
		return err
	}

	audit := api.Group("/audit")
	audit.Use(middleware.RequireAdmin())
	{
		audit.GET("", handler.List)
	}
	return nil
}
