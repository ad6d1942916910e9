package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mdaccula/postcontrol/internal/handlers"
	"github.com/mdaccula/postcontrol/internal/middleware"
)

func registerEventRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewEventHandler(deps.DB)
	if err != nil {
		return err
	}

	events := api.Group("/events")
	events.Use(middleware.RequireAdmin())
	{
		events.GET("", handler.List)
		events.POST("", handler.Create)
		events.GET("/:eventID", handler.Get)
		events.PATCH("/:eventID", handler.Update)
		events.DELETE("/:eventID", handler.Delete)
		events.GET("/:eventID/stats", handler.Stats)
	}
	return nil
}
