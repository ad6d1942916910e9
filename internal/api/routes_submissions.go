package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mdaccula/postcontrol/internal/handlers"
	"github.com/mdaccula/postcontrol/internal/middleware"
)

func registerSubmissionRoutes(r *gin.Engine, api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewSubmissionHandler(deps.DB)
	if err != nil {
		return err
	}

	// Influencers submit proof-of-post without an account.
	r.POST("/api/submissions", handler.Create)

	submissions := api.Group("/submissions")
	submissions.Use(middleware.RequireAdmin())
	{
		submissions.GET("", handler.List)
		submissions.POST("/:id/review", handler.Review)
	}
	return nil
}
