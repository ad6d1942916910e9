package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/handlers"
	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/internal/services"
)

func (d Dependencies) inviteOptions() []services.GuestInviteOption {
	opts := []services.GuestInviteOption{
		services.WithInviteBaseURL(d.Config.Server.BaseURL),
	}
	if size := d.Config.Guests.InviteTokenBytes; size > 0 {
		opts = append(opts, services.WithInviteTokenSize(size))
	}
	return opts
}

// registerGuestAccessRoutes mounts the public invite redemption flow.
func registerGuestAccessRoutes(r *gin.Engine, deps Dependencies) error {
	handler, err := handlers.NewGuestAccessHandler(deps.DB, deps.JWT, deps.Resolver, deps.inviteOptions()...)
	if err != nil {
		return err
	}

	access := r.Group("/api/guest-access")
	{
		access.GET("/invite", handler.InviteInfo)
		access.POST("/redeem", handler.Redeem)
	}
	return nil
}

// registerGuestAdminRoutes mounts invite and permission management for admins.
func registerGuestAdminRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewGuestHandler(deps.DB, deps.Mailer, deps.Resolver, deps.inviteOptions()...)
	if err != nil {
		return err
	}

	invites := api.Group("/guests/invites")
	invites.Use(middleware.RequireAdmin())
	{
		invites.GET("", handler.ListInvites)
		invites.POST("", handler.CreateInvite)
		invites.POST("/:id/revoke", handler.RevokeInvite)
		invites.POST("/:id/resend", handler.ResendInvite)
		invites.PATCH("/:id/window", handler.UpdateWindow)
		invites.GET("/:id/permissions", handler.ListPermissions)
		invites.POST("/:id/permissions", handler.GrantPermission)
		invites.PATCH("/:id/permissions/:eventID", handler.UpdatePermission)
		invites.DELETE("/:id/permissions/:eventID", handler.RevokePermission)
		invites.GET("/:id/audit", handler.ListGuestAudit)
	}
	return nil
}

// registerGuestViewRoutes mounts the event views available to active guests.
func registerGuestViewRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewGuestViewHandler(deps.DB, deps.Resolver)
	if err != nil {
		return err
	}

	guest := api.Group("/guest")
	{
		guest.GET("/events", middleware.RequireActiveGuest(deps.Resolver), handler.ListEvents)

		events := guest.Group("/events/:eventID")
		{
			events.GET("", middleware.RequireGuestPermission(deps.Resolver, guests.TierViewer), handler.GetEvent)
			events.GET("/submissions", middleware.RequireGuestPermission(deps.Resolver, guests.TierViewer), handler.ListSubmissions)
			events.GET("/stats", middleware.RequireGuestPermission(deps.Resolver, guests.TierViewer), handler.EventStats)
			events.POST("/submissions/:submissionID/review", middleware.RequireGuestPermission(deps.Resolver, guests.TierModerator), handler.ReviewSubmission)
		}
	}
	return nil
}
