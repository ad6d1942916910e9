package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/internal/services"
	appErrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/response"
)

// EventHandler exposes the admin event management endpoints.
type EventHandler struct {
	events      *services.EventService
	submissions *services.SubmissionService
	users       *services.UserService
}

// NewEventHandler wires the event endpoints.
func NewEventHandler(db *gorm.DB) (*EventHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	events, err := services.NewEventService(db, audit)
	if err != nil {
		return nil, err
	}
	submissions, err := services.NewSubmissionService(db, audit)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db, audit)
	if err != nil {
		return nil, err
	}
	return &EventHandler{events: events, submissions: submissions, users: users}, nil
}

func (h *EventHandler) agencyScope(c *gin.Context) (string, bool) {
	user, err := h.users.GetByID(requestContext(c), c.GetString(middleware.CtxUserIDKey))
	if err != nil || user.AgencyID == nil {
		response.Error(c, appErrors.ErrForbidden)
		return "", false
	}
	return *user.AgencyID, true
}

type createEventRequest struct {
	Name            string    `json:"name" validate:"required,min=2,max=128"`
	Platform        string    `json:"platform" validate:"max=32"`
	GoalSubmissions int       `json:"goal_submissions" validate:"min=0"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
}

// POST /api/events
func (h *EventHandler) Create(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	var body createEventRequest
	if !bindAndValidate(c, &body) {
		return
	}

	event, err := h.events.Create(requestContext(c), services.CreateEventInput{
		AgencyID:        agencyID,
		Name:            body.Name,
		Platform:        body.Platform,
		GoalSubmissions: body.GoalSubmissions,
		StartsAt:        body.StartsAt,
		EndsAt:          body.EndsAt,
	})
	if err != nil {
		writeEventError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, event)
}

// GET /api/events
func (h *EventHandler) List(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	events, err := h.events.List(requestContext(c), agencyID, c.Query("active") == "true")
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, events)
}

// GET /api/events/:eventID
func (h *EventHandler) Get(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	event, err := h.events.Get(requestContext(c), agencyID, c.Param("eventID"))
	if err != nil {
		writeEventError(c, err)
		return
	}
	response.Success(c, http.StatusOK, event)
}

type updateEventRequest struct {
	Name            *string    `json:"name" validate:"omitempty,min=2,max=128"`
	Platform        *string    `json:"platform" validate:"omitempty,max=32"`
	GoalSubmissions *int       `json:"goal_submissions" validate:"omitempty,min=0"`
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	IsActive        *bool      `json:"is_active"`
}

// PATCH /api/events/:eventID
func (h *EventHandler) Update(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	var body updateEventRequest
	if !bindAndValidate(c, &body) {
		return
	}

	event, err := h.events.Update(requestContext(c), agencyID, c.Param("eventID"), services.UpdateEventInput{
		Name:            body.Name,
		Platform:        body.Platform,
		GoalSubmissions: body.GoalSubmissions,
		StartsAt:        body.StartsAt,
		EndsAt:          body.EndsAt,
		IsActive:        body.IsActive,
	})
	if err != nil {
		writeEventError(c, err)
		return
	}
	response.Success(c, http.StatusOK, event)
}

// DELETE /api/events/:eventID
func (h *EventHandler) Delete(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	if err := h.events.Delete(requestContext(c), agencyID, c.Param("eventID")); err != nil {
		writeEventError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/events/:eventID/stats
func (h *EventHandler) Stats(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	if _, err := h.events.Get(requestContext(c), agencyID, c.Param("eventID")); err != nil {
		writeEventError(c, err)
		return
	}

	stats, err := h.submissions.Stats(requestContext(c), c.Param("eventID"))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

func writeEventError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEventNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrEventNameTaken):
		response.Error(c, appErrors.NewBadRequest("an event with this name already exists"))
	default:
		response.Error(c, appErrors.ErrInternalServer)
	}
}
