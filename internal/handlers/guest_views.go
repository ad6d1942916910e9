package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/internal/services"
	appErrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/response"
)

// GuestViewHandler serves the event and submission views available to an
// authenticated guest. Routes using it sit behind the guest middleware, so a
// request reaching a handler has already been authorised for its event.
type GuestViewHandler struct {
	resolver    *guests.Resolver
	events      *services.EventService
	submissions *services.SubmissionService
	invites     *services.GuestInviteService
}

// NewGuestViewHandler wires the guest-scoped read and review endpoints.
func NewGuestViewHandler(db *gorm.DB, resolver *guests.Resolver) (*GuestViewHandler, error) {
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
	invites, err := services.NewGuestInviteService(db, nil, audit,
		services.WithInviteCacheInvalidator(resolver))
	if err != nil {
		return nil, err
	}
	return &GuestViewHandler{
		resolver:    resolver,
		events:      events,
		submissions: submissions,
		invites:     invites,
	}, nil
}

// GET /api/guest/events
func (h *GuestViewHandler) ListEvents(c *gin.Context) {
	ctx := requestContext(c)
	userID := c.GetString(middleware.CtxUserIDKey)

	eventIDs := h.resolver.AllowedEvents(ctx, userID)
	if len(eventIDs) == 0 {
		response.Success(c, http.StatusOK, []models.Event{})
		return
	}

	events := make([]gin.H, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		event, err := h.events.GetByID(ctx, eventID)
		if err != nil {
			continue
		}
		payload := gin.H{"event": event}
		if grant, ok := h.resolver.ActiveGrant(ctx, userID, eventID); ok {
			payload["permission_level"] = grant.PermissionLevel
		}
		events = append(events, payload)
	}
	response.Success(c, http.StatusOK, events)
}

// GET /api/guest/events/:eventID
func (h *GuestViewHandler) GetEvent(c *gin.Context) {
	event, err := h.events.GetByID(requestContext(c), c.Param("eventID"))
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, event)
}

// GET /api/guest/events/:eventID/submissions
func (h *GuestViewHandler) ListSubmissions(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	submissions, total, err := h.submissions.List(requestContext(c), services.SubmissionListOptions{
		Filters: services.SubmissionFilters{
			EventID: c.Param("eventID"),
			Status:  c.Query("status"),
			Handle:  c.Query("handle"),
		},
		Page:     page,
		PageSize: perPage,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, submissions, &response.Meta{Page: page, PerPage: perPage, Total: int(total)})
}

// GET /api/guest/events/:eventID/stats
func (h *GuestViewHandler) EventStats(c *gin.Context) {
	stats, err := h.submissions.Stats(requestContext(c), c.Param("eventID"))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.Success(c, http.StatusOK, stats)
}

type guestReviewRequest struct {
	Decision     string `json:"decision" validate:"required,oneof=approved rejected"`
	RejectReason string `json:"reject_reason" validate:"max=512"`
}

// POST /api/guest/events/:eventID/submissions/:submissionID/review
func (h *GuestViewHandler) ReviewSubmission(c *gin.Context) {
	var body guestReviewRequest
	if !bindAndValidate(c, &body) {
		return
	}

	ctx := requestContext(c)

	submission, err := h.submissions.Get(ctx, c.Param("submissionID"))
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	// The submission must belong to the event the grant authorised.
	if submission.EventID != c.Param("eventID") {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	input := services.ReviewInput{
		SubmissionID: submission.ID,
		Decision:     body.Decision,
		RejectReason: body.RejectReason,
		ReviewerID:   c.GetString(middleware.CtxUserIDKey),
	}
	if grant, ok := middleware.GuestGrant(c); ok {
		input.GuestInviteID = grant.GuestInviteID
		input.DailyApprovalLimit = grant.DailyApprovalLimit
		_ = h.invites.TouchLastAccess(ctx, grant.GuestInviteID)
	}

	reviewed, err := h.submissions.Review(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSubmissionReviewed):
			response.Error(c, appErrors.NewBadRequest("submission has already been reviewed"))
		case errors.Is(err, services.ErrDailyApprovalLimit):
			response.Error(c, appErrors.New("DAILY_LIMIT_REACHED", "daily approval limit reached", http.StatusTooManyRequests))
		case errors.Is(err, services.ErrInvalidReviewDecision):
			response.Error(c, appErrors.NewBadRequest("decision must be approved or rejected"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Success(c, http.StatusOK, reviewed)
}
