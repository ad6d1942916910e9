package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/internal/services"
	appErrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/response"
)

// SubmissionHandler exposes the public submission intake and the admin review
// endpoints.
type SubmissionHandler struct {
	submissions *services.SubmissionService
}

// NewSubmissionHandler wires the submission endpoints.
func NewSubmissionHandler(db *gorm.DB) (*SubmissionHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	submissions, err := services.NewSubmissionService(db, audit)
	if err != nil {
		return nil, err
	}
	return &SubmissionHandler{submissions: submissions}, nil
}

type createSubmissionRequest struct {
	EventID          string `json:"event_id" validate:"required"`
	InfluencerName   string `json:"influencer_name" validate:"required,min=2,max=128"`
	InfluencerHandle string `json:"influencer_handle" validate:"max=64"`
	ScreenshotURL    string `json:"screenshot_url" validate:"required,url"`
	Caption          string `json:"caption" validate:"max=2048"`
}

// POST /api/submissions (public intake)
func (h *SubmissionHandler) Create(c *gin.Context) {
	var body createSubmissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	submission, err := h.submissions.Create(requestContext(c), services.CreateSubmissionInput{
		EventID:          body.EventID,
		InfluencerName:   body.InfluencerName,
		InfluencerHandle: body.InfluencerHandle,
		ScreenshotURL:    body.ScreenshotURL,
		Caption:          body.Caption,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEventNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrEventClosed):
			response.Error(c, appErrors.NewBadRequest("event is no longer accepting submissions"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}
	response.Success(c, http.StatusCreated, submission)
}

// GET /api/submissions
func (h *SubmissionHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	submissions, total, err := h.submissions.List(requestContext(c), services.SubmissionListOptions{
		Filters: services.SubmissionFilters{
			EventID: c.Query("event_id"),
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

type reviewRequest struct {
	Decision     string `json:"decision" validate:"required,oneof=approved rejected"`
	RejectReason string `json:"reject_reason" validate:"max=512"`
}

// POST /api/submissions/:id/review (admin review)
func (h *SubmissionHandler) Review(c *gin.Context) {
	var body reviewRequest
	if !bindAndValidate(c, &body) {
		return
	}

	reviewed, err := h.submissions.Review(requestContext(c), services.ReviewInput{
		SubmissionID: c.Param("id"),
		Decision:     body.Decision,
		RejectReason: body.RejectReason,
		ReviewerID:   c.GetString(middleware.CtxUserIDKey),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSubmissionNotFound):
			response.Error(c, appErrors.ErrNotFound)
		case errors.Is(err, services.ErrSubmissionReviewed):
			response.Error(c, appErrors.NewBadRequest("submission has already been reviewed"))
		case errors.Is(err, services.ErrInvalidReviewDecision):
			response.Error(c, appErrors.NewBadRequest("decision must be approved or rejected"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}
	response.Success(c, http.StatusOK, reviewed)
}
