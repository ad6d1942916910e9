package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/internal/models"
	"github.com/mdaccula/postcontrol/internal/services"
	appErrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/mail"
	"github.com/mdaccula/postcontrol/pkg/response"
)

// GuestHandler exposes admin endpoints for managing guest invites and their
// per-event permissions.
type GuestHandler struct {
	invites *services.GuestInviteService
	perms   *services.GuestPermissionService
	users   *services.UserService
	audit   *services.AuditService
}

// NewGuestHandler wires the guest management endpoints.
func NewGuestHandler(db *gorm.DB, mailer mail.Mailer, resolver *guests.Resolver, opts ...services.GuestInviteOption) (*GuestHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	inviteOpts := append([]services.GuestInviteOption{
		services.WithInviteCacheInvalidator(resolver),
	}, opts...)
	invites, err := services.NewGuestInviteService(db, mailer, audit, inviteOpts...)
	if err != nil {
		return nil, err
	}
	perms, err := services.NewGuestPermissionService(db, audit, resolver)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db, audit)
	if err != nil {
		return nil, err
	}
	return &GuestHandler{invites: invites, perms: perms, users: users, audit: audit}, nil
}

type inviteDTO struct {
	*models.GuestInvite
	EffectiveStatus string `json:"effective_status"`
}

func toInviteDTO(invite *models.GuestInvite, now time.Time) inviteDTO {
	return inviteDTO{GuestInvite: invite, EffectiveStatus: invite.EffectiveStatus(now)}
}

// agencyScope resolves the authenticated admin's agency id.
func (h *GuestHandler) agencyScope(c *gin.Context) (string, bool) {
	user, err := h.users.GetByID(requestContext(c), c.GetString(middleware.CtxUserIDKey))
	if err != nil || user.AgencyID == nil {
		response.Error(c, appErrors.ErrForbidden)
		return "", false
	}
	return *user.AgencyID, true
}

type createInviteRequest struct {
	Email              string    `json:"email" validate:"required,email"`
	AccessStartDate    time.Time `json:"access_start_date" validate:"required"`
	AccessEndDate      time.Time `json:"access_end_date" validate:"required"`
	NotifyOnSubmission bool      `json:"notify_on_submission"`
	NotifyOnApproval   bool      `json:"notify_on_approval"`
}

// POST /api/guests/invites
func (h *GuestHandler) CreateInvite(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	var body createInviteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	invite, _, link, err := h.invites.CreateInvite(requestContext(c), services.CreateGuestInviteInput{
		AgencyID:           agencyID,
		InvitedBy:          c.GetString(middleware.CtxUserIDKey),
		Email:              body.Email,
		AccessStartDate:    body.AccessStartDate,
		AccessEndDate:      body.AccessEndDate,
		NotifyOnSubmission: body.NotifyOnSubmission,
		NotifyOnApproval:   body.NotifyOnApproval,
	})
	if err != nil {
		writeInviteError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"invite":      toInviteDTO(invite, time.Now()),
		"invite_link": link,
	})
}

// GET /api/guests/invites
func (h *GuestHandler) ListInvites(c *gin.Context) {
	agencyID, ok := h.agencyScope(c)
	if !ok {
		return
	}

	invites, err := h.invites.List(requestContext(c), agencyID, c.Query("status"), c.Query("search"))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	now := time.Now()
	dtos := make([]inviteDTO, 0, len(invites))
	for i := range invites {
		dtos = append(dtos, toInviteDTO(&invites[i], now))
	}
	response.Success(c, http.StatusOK, dtos)
}

// POST /api/guests/invites/:id/revoke
func (h *GuestHandler) RevokeInvite(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	err := h.invites.RevokeInvite(requestContext(c), c.Param("id"), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		writeInviteError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// POST /api/guests/invites/:id/resend
func (h *GuestHandler) ResendInvite(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	invite, _, link, err := h.invites.ResendInvite(requestContext(c), c.Param("id"))
	if err != nil {
		writeInviteError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"invite":      toInviteDTO(invite, time.Now()),
		"invite_link": link,
	})
}

type updateWindowRequest struct {
	AccessStartDate time.Time `json:"access_start_date" validate:"required"`
	AccessEndDate   time.Time `json:"access_end_date" validate:"required"`
}

// PATCH /api/guests/invites/:id/window
func (h *GuestHandler) UpdateWindow(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	var body updateWindowRequest
	if !bindAndValidate(c, &body) {
		return
	}

	invite, err := h.invites.UpdateWindow(requestContext(c), c.Param("id"), body.AccessStartDate, body.AccessEndDate)
	if err != nil {
		writeInviteError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toInviteDTO(invite, time.Now()))
}

type grantPermissionRequest struct {
	EventID            string `json:"event_id" validate:"required"`
	PermissionLevel    string `json:"permission_level" validate:"required,oneof=viewer moderator manager"`
	DailyApprovalLimit *int   `json:"daily_approval_limit"`
}

// POST /api/guests/invites/:id/permissions
func (h *GuestHandler) GrantPermission(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	var body grantPermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	grant, err := h.perms.Grant(requestContext(c), services.GrantPermissionInput{
		GuestInviteID:      c.Param("id"),
		EventID:            body.EventID,
		PermissionLevel:    body.PermissionLevel,
		DailyApprovalLimit: body.DailyApprovalLimit,
	})
	if err != nil {
		writePermissionError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, grant)
}

type updatePermissionRequest struct {
	PermissionLevel    string `json:"permission_level" validate:"required,oneof=viewer moderator manager"`
	DailyApprovalLimit *int   `json:"daily_approval_limit"`
}

// PATCH /api/guests/invites/:id/permissions/:eventID
func (h *GuestHandler) UpdatePermission(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	var body updatePermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	grant, err := h.perms.Update(requestContext(c), services.UpdatePermissionInput{
		GuestInviteID:      c.Param("id"),
		EventID:            c.Param("eventID"),
		PermissionLevel:    body.PermissionLevel,
		DailyApprovalLimit: body.DailyApprovalLimit,
	})
	if err != nil {
		writePermissionError(c, err)
		return
	}
	response.Success(c, http.StatusOK, grant)
}

// DELETE /api/guests/invites/:id/permissions/:eventID
func (h *GuestHandler) RevokePermission(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	if err := h.perms.Revoke(requestContext(c), c.Param("id"), c.Param("eventID")); err != nil {
		writePermissionError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/guests/invites/:id/permissions
func (h *GuestHandler) ListPermissions(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	grants, err := h.perms.List(requestContext(c), c.Param("id"))
	if err != nil {
		writePermissionError(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}

// GET /api/guests/invites/:id/audit
func (h *GuestHandler) ListGuestAudit(c *gin.Context) {
	if _, ok := h.agencyScope(c); !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	entries, total, err := h.audit.ListGuest(requestContext(c), c.Param("id"), page, perPage)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, entries, &response.Meta{Page: page, PerPage: perPage, Total: int(total)})
}

func writeInviteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGuestInviteNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrInvalidAccessWindow):
		response.Error(c, appErrors.NewBadRequest("access start date must fall on or before the end date"))
	case errors.Is(err, services.ErrGuestInvitePending):
		response.Error(c, appErrors.NewBadRequest("a pending invite already exists for this email"))
	case errors.Is(err, services.ErrGuestInviteAlreadyUsed):
		response.Error(c, appErrors.NewBadRequest("invite has already been accepted"))
	case errors.Is(err, services.ErrGuestInviteRevoked):
		response.Error(c, appErrors.NewBadRequest("invite has been revoked"))
	case errors.Is(err, services.ErrGuestInviteExpired):
		response.Error(c, appErrors.NewBadRequest("invite has expired"))
	default:
		response.Error(c, appErrors.ErrInternalServer)
	}
}

func writePermissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGuestInviteNotFound),
		errors.Is(err, services.ErrGuestPermissionNotFound),
		errors.Is(err, services.ErrEventNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrInvalidPermissionLevel):
		response.Error(c, appErrors.NewBadRequest("permission level must be viewer, moderator or manager"))
	case errors.Is(err, services.ErrGuestPermissionExists):
		response.Error(c, appErrors.NewBadRequest("a permission for this event already exists"))
	case errors.Is(err, services.ErrGuestInviteRevoked):
		response.Error(c, appErrors.NewBadRequest("invite has been revoked"))
	default:
		response.Error(c, appErrors.ErrInternalServer)
	}
}
