package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/mdaccula/postcontrol/internal/auth"
	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/services"
	appErrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/response"
)

// GuestAccessHandler exposes the public invite redemption flow.
type GuestAccessHandler struct {
	invites *services.GuestInviteService
	users   *services.UserService
	jwt     *iauth.JWTService
}

// NewGuestAccessHandler wires the public guest redemption endpoints.
func NewGuestAccessHandler(db *gorm.DB, jwt *iauth.JWTService, resolver *guests.Resolver, opts ...services.GuestInviteOption) (*GuestAccessHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	inviteOpts := append([]services.GuestInviteOption{
		services.WithInviteCacheInvalidator(resolver),
	}, opts...)
	invites, err := services.NewGuestInviteService(db, nil, audit, inviteOpts...)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db, audit)
	if err != nil {
		return nil, err
	}
	return &GuestAccessHandler{invites: invites, users: users, jwt: jwt}, nil
}

// GET /api/guest-access/invite?token=...
func (h *GuestAccessHandler) InviteInfo(c *gin.Context) {
	invite, err := h.invites.ValidateToken(requestContext(c), c.Query("token"))
	if err != nil {
		writeInviteError(c, err)
		return
	}

	// The token holder only learns what they need to decide on redemption.
	response.Success(c, http.StatusOK, gin.H{
		"email":             invite.Email,
		"access_start_date": invite.AccessStartDate,
		"access_end_date":   invite.AccessEndDate,
	})
}

type redeemRequest struct {
	Token       string `json:"token" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=128"`
}

// POST /api/guest-access/redeem
func (h *GuestAccessHandler) Redeem(c *gin.Context) {
	var body redeemRequest
	if !bindAndValidate(c, &body) {
		return
	}

	ctx := requestContext(c)

	invite, err := h.invites.ValidateToken(ctx, body.Token)
	if err != nil {
		writeInviteError(c, err)
		return
	}

	// The account is always bound to the invited email, never a caller-chosen one.
	user, err := h.users.EnsureGuestUser(ctx, invite.Email, body.Password, body.DisplayName)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	accepted, err := h.invites.AcceptInvite(ctx, invite.ID, user.ID)
	if err != nil {
		writeInviteError(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":  token,
		"user":   user,
		"invite": toInviteDTO(accepted, time.Now()),
	})
}
