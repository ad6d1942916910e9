package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/mdaccula/postcontrol/internal/auth"
	"github.com/mdaccula/postcontrol/internal/guests"
	"github.com/mdaccula/postcontrol/internal/middleware"
	"github.com/mdaccula/postcontrol/internal/services"
	appErrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/response"
)

type AuthHandler struct {
	users    *services.UserService
	jwt      *iauth.JWTService
	resolver *guests.Resolver
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NewAuthHandler wires the authentication endpoints.
func NewAuthHandler(db *gorm.DB, jwt *iauth.JWTService, resolver *guests.Resolver) (*AuthHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db, audit)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{users: users, jwt: jwt, resolver: resolver}, nil
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), body.Email, body.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrUserDisabled) {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		response.Error(c, appErrors.ErrInvalidCredentials)
		return
	}

	// A login may follow grant changes made while the user was offline.
	if h.resolver != nil {
		h.resolver.Invalidate(requestContext(c), user.ID)
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if h.resolver != nil && userID != "" {
		h.resolver.Invalidate(requestContext(c), userID)
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	payload := gin.H{"user": user}
	if h.resolver != nil && !user.IsAdmin {
		payload["is_active_guest"] = h.resolver.IsActiveGuest(requestContext(c), userID)
	}
	response.Success(c, http.StatusOK, payload)
}
