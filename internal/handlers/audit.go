package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mdaccula/postcontrol/internal/services"
	appErrors "github.com/mdaccula/postcontrol/pkg/errors"
	"github.com/mdaccula/postcontrol/pkg/response"
)

// AuditHandler exposes the admin audit log listing.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler wires the audit endpoints.
func NewAuditHandler(db *gorm.DB) (*AuditHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	return &AuditHandler{audit: audit}, nil
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	filters := services.AuditFilters{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Result:   c.Query("result"),
		Resource: c.Query("resource"),
	}
	if since := c.Query("since"); since != "" {
		if ts, err := time.Parse(time.RFC3339, since); err == nil {
			filters.Since = &ts
		}
	}
	if until := c.Query("until"); until != "" {
		if ts, err := time.Parse(time.RFC3339, until); err == nil {
			filters.Until = &ts
		}
	}

	entries, total, err := h.audit.List(requestContext(c), services.AuditListOptions{
		Page:     page,
		PageSize: perPage,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, entries, &response.Meta{Page: page, PerPage: perPage, Total: int(total)})
}
