package http

import (
	"errors"
	"net/http"
	"strings"

	"wipetrace/internal/domain"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError maps the domain error taxonomy to transport codes: validation
// 400, unknown id 404, lost races and rejected transitions 409.
func WriteError(c *gin.Context, err error) {
	var invalid *domain.InvalidTransitionError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.As(err, &invalid):
		writeErrorCode(c, http.StatusConflict, "INVALID_TRANSITION", invalid.Error())
	case errors.Is(err, domain.ErrConflict):
		writeErrorCode(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, domain.ErrProofRetained):
		writeErrorCode(c, http.StatusConflict, "PROOF_RETAINED", err.Error())
	case domain.IsValidationError(err):
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
	case errors.Is(err, domain.ErrUnauthorized):
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	default:
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message})
}

// AuthMiddleware reads the identity the external session provider attached.
// The principal and role headers are trusted as given; the middleware only
// enforces role membership.
func AuthMiddleware(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		subject := strings.TrimSpace(c.GetHeader("X-Principal"))
		role := domain.Role(strings.TrimSpace(c.GetHeader("X-Role")))
		if subject == "" || !domain.ValidRole(role) {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "principal and role headers required")
			return
		}
		if _, ok := allowed[role]; !ok && role != domain.RoleAdmin {
			writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "role not permitted")
			return
		}
		c.Set(principalKey, domain.Principal{Subject: subject, Role: role})
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "principal missing")
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	if !ok {
		writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "principal malformed")
		return domain.Principal{}, false
	}
	return principal, true
}
