package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleVerifyByCode is the one unauthenticated endpoint. An unknown code is
// a normal outcome, not an error, so the shape stays 200 with found=false.
func (s *Server) handleVerifyByCode(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_ARGUMENT", "verification code is required")
		return
	}
	result, err := s.verify.VerifyByCode(c.Request.Context(), code, c.ClientIP())
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
