package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/ai-gov/src/gov"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, gov.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, gov.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gov.ErrInvalidTransition), errors.Is(err, gov.ErrDuplicateVote):
		return http.StatusConflict
	case errors.Is(err, gov.ErrCollaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"err": ...}. Server-side failures are logged and their
// detail is not returned.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		} else {
			msg = "upstream unavailable"
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"err": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"err": err.Error()})
}
