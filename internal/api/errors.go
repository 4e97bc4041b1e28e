package api

import (
	"net/http"

	"gennotes/pkg/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByCode = map[domain.Code]int{
	domain.CodeInvalidUpdateShape:      http.StatusBadRequest,
	domain.CodeMissingSpecialTag:       http.StatusBadRequest,
	domain.CodeSpecialTagValueChanged:  http.StatusBadRequest,
	domain.CodeMissingRequiredTag:      http.StatusBadRequest,
	domain.CodeMissingVersionParameter: http.StatusBadRequest,
	domain.CodeInvalidTags:             http.StatusBadRequest,
	domain.CodeUnknownVariant:          http.StatusBadRequest,
	domain.CodeEditConflict:            http.StatusConflict,
	domain.CodeDuplicateVariant:        http.StatusConflict,
	domain.CodeNotFound:                http.StatusNotFound,
	domain.CodeForbidden:               http.StatusForbidden,
}

// statusFor maps an error to its HTTP status; non-domain errors are 500s.
func statusFor(err error) int {
	if de, ok := domain.AsError(err); ok {
		if status, found := statusByCode[de.Code]; found {
			return status
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"detail": "Internal server error."})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": err.Error()})
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}
