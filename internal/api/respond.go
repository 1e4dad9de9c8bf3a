package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/logging"
)

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *apperrors.ValidationError
	switch {
	case apperrors.Is(err, apperrors.ErrPatternNotFound),
		apperrors.Is(err, apperrors.ErrStockNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrPresetImmutable):
		return http.StatusForbidden
	case apperrors.Is(err, apperrors.ErrDuplicateID):
		return http.StatusConflict
	case apperrors.As(err, &verr),
		apperrors.Is(err, apperrors.ErrInvalidPattern),
		apperrors.Is(err, apperrors.ErrUnknownMetric):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrNoData):
		return http.StatusUnprocessableEntity
	case apperrors.Is(err, apperrors.ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log := logging.FromContext(c.Request.Context())
		log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	errorResponse(c, status, err.Error())
}
