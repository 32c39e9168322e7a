package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"heritage-gallery-backend/internal/middleware"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/restoration"
)

// respondError maps a service error to a status code. msg is the short
// error text shown to the client; the wrapped error goes in Message.
func respondError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg,
			"path", c.FullPath(),
			"user_id", middleware.UserID(c),
			"error", err,
		)
	}

	if errors.Is(err, models.ErrSessionNotFound) {
		msg = "session not found"
	}
	c.JSON(status, models.ErrorResponse{Error: msg, Message: err.Error()})
}

func statusFor(err error) int {
	var upstream *restoration.StatusError
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidKind),
		errors.Is(err, models.ErrInvalidField),
		errors.Is(err, models.ErrNoOriginalImage),
		errors.Is(err, restoration.ErrForbiddenAddress):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg, Message: err.Error()})
}
