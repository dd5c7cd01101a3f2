package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/statwatch/stats-proxy/pkg/client"
)

// httpStatus maps a typed failure onto its response status.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, client.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, client.ErrInvalidData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, client.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps response bodies to a short, upstream-free message.
func errorMessage(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "upstream rate limited, retry later"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusUnprocessableEntity:
		return "upstream returned invalid data"
	case http.StatusRequestTimeout:
		return "fetch timed out"
	default:
		return "internal error"
	}
}

// writeError renders the well-formed JSON error body for a typed failure.
func writeError(c echo.Context, err error) error {
	status := httpStatus(err)
	if status == http.StatusTooManyRequests {
		c.Response().Header().Set("Retry-After", "1")
	}
	return c.JSON(status, map[string]string{"error": errorMessage(status)})
}
