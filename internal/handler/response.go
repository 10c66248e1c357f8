package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradelens/internal/ingest"
	"tradelens/internal/normalize"
	"tradelens/internal/repository"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail writes err with the status its kind maps to.
func Fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusNotFound {
		msg = "run not found"
	}
	Error(c, status, msg, nil)
}

// statusFor maps input errors to 400 and a missing run to 404. Everything
// else is reported as an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrMalformedChat),
		errors.Is(err, ingest.ErrEmptyPortfolio),
		errors.Is(err, normalize.ErrMissingCategory):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
