package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// respondError maps domain errors to HTTP status codes and writes the
// standard error envelope.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, model.ErrAmbiguousClassification):
		// 422: the payload is well-formed but needs a manual category.
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInsufficientBaselineData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidDateWindow):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownCategory):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrLockHeld):
		status = http.StatusConflict
	case errors.Is(err, model.ErrStaleLock):
		status = http.StatusConflict
	}

	c.JSON(status, model.ErrorResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// respondBadRequest writes a 400 with binding details.
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{
		Success: false,
		Error:   "invalid payload",
		Details: err.Error(),
	})
}
