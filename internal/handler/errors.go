package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"schooladmin/internal/apperr"
)

// writeError maps service error kinds to HTTP statuses with a short message.
func (h *Handler) writeError(c *gin.Context, err error) {
	kinds := []struct {
		kind   error
		status int
	}{
		{apperr.ErrInvalidArgument, http.StatusBadRequest},
		{apperr.ErrUnauthorized, http.StatusUnauthorized},
		{apperr.ErrForbidden, http.StatusForbidden},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrStorage, http.StatusInternalServerError},
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			c.JSON(k.status, gin.H{"error": strings.TrimPrefix(err.Error(), k.kind.Error()+": ")})
			return
		}
	}
	h.logger.ErrorContext(c.Request.Context(), "unexpected service error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
