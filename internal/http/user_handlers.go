package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"itemscout/internal/service"
)

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}
