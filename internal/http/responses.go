package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"itemscout/internal/domain"
	"itemscout/internal/service"
)

// ItemResponse mirrors the document shape the mobile client reads.
type ItemResponse struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Coordinates string `json:"coordinates,omitempty"`
	User        string `json:"user"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type UserResponse struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

type ItemPageResponse struct {
	Items []ItemResponse `json:"items"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
	Total int64          `json:"total"`
}

func itemToResponse(item domain.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Image:       item.Image,
		Coordinates: item.Coordinates,
		User:        item.UserID,
		CreatedAt:   item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func pageToResponse(page *service.ItemPage) ItemPageResponse {
	resp := ItemPageResponse{
		Items: make([]ItemResponse, len(page.Items)),
		Page:  page.Page,
		Pages: page.Pages,
		Total: page.Total,
	}
	for i := range page.Items {
		resp.Items[i] = itemToResponse(page.Items[i])
	}
	return resp
}

func (h *Handler) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error", "error": err.Error()})
}

// itemError maps item service errors; action completes "User not authorized to ... this item".
func (h *Handler) itemError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Item not found"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authorized to " + action + " this item"})
	case errors.Is(err, service.ErrInvalidItem):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	default:
		h.serverError(c, err)
	}
}
