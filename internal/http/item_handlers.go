package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"itemscout/internal/service"
)

type createItemRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Coordinates string `json:"coordinates"`
	Image       string `json:"image"`
}

type updateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Coordinates *string `json:"coordinates"`
	Image       *string `json:"image"`
}

func (h *Handler) listItems(c *gin.Context) {
	h.respondWithPage(c, c.Query("search"))
}

func (h *Handler) searchItems(c *gin.Context) {
	q := strings.TrimSpace(c.Query("search"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Search query is required"})
		return
	}
	h.respondWithPage(c, q)
}

func (h *Handler) respondWithPage(c *gin.Context, search string) {
	page, err := h.items.List(c.Request.Context(), service.ListQuery{
		Requester: currentUser(c).ID,
		Search:    search,
		Page:      service.ParsePageRequest(c.Query("page"), c.Query("limit")),
	})
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageToResponse(page))
}

func (h *Handler) getItem(c *gin.Context) {
	item, err := h.items.Get(c.Request.Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		h.itemError(c, err, "access")
		return
	}
	c.JSON(http.StatusOK, itemToResponse(*item))
}

func (h *Handler) createItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Item name is required"})
		return
	}

	item, err := h.items.Create(c.Request.Context(), currentUser(c).ID, service.ItemInput{
		Name:        req.Name,
		Description: req.Description,
		Coordinates: req.Coordinates,
		Image:       req.Image,
	})
	if err != nil {
		h.itemError(c, err, "create")
		return
	}
	c.JSON(http.StatusCreated, itemToResponse(*item))
}

func (h *Handler) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid item payload"})
		return
	}

	item, err := h.items.Update(c.Request.Context(), currentUser(c).ID, c.Param("id"), service.ItemPatch{
		Name:        req.Name,
		Description: req.Description,
		Coordinates: req.Coordinates,
		Image:       req.Image,
	})
	if err != nil {
		h.itemError(c, err, "update")
		return
	}
	c.JSON(http.StatusOK, itemToResponse(*item))
}

func (h *Handler) deleteItem(c *gin.Context) {
	if err := h.items.Delete(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		h.itemError(c, err, "delete")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

func (h *Handler) uploadImage(c *gin.Context) {
	// leave room for multipart framing around the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No image uploaded"})
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Image too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.serverError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	contentType, err := sniffImageType(file, fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only image uploads are allowed"})
		return
	}

	key := uuid.NewString() + imageExtensions[contentType]
	if err := h.storage.Save(c.Request.Context(), key, file, contentType); err != nil {
		h.serverError(c, err)
		return
	}

	imageURL := h.storage.URL(h.requestBaseURL(c), key)
	h.logger.WithField("key", key).Infof("image uploaded (%d bytes)", fileHeader.Size)
	c.JSON(http.StatusOK, gin.H{"imageUrl": imageURL})
}

// sniffImageType inspects the first bytes of the upload and rewinds it. HEIC
// is not recognised by content sniffing, so it is accepted on its declared
// type and extension alone.
func sniffImageType(file io.ReadSeeker, declared, filename string) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	detected := http.DetectContentType(head[:n])
	if _, ok := imageExtensions[detected]; ok && detected != "image/heic" && detected != "image/heif" {
		return detected, nil
	}

	declared = strings.ToLower(strings.TrimSpace(declared))
	ext := strings.ToLower(filepath.Ext(filename))
	if (declared == "image/heic" || declared == "image/heif") && (ext == ".heic" || ext == ".heif") {
		return declared, nil
	}
	return "", fmt.Errorf("unsupported content type %q", detected)
}

func (h *Handler) requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" && h.fromTrustedProxy(c) {
		switch forwarded := strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0])); forwarded {
		case "http", "https":
			scheme = forwarded
		}
	}
	return scheme + "://" + c.Request.Host
}
