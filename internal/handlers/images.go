package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"heritage-gallery-backend/internal/middleware"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/services"
)

const maxUploadSize = 10 << 20

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type ImagesHandler struct {
	images services.ImageStore
}

// NewImagesHandler accepts a nil store; uploads then answer 503.
func NewImagesHandler(images services.ImageStore) *ImagesHandler {
	return &ImagesHandler{images: images}
}

// Upload godoc
// @Summary     Upload a photo
// @Description Stores a photo in Supabase Storage under the caller's uploads folder and returns its public URL.
// @Description Use the URL as originalImageUrl when creating a session.
// @Tags        images
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       photo formData file true "Image file (jpeg, png, webp or gif, max 10MB)"
// @Success     201 {object} models.UploadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /images [post]
func (h *ImagesHandler) Upload(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "storage not available"})
		return
	}

	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "no file uploaded",
			Message: "please provide the image in the \"photo\" form field",
		})
		return
	}
	if header.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error:   "file too large",
			Message: fmt.Sprintf("maximum size is %d bytes", maxUploadSize),
		})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := allowedImageTypes[strings.TrimSpace(contentType)]
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "unsupported file type",
			Message: "allowed types: image/jpeg, image/png, image/webp, image/gif",
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read file", Message: err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read file", Message: err.Error()})
		return
	}

	filename := uuid.NewString() + ext
	storagePath, url, err := h.images.Upload(middleware.UserID(c), "uploads", filename, contentType, data)
	if err != nil {
		respondError(c, "failed to upload file", err)
		return
	}

	c.JSON(http.StatusCreated, models.UploadResponse{
		URL:      url,
		Path:     storagePath,
		Filename: filepath.Base(storagePath),
		Size:     int64(len(data)),
	})
}
