package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/models"
)

// Health godoc
// @Summary     Health check
// @Description Reports the session store in use and how many live gallery views are open.
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func Health(storeDriver string, hub *gallery.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		views := 0
		if hub != nil {
			views = hub.Len()
		}
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       "ok",
			Store:        storeDriver,
			GalleryViews: views,
		})
	}
}
