package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"heritage-gallery-backend/internal/config"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/middleware"
)

type Handlers struct {
	Sessions *SessionsHandler
	Images   *ImagesHandler
	Gallery  *GalleryHandler
}

// NewRouter registers the health check, the Swagger UI and the
// authenticated /api/v1 routes.
func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	var hub *gallery.Hub
	if h.Gallery != nil {
		hub = h.Gallery.hub
	}
	router.GET("/health", Health(cfg.StoreDriver, hub))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	api.POST("/sessions/:kind", h.Sessions.CreateSession)
	api.GET("/sessions/:kind", h.Sessions.ListSessions)
	api.GET("/sessions/:kind/:session_id", h.Sessions.GetSession)
	api.PATCH("/sessions/:kind/:session_id", h.Sessions.UpdateSession)
	api.DELETE("/sessions/:kind/:session_id", h.Sessions.DeleteSession)
	api.POST("/sessions/:kind/:session_id/messages", h.Sessions.AppendMessage)
	api.POST("/sessions/:kind/:session_id/chat", h.Sessions.Chat)
	api.POST("/sessions/:kind/:session_id/process", h.Sessions.ProcessSession)

	api.POST("/images", h.Images.Upload)

	api.GET("/gallery", h.Gallery.ListGallery)
	api.POST("/gallery/refresh", h.Gallery.RequestRefresh)
	api.GET("/gallery/watch", h.Gallery.Watch)
	api.POST("/gallery/watch/:watch_id/visibility", h.Gallery.SetVisibility)
	api.POST("/gallery/watch/:watch_id/refresh", h.Gallery.RefreshView)

	return router
}
