package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/middleware"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/services"
)

const keepAliveInterval = 25 * time.Second

type GalleryHandler struct {
	gallery  *services.GalleryService
	sessions *services.SessionService
	hub      *gallery.Hub
}

func NewGalleryHandler(galleryService *services.GalleryService, sessions *services.SessionService, hub *gallery.Hub) *GalleryHandler {
	return &GalleryHandler{
		gallery:  galleryService,
		sessions: sessions,
		hub:      hub,
	}
}

// ListGallery godoc
// @Summary     List the gallery
// @Description Returns the caller's processing and sci-fi sessions merged newest first, optionally
// @Description narrowed by type and a case-insensitive search over name/title, description and tags.
// @Description degraded is true when one collection could not be read.
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Param       type query string false "Session type" Enums(all, processing, scifi)
// @Param       q    query string false "Search term"
// @Success     200 {object} gallery.Snapshot
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /gallery [get]
func (h *GalleryHandler) ListGallery(c *gin.Context) {
	typ, err := gallery.ParseTypeFilter(c.Query("type"))
	if err != nil {
		badRequest(c, "invalid type filter", err)
		return
	}

	snap, err := h.gallery.List(c.Request.Context(), middleware.UserID(c), typ, c.Query("q"))
	if err != nil {
		respondError(c, "failed to load gallery", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RequestRefresh godoc
// @Summary     Refresh every open gallery of the caller
// @Description Announces a change to the caller's sessions; each open gallery view re-fetches.
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Success     202 {object} models.RefreshResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /gallery/refresh [post]
func (h *GalleryHandler) RequestRefresh(c *gin.Context) {
	h.sessions.Refresh(middleware.UserID(c))
	c.JSON(http.StatusAccepted, models.RefreshResponse{
		Status:      "refresh requested",
		RequestedAt: time.Now().UTC(),
	})
}

// Watch godoc
// @Summary     Stream a live gallery
// @Description Opens a gallery view and streams it as Server-Sent Events: "watch" carries the view id,
// @Description "sessions" the merged list after each fetch and "toast" user notifications.
// @Description EventSource clients may pass the token as the access_token query parameter.
// @Tags        gallery
// @Produce     text/event-stream
// @Security    Bearer
// @Success     200
// @Failure     401 {object} models.ErrorResponse
// @Router      /gallery/watch [get]
func (h *GalleryHandler) Watch(c *gin.Context) {
	view := h.hub.Open(middleware.UserID(c))
	defer h.hub.Close(view.ID)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-view.Done():
			return false
		case ev := <-view.Events():
			c.SSEvent(string(ev.Kind), ev.Data)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			return true
		}
	})
}

// SetVisibility godoc
// @Summary     Report gallery visibility
// @Description Records whether the gallery is visible. Becoming visible re-fetches when the last
// @Description fetch is at least the visibility threshold old.
// @Tags        gallery
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       watch_id path string true "Gallery view ID"
// @Param       request  body models.VisibilityRequest true "Visibility"
// @Success     200 {object} models.VisibilityResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /gallery/watch/{watch_id}/visibility [post]
func (h *GalleryHandler) SetVisibility(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}

	var req models.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	refresher := view.Refresher()
	refreshing := refresher.SetVisible(*req.Visible)
	c.JSON(http.StatusOK, models.VisibilityResponse{
		Visible:    *req.Visible,
		Refreshing: refreshing,
		State:      refresher.State().String(),
	})
}

// RefreshView godoc
// @Summary     Refresh one gallery view
// @Description Manual refresh: re-fetches now and reports failures as an error toast.
// @Tags        gallery
// @Produce     json
// @Security    Bearer
// @Param       watch_id path string true "Gallery view ID"
// @Success     202 {object} models.RefreshResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /gallery/watch/{watch_id}/refresh [post]
func (h *GalleryHandler) RefreshView(c *gin.Context) {
	view, ok := h.view(c)
	if !ok {
		return
	}

	status := "refresh started"
	if !view.Refresher().Refresh(gallery.RequestFor(gallery.TriggerManual)) {
		status = "refresh queued"
	}
	c.JSON(http.StatusAccepted, models.RefreshResponse{
		Status:      status,
		RequestedAt: time.Now().UTC(),
	})
}

func (h *GalleryHandler) view(c *gin.Context) (*gallery.View, bool) {
	view, ok := h.hub.Get(c.Param("watch_id"), middleware.UserID(c))
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "gallery view not found"})
		return nil, false
	}
	return view, true
}
