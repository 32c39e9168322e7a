package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/middleware"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/services"
	"heritage-gallery-backend/internal/sessions"
)

type SessionsHandler struct {
	sessions   *services.SessionService
	chat       *services.ChatService
	processing *services.ProcessingService
}

func NewSessionsHandler(sessions *services.SessionService, chat *services.ChatService, processing *services.ProcessingService) *SessionsHandler {
	return &SessionsHandler{
		sessions:   sessions,
		chat:       chat,
		processing: processing,
	}
}

func sessionKind(c *gin.Context) (models.SessionKind, bool) {
	kind, err := models.ParseSessionKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid session kind",
			Message: "kind must be one of: processing, scifi",
		})
		return "", false
	}
	return kind, true
}

// CreateSession godoc
// @Summary     Create a session
// @Description Creates a processing session (name, originalImageUrl) or a sci-fi session (title).
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       kind    path string true "Session kind" Enums(processing, scifi)
// @Param       request body models.CreateProcessingSessionRequest true "Session fields"
// @Success     201 {object} gallery.Session
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /sessions/{kind} [post]
func (h *SessionsHandler) CreateSession(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}
	ownerID := middleware.UserID(c)

	var entry gallery.Session
	switch kind {
	case models.KindProcessing:
		var req models.CreateProcessingSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body", err)
			return
		}
		if req.ProcessingType != "" && !req.ProcessingType.Valid() {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "invalid processing type",
				Message: "processingType must be one of: super-resolution, restoration",
			})
			return
		}
		s, err := h.sessions.CreateProcessing(c.Request.Context(), ownerID, req.Session())
		if err != nil {
			respondError(c, "failed to create session", err)
			return
		}
		entry = gallery.ProcessingEntry(s)

	case models.KindSciFi:
		var req models.CreateSciFiSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body", err)
			return
		}
		s, err := h.sessions.CreateSciFi(c.Request.Context(), ownerID, req.Session())
		if err != nil {
			respondError(c, "failed to create session", err)
			return
		}
		entry = gallery.SciFiEntry(s)
	}

	c.JSON(http.StatusCreated, entry)
}

// ListSessions godoc
// @Summary     List sessions of one kind
// @Description Returns the caller's sessions of the given kind, most recently updated first.
// @Tags        sessions
// @Produce     json
// @Security    Bearer
// @Param       kind path string true "Session kind" Enums(processing, scifi)
// @Success     200 {array}  gallery.Session
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /sessions/{kind} [get]
func (h *SessionsHandler) ListSessions(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}

	list, err := h.sessions.List(c.Request.Context(), middleware.UserID(c), kind)
	if err != nil {
		respondError(c, "failed to list sessions", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetSession godoc
// @Summary     Get a session
// @Tags        sessions
// @Produce     json
// @Security    Bearer
// @Param       kind       path string true "Session kind" Enums(processing, scifi)
// @Param       session_id path string true "Session ID"
// @Success     200 {object} gallery.Session
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{kind}/{session_id} [get]
func (h *SessionsHandler) GetSession(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}

	entry, err := h.sessions.Get(c.Request.Context(), middleware.UserID(c), kind, c.Param("session_id"))
	if err != nil {
		respondError(c, "failed to get session", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// UpdateSession godoc
// @Summary     Update a session
// @Description Merges the given top-level fields into the session. id, userId, createdAt and
// @Description updatedAt are ignored; unknown fields are rejected.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       kind       path string true "Session kind" Enums(processing, scifi)
// @Param       session_id path string true "Session ID"
// @Param       request    body object true "Fields to merge"
// @Success     200 {object} gallery.Session
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{kind}/{session_id} [patch]
func (h *SessionsHandler) UpdateSession(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}

	var fields sessions.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	entry, err := h.sessions.Update(c.Request.Context(), middleware.UserID(c), kind, c.Param("session_id"), fields)
	if err != nil {
		respondError(c, "failed to update session", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// DeleteSession godoc
// @Summary     Delete a session
// @Description Deletes the session and its stored images. Deleting a session that is already gone succeeds.
// @Tags        sessions
// @Security    Bearer
// @Param       kind       path string true "Session kind" Enums(processing, scifi)
// @Param       session_id path string true "Session ID"
// @Success     204
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{kind}/{session_id} [delete]
func (h *SessionsHandler) DeleteSession(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), middleware.UserID(c), kind, c.Param("session_id")); err != nil {
		respondError(c, "failed to delete session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AppendMessage godoc
// @Summary     Append a message
// @Description Appends a message to the session's log. The server assigns the message id and time.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       kind       path string true "Session kind" Enums(processing, scifi)
// @Param       session_id path string true "Session ID"
// @Param       request    body models.AppendMessageRequest true "Message"
// @Success     200 {object} gallery.Session
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /sessions/{kind}/{session_id}/messages [post]
func (h *SessionsHandler) AppendMessage(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}

	var req models.AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	entry, err := h.sessions.AppendMessage(c.Request.Context(), middleware.UserID(c), kind, c.Param("session_id"), req)
	if err != nil {
		respondError(c, "failed to append message", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Chat godoc
// @Summary     Chat about a session
// @Description Appends the user's message, asks the assistant with the session history and appends its reply.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       kind       path string true "Session kind" Enums(processing, scifi)
// @Param       session_id path string true "Session ID"
// @Param       request    body models.ChatRequest true "User message"
// @Success     200 {object} gallery.Session
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /sessions/{kind}/{session_id}/chat [post]
func (h *SessionsHandler) Chat(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	entry, err := h.chat.Chat(c.Request.Context(), middleware.UserID(c), kind, c.Param("session_id"), req.Content)
	if err != nil {
		respondError(c, "failed to get assistant reply", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ProcessSession godoc
// @Summary     Restore or upscale a session's image
// @Description Sends the session's original image to the restoration API and records the processed image URL.
// @Tags        sessions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID"
// @Param       request    body models.ProcessSessionRequest true "Processing options"
// @Success     200 {object} gallery.Session
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /sessions/processing/{session_id}/process [post]
func (h *SessionsHandler) ProcessSession(c *gin.Context) {
	kind, ok := sessionKind(c)
	if !ok {
		return
	}
	if kind != models.KindProcessing {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid session kind",
			Message: "only processing sessions can be processed",
		})
		return
	}

	var req models.ProcessSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	if req.Intensity < 0 || req.Intensity > 100 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid intensity",
			Message: "intensity must be between 1 and 100",
		})
		return
	}

	entry, err := h.processing.Process(c.Request.Context(), middleware.UserID(c), c.Param("session_id"), req)
	if err != nil {
		respondError(c, "failed to process image", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
