package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/service"
	"github.com/dhruvin2968/facebook-messaging/pkg/log"
	"github.com/dhruvin2968/facebook-messaging/pkg/response"
)

// HTTPHandler serves the read side of the API: conversation listings,
// room history, and the presence snapshot.
type HTTPHandler struct {
	service service.MessagingService
}

// NewHTTPHandler creates the REST handler.
func NewHTTPHandler(svc service.MessagingService) *HTTPHandler {
	return &HTTPHandler{service: svc}
}

// ListConversations handles GET /api/v1/conversations
// Returns the caller's rooms ordered by most recent activity.
func (h *HTTPHandler) ListConversations(c *gin.Context) {
	userID := currentUserID(c)

	summaries, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("list conversations failed")
		response.InternalError(c, "failed to list conversations")
		return
	}

	if summaries == nil {
		summaries = []domain.ConversationSummary{}
	}
	response.Success(c, gin.H{"conversations": summaries, "total": len(summaries)})
}

// ListMessages handles GET /api/v1/rooms/:room_id/messages
// Query params: after_seq (exclusive cursor, default 0), limit.
func (h *HTTPHandler) ListMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := currentUserID(c)

	afterSeq, err := strconv.ParseInt(c.DefaultQuery("after_seq", "0"), 10, 64)
	if err != nil || afterSeq < 0 {
		response.BadRequest(c, "invalid after_seq")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		response.BadRequest(c, "invalid limit")
		return
	}

	page, err := h.service.ListMessages(c.Request.Context(), userID, roomID, afterSeq, limit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotParticipant):
			response.Forbidden(c, "not a participant of this room")
		case errors.Is(err, domain.ErrInvalidRoomID):
			response.BadRequest(c, "malformed room id")
		default:
			log.Ctx(c.Request.Context()).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("list messages failed")
			response.InternalError(c, "failed to list messages")
		}
		return
	}

	response.Success(c, page)
}

// OnlineUsers handles GET /api/v1/online
// Returns the current presence snapshot.
func (h *HTTPHandler) OnlineUsers(c *gin.Context) {
	online := h.service.OnlineUsers()
	response.Success(c, gin.H{"online": online, "total": len(online)})
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
