package chat

import (
	"errors"
	"net/http"
	"strconv"

	midsec "MuseShare/middleware/security"
	"MuseShare/module/chat/service"
	"MuseShare/service/presence"
	"MuseShare/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler exposes the message engine over HTTP and hands post-commit
// effects to the presence service.
type Handler struct {
	engine *service.Engine
	pres   *presence.Manager
}

func NewHandler(engine *service.Engine, pres *presence.Manager) *Handler {
	return &Handler{engine: engine, pres: pres}
}

func respondErr(c *gin.Context, err error) {
	var ce *errs.CodeError
	if !errors.As(err, &ce) {
		ce = errs.ErrInternal.WithDetail(err.Error())
	}
	c.JSON(errs.HTTPStatus(err), ce)
}

// deliver pushes effects best-effort; the durable state is already
// committed, so nothing here can fail the request.
func (h *Handler) deliver(effects []service.Effect) {
	for _, e := range effects {
		switch {
		case e.ToConversation != "":
			h.pres.SendToConversation(e.ToConversation, e.Event, e.Payload)
		case e.ToUser != "":
			h.pres.SendToUser(e.ToUser, e.Event, e.Payload)
		}
	}
}

type createConversationReq struct {
	ParticipantIDs []string `json:"participantIds"`
}

// HandlerCreateConversation POST /api/conversations
func (h *Handler) HandlerCreateConversation(c *gin.Context) {
	userID := midsec.UserID(c)

	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}

	conv, created, err := h.engine.GetOrCreateConversation(c.Request.Context(), userID, req.ParticipantIDs)
	if err != nil {
		respondErr(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

// HandlerListConversations GET /api/conversations
func (h *Handler) HandlerListConversations(c *gin.Context) {
	userID := midsec.UserID(c)

	convs, err := h.engine.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// HandlerDeleteConversation DELETE /api/conversations/:id
func (h *Handler) HandlerDeleteConversation(c *gin.Context) {
	userID := midsec.UserID(c)

	effects, err := h.engine.DeleteConversation(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	h.deliver(effects)
	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

// HandlerSendMessage POST /api/messages
func (h *Handler) HandlerSendMessage(c *gin.Context) {
	h.sendMessage(c, false)
}

// HandlerReplyFeed POST /api/messages/reply-feed
func (h *Handler) HandlerReplyFeed(c *gin.Context) {
	h.sendMessage(c, true)
}

func (h *Handler) sendMessage(c *gin.Context, requireFeed bool) {
	userID := midsec.UserID(c)

	var in service.SendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, errs.ErrValidation.WithDetail(err.Error()))
		return
	}
	if requireFeed && in.RepliedFeedID == "" {
		respondErr(c, errs.ErrValidation.WithDetail("repliedFeedId is required"))
		return
	}

	msg, effects, err := h.engine.SendMessage(c.Request.Context(), userID, in)
	if err != nil {
		respondErr(c, err)
		return
	}
	h.deliver(effects)
	c.JSON(http.StatusCreated, msg)
}

// HandlerGetMessages GET /api/messages/:conversationId?page=&limit=
func (h *Handler) HandlerGetMessages(c *gin.Context) {
	userID := midsec.UserID(c)

	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

	pageOut, err := h.engine.GetMessages(c.Request.Context(), userID, c.Param("conversationId"), page, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, pageOut)
}
