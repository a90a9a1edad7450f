package notification

import (
	"errors"
	"net/http"
	"strconv"

	midsec "MuseShare/middleware/security"
	"MuseShare/tools/errs"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func respondErr(c *gin.Context, err error) {
	var ce *errs.CodeError
	if !errors.As(err, &ce) {
		ce = errs.ErrInternal.WithDetail(err.Error())
	}
	c.JSON(errs.HTTPStatus(err), ce)
}

// HandlerList GET /api/notifications?limit=
func (h *Handler) HandlerList(c *gin.Context) {
	userID := midsec.UserID(c)

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := h.store.List(c.Request.Context(), userID, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// HandlerMarkRead PATCH /api/notifications/:id/read
func (h *Handler) HandlerMarkRead(c *gin.Context) {
	userID := midsec.UserID(c)

	ok, err := h.store.MarkRead(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if !ok {
		respondErr(c, errs.ErrRecordNotFound.WithDetail("notification not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// HandlerMarkAllRead PATCH /api/notifications/read-all
func (h *Handler) HandlerMarkAllRead(c *gin.Context) {
	userID := midsec.UserID(c)

	if err := h.store.MarkAllRead(c.Request.Context(), userID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}

// HandlerDelete DELETE /api/notifications/:id
func (h *Handler) HandlerDelete(c *gin.Context) {
	userID := midsec.UserID(c)

	ok, err := h.store.Delete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if !ok {
		respondErr(c, errs.ErrRecordNotFound.WithDetail("notification not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

// HandlerDeleteAll DELETE /api/notifications
func (h *Handler) HandlerDeleteAll(c *gin.Context) {
	userID := midsec.UserID(c)

	if err := h.store.DeleteAll(c.Request.Context(), userID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications deleted"})
}
