package track

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"MuseShare/global"
	"MuseShare/logger"
	midsec "MuseShare/middleware/security"
	notifstore "MuseShare/module/notification"
	notifmodel "MuseShare/module/notification/model"
	"MuseShare/module/track/model"
	"MuseShare/module/track/service"
	"MuseShare/service/presence"
	"MuseShare/service/storage"
	"MuseShare/tools/errs"
	"MuseShare/tools/ids"

	"github.com/gin-gonic/gin"
)

// Handler exposes play confirmation, trending, likes and listening history.
// ConfirmPlay is the hot path: it touches only the fast store.
type Handler struct {
	plays  *service.PlayService
	store  *Store
	notifs *notifstore.Store
	pres   *presence.Manager
	cache  *storage.ResponseCache
}

func NewHandler(plays *service.PlayService, store *Store, notifs *notifstore.Store, pres *presence.Manager, cache *storage.ResponseCache) *Handler {
	return &Handler{plays: plays, store: store, notifs: notifs, pres: pres, cache: cache}
}

func respondErr(c *gin.Context, err error) {
	var ce *errs.CodeError
	if !errors.As(err, &ce) {
		ce = errs.ErrInternal.WithDetail(err.Error())
	}
	c.JSON(errs.HTTPStatus(err), ce)
}

// HandlerConfirmPlay POST /api/tracks/:id/play
//
// Counts at most one play per (user, track) per dedup window. A repeat
// inside the window is still a 200: not counting is a normal outcome,
// not a client error.
func (h *Handler) HandlerConfirmPlay(c *gin.Context) {
	userID := midsec.UserID(c)
	trackID := c.Param("id")

	counted, err := h.plays.ConfirmPlay(c.Request.Context(), userID, trackID)
	if err != nil {
		respondErr(c, err)
		return
	}
	msg := "Play confirmed"
	if !counted {
		msg = "Play already counted"
	}
	c.JSON(http.StatusOK, gin.H{"counted": counted, "message": msg})
}

// HandlerTrending GET /api/tracks/trending
func (h *Handler) HandlerTrending(c *gin.Context) {
	ctx := c.Request.Context()

	var cached []*model.Track
	if ok, err := h.cache.GetJSON(ctx, global.TrendingKey, &cached); err == nil && ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	tracks, err := h.store.Trending(ctx, global.Config.TrendingLimit)
	if err != nil {
		respondErr(c, err)
		return
	}
	if err := h.cache.SetJSON(ctx, global.TrendingKey, tracks, global.Config.TrendingTTL); err != nil {
		logger.Warnf("[track] cache trending: %v", err)
	}
	c.JSON(http.StatusOK, tracks)
}

// HandlerLike POST /api/tracks/:id/like
func (h *Handler) HandlerLike(c *gin.Context) {
	userID := midsec.UserID(c)
	trackID := c.Param("id")
	ctx := c.Request.Context()

	t, err := h.store.FindTrack(ctx, trackID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if t == nil {
		respondErr(c, errs.ErrRecordNotFound.WithDetail("track not found"))
		return
	}

	liked, err := h.store.AddLike(ctx, trackID, userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if liked {
		// cached trending payload carries liked counts
		_ = h.cache.Invalidate(ctx, global.TrendingKey)
	}
	if liked && t.ArtistID != "" && t.ArtistID != userID {
		n := &notifmodel.Notification{
			ID:        ids.GenerateString(),
			Recipient: t.ArtistID,
			Sender:    userID,
			Type:      notifmodel.TypeLikeTrack,
			Content:   "liked your track " + t.Title,
			TrackID:   trackID,
			CreatedAt: time.Now(),
		}
		if err := h.notifs.Insert(ctx, n); err != nil {
			logger.Warnf("[track] like notification: %v", err)
		} else {
			h.pres.SendToUser(t.ArtistID, presence.EventNewNotification, n)
		}
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

// HandlerUnlike DELETE /api/tracks/:id/like
func (h *Handler) HandlerUnlike(c *gin.Context) {
	userID := midsec.UserID(c)
	trackID := c.Param("id")

	removed, err := h.store.RemoveLike(c.Request.Context(), trackID, userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if removed {
		_ = h.cache.Invalidate(c.Request.Context(), global.TrendingKey)
	}
	c.JSON(http.StatusOK, gin.H{"liked": false, "changed": removed})
}

type recordHistoryReq struct {
	TrackID string `json:"trackId"`
}

// HandlerRecordHistory POST /api/history
//
// Persists the listening event and fans a friendListeningUpdate out to
// the user's online followers.
func (h *Handler) HandlerRecordHistory(c *gin.Context) {
	userID := midsec.UserID(c)
	ctx := c.Request.Context()

	var req recordHistoryReq
	if err := c.ShouldBindJSON(&req); err != nil || req.TrackID == "" {
		respondErr(c, errs.ErrValidation.WithDetail("trackId is required"))
		return
	}

	t, err := h.store.FindTrack(ctx, req.TrackID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if t == nil {
		respondErr(c, errs.ErrRecordNotFound.WithDetail("track not found"))
		return
	}

	row := &model.History{
		ID:       ids.GenerateString(),
		UserID:   userID,
		TrackID:  req.TrackID,
		PlayedAt: time.Now(),
	}
	if err := h.store.InsertHistory(ctx, row); err != nil {
		respondErr(c, err)
		return
	}

	h.pres.SendToFollowers(ctx, userID, presence.EventFriendListeningUpdate, gin.H{
		"userId":   userID,
		"trackId":  t.ID,
		"title":    t.Title,
		"artistId": t.ArtistID,
		"playedAt": row.PlayedAt,
	})
	c.JSON(http.StatusCreated, row)
}

// HandlerListHistory GET /api/history?limit=
func (h *Handler) HandlerListHistory(c *gin.Context) {
	userID := midsec.UserID(c)

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := h.store.ListHistory(c.Request.Context(), userID, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
