package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongoutil "MuseShare/data/database/mgo/mongoutil"
	"MuseShare/global"
	"MuseShare/logger"
	"MuseShare/middleware"
	midsec "MuseShare/middleware/security"
	"MuseShare/module/chat"
	chatservice "MuseShare/module/chat/service"
	"MuseShare/module/notification"
	"MuseShare/module/track"
	trackservice "MuseShare/module/track/service"
	"MuseShare/module/user"
	"MuseShare/service/mgo"
	"MuseShare/service/presence"
	"MuseShare/service/storage"
	redismgr "MuseShare/service/storage/redis"
	"MuseShare/tools/ids"
	"MuseShare/tools/safe"

	"github.com/gin-gonic/gin"
)

// healthHandler probes both stores end to end.
func healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := redismgr.GetRedis().Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "redis": err.Error()})
		return
	}
	if err := mongoutil.Check(ctx, &mongoutil.Config{
		Uri:      global.Config.MongoURI,
		Database: global.Config.MongoDatabase,
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "mongo": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func main() {
	if err := global.Load(); err != nil {
		logger.Errorf("[boot] load config: %v", err)
		os.Exit(1)
	}
	ids.SetNodeID(1)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := redismgr.InitRedis(redismgr.Config{
		Addr:     global.Config.RedisAddr,
		Password: global.Config.RedisPassword,
		DB:       global.Config.RedisDB,
	}); err != nil {
		logger.Errorf("[boot] redis: %v", err)
		os.Exit(1)
	}
	if err := mgo.Init(ctx, &mongoutil.Config{
		Uri:      global.Config.MongoURI,
		Database: global.Config.MongoDatabase,
	}); err != nil {
		logger.Errorf("[boot] mongo: %v", err)
		os.Exit(1)
	}

	// wiring
	authOpts := midsec.DefaultOptions([]byte(global.Config.JWTSecret))
	middleware.ConfigAuth(authOpts)
	middleware.Manager().Add(middleware.Origin())

	userStore := user.NewStore()
	pres := presence.NewManager(storage.NewPresenceState(), userStore)

	chatStore := chat.NewStore()
	engine := chatservice.NewEngine(chatStore, mgo.GetTx(), pres)
	chatHandler := chat.NewHandler(engine, pres)

	notifStore := notification.NewStore()
	notifHandler := notification.NewHandler(notifStore)

	playStore := storage.NewPlayStore()
	plays := trackservice.NewPlayService(playStore, global.Config.PlayDedupTTL)
	trackStore := track.NewStore()
	syncer := trackservice.NewSyncer(playStore, trackStore, global.Config.SyncInterval)
	trackHandler := track.NewHandler(plays, trackStore, notifStore, pres, storage.NewResponseCache())

	userHandler := user.NewHandler(userStore)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Manager().Use())

	api := r.Group("/api")
	auth := middleware.RouteOpt{IsAuth: true}
	open := middleware.RouteOpt{}

	middleware.POST(api, "/auth/login", userHandler.HandlerLogin, open)

	middleware.POST(api, "/conversations", chatHandler.HandlerCreateConversation, auth)
	middleware.GET(api, "/conversations", chatHandler.HandlerListConversations, auth)
	middleware.DELETE(api, "/conversations/:id", chatHandler.HandlerDeleteConversation, auth)

	middleware.POST(api, "/messages", chatHandler.HandlerSendMessage, auth)
	middleware.POST(api, "/messages/reply-feed", chatHandler.HandlerReplyFeed, auth)
	middleware.GET(api, "/messages/:conversationId", chatHandler.HandlerGetMessages, auth)

	middleware.POST(api, "/tracks/:id/play", trackHandler.HandlerConfirmPlay, auth)
	middleware.GET(api, "/tracks/trending", trackHandler.HandlerTrending, open)
	middleware.POST(api, "/tracks/:id/like", trackHandler.HandlerLike, auth)
	middleware.DELETE(api, "/tracks/:id/like", trackHandler.HandlerUnlike, auth)

	middleware.POST(api, "/history", trackHandler.HandlerRecordHistory, auth)
	middleware.GET(api, "/history", trackHandler.HandlerListHistory, auth)

	middleware.GET(api, "/notifications", notifHandler.HandlerList, auth)
	middleware.PATCH(api, "/notifications/read-all", notifHandler.HandlerMarkAllRead, auth)
	middleware.PATCH(api, "/notifications/:id/read", notifHandler.HandlerMarkRead, auth)
	middleware.DELETE(api, "/notifications", notifHandler.HandlerDeleteAll, auth)
	middleware.DELETE(api, "/notifications/:id", notifHandler.HandlerDelete, auth)

	r.GET("/ws", pres.HandleWS)
	r.GET("/healthz", healthHandler)

	syncer.Start()

	srv := &http.Server{Addr: global.Config.Addr, Handler: r}
	safe.Go(func() {
		logger.Infof("[boot] listening on %s", global.Config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[boot] serve: %v", err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[boot] shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	syncer.Stop()
	pres.Close()
	if err := mgo.Close(shutdownCtx); err != nil {
		logger.Warnf("[boot] mongo close: %v", err)
	}
	if err := redismgr.CloseRedis(); err != nil {
		logger.Warnf("[boot] redis close: %v", err)
	}
	logger.Info("[boot] bye")
}
