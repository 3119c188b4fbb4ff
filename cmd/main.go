package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dhruvin2968/facebook-messaging/internal/cache"
	"github.com/dhruvin2968/facebook-messaging/internal/config"
	"github.com/dhruvin2968/facebook-messaging/internal/conversation"
	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/events"
	"github.com/dhruvin2968/facebook-messaging/internal/handler"
	"github.com/dhruvin2968/facebook-messaging/internal/hub"
	"github.com/dhruvin2968/facebook-messaging/internal/identity"
	"github.com/dhruvin2968/facebook-messaging/internal/presence"
	"github.com/dhruvin2968/facebook-messaging/internal/profile"
	"github.com/dhruvin2968/facebook-messaging/internal/repository"
	"github.com/dhruvin2968/facebook-messaging/internal/service"
	"github.com/dhruvin2968/facebook-messaging/pkg/database"
	"github.com/dhruvin2968/facebook-messaging/pkg/jwt"
	pkglog "github.com/dhruvin2968/facebook-messaging/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting messaging-service")

	// Message repository: one durable log, selectable backend
	var repo repository.MessageRepository
	var profiles profile.Directory

	switch cfg.Storage.Driver {
	case "cassandra":
		repo, err = repository.NewCassandraMessageRepository(cfg.Storage.Cassandra)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to cassandra")
		}
	default:
		dbCfg := cfg.Storage.DatabaseConfig()
		db, err := database.New(&dbCfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}

		repo, err = repository.NewGormMessageRepository(db)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate message schema")
		}

		// Display-name directory shares the SQL database
		profiles, err = profile.NewGormDirectory(db)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate profile schema")
		}
	}

	// Optional read cache
	var conversationCache cache.ConversationCache
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisConversationCache(cfg.Redis, "messaging")
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, running without read cache")
		} else {
			conversationCache = rc
		}
	}

	// Optional event stream
	var producer events.Producer
	if cfg.Kafka.Enabled {
		p, err := events.NewConfluentProducer(cfg.Kafka)
		if err != nil {
			logger.Warn().Err(err).Msg("kafka unavailable, running without event stream")
		} else {
			producer = p
			defer p.Close()
			logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka producer started")
		}
	}

	// Conversation store over the repository. Closing it releases the
	// repository and cache as well.
	store := conversation.NewStore(repo, conversationCache, cfg.Store)
	defer store.Close()

	// Identity provider
	var provider identity.Provider
	var tokenManager *jwt.Manager
	if cfg.Auth.Required {
		tokenManager = jwt.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, 24*time.Hour)
		provider = identity.NewJWTProvider(tokenManager)
	} else {
		provider = identity.TrustedProvider{}
		logger.Warn().Msg("token auth disabled, trusting announced identities")
	}

	// Hub and presence registry
	h := hub.NewHub()
	go h.Run()

	registry := presence.NewRegistry()
	registry.Watch(func(online []domain.PresenceEntry) {
		h.BroadcastAll(&domain.PresenceMessage{Type: domain.MsgTypePresence, Online: online})
	})

	// Service
	svc := service.NewMessagingService(service.WrapStore(store), h, registry, provider, profiles, producer)

	// Handlers and routes
	wsHandler := handler.NewWSHandler(h, svc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(svc)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger))

	router.GET("/ws", wsHandler.HandleWebSocket)
	router.GET("/health", httpHandler.HealthCheck)

	api := router.Group("/api/v1")
	api.GET("/online", httpHandler.OnlineUsers)

	authed := api.Group("")
	authed.Use(handler.AuthMiddleware(tokenManager))
	authed.GET("/conversations", httpHandler.ListConversations)
	authed.GET("/rooms/:room_id/messages", httpHandler.ListMessages)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("messaging-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down messaging-service")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. stop taking new connections and drain in-flight requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}

		// 2. close all WS clients, stop the hub loop
		h.Stop()
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("messaging-service stopped")
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn().Msg("shutdown timed out")
	}
}
