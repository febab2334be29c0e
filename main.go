package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Siddharthrai7i/NAJARIA/internal/auth"
	"github.com/Siddharthrai7i/NAJARIA/internal/config"
	"github.com/Siddharthrai7i/NAJARIA/internal/db"
	"github.com/Siddharthrai7i/NAJARIA/internal/handlers"
	"github.com/Siddharthrai7i/NAJARIA/internal/logger"
	"github.com/Siddharthrai7i/NAJARIA/internal/messaging"
	"github.com/Siddharthrai7i/NAJARIA/internal/middleware"
	"github.com/Siddharthrai7i/NAJARIA/internal/observability"
	"github.com/Siddharthrai7i/NAJARIA/internal/rabbitmq"
	"github.com/Siddharthrai7i/NAJARIA/internal/repositories"
	"github.com/Siddharthrai7i/NAJARIA/internal/telemetry"
	"github.com/Siddharthrai7i/NAJARIA/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	shutdownTracing, err := observability.SetupTracing(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	database, err := db.Connect(cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)

	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, log)
	tokens := auth.NewTokenManager(cfg.JWTSecret)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub(log)
	service := messaging.NewService(conversationRepo, messageRepo, userRepo, hub, log)

	messageHandler := handlers.NewMessageHandler(service, audit, log)
	chatWS := ws.NewChatWebSocketHandler(hub, conversationRepo, tokens)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.Auth(tokens)

	messages := router.Group("/messages", authMiddleware)
	messages.GET("", messageHandler.ListConversations)
	messages.GET("/chat/:user_id", messageHandler.OpenChat)
	messages.POST("/send/:user_id", messageHandler.SendMessage)
	messages.GET("/new/:conversation_id/:last_message_id", messageHandler.PollNewMessages)
	messages.GET("/status/:conversation_id/:message_ids", messageHandler.ReadStatus)
	messages.DELETE("/:message_id", messageHandler.DeleteMessage)

	router.GET("/ws/conversations/:conversation_id", chatWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, audit, cfg.EnableDebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
	_ = database.Close()
}
