package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-relay/internal/db"
	"chat-relay/internal/handlers"
	"chat-relay/internal/middleware"
	"chat-relay/internal/observability"
	"chat-relay/internal/presence"
	"chat-relay/internal/rabbitmq"
	"chat-relay/internal/repositories"
	"chat-relay/internal/telemetry"
	"chat-relay/internal/ws"
)

func main() {
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, "chat-relay", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown error: %v", err)
		}
	}()

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "chat_relay_events")

	if eventsPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit_log.chat_relay", "chat-relay", getEnv("ENVIRONMENT", "development"))

	storeBackend := getEnv("STORE_BACKEND", "postgres")
	storageToken := os.Getenv("STORE_API_TOKEN")

	var store repositories.ThreadStore
	switch storeBackend {
	case "postgres":
		database, err := db.Connect()
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer database.Close()
		store = repositories.NewThreadRepo(database)
	case "remote":
		apiURL := os.Getenv("STORE_API_URL")
		if apiURL == "" {
			log.Fatalf("STORE_BACKEND=remote requires STORE_API_URL")
		}
		store = repositories.NewRemoteThreadStore(apiURL, storageToken)
	default:
		log.Fatalf("unknown STORE_BACKEND %q", storeBackend)
	}
	log.Printf("thread store backend=%s", storeBackend)

	hub := ws.NewHub()
	registry := presence.NewRegistry()
	relayRouter := ws.NewRouter(hub, registry, store, audit)
	relayWS := ws.NewRelayWebSocketHandler(hub, relayRouter)

	historyHandler := handlers.NewHistoryHandler(store)
	storageHandler := handlers.NewStorageAPIHandler(store)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-relay"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/ws", relayWS.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	identity := middleware.RequireUserID()
	router.GET("/threads", identity, historyHandler.ListThreads)
	router.GET("/threads/:thread_id/messages", identity, historyHandler.ListMessages)
	router.POST("/threads/:thread_id/read", identity, historyHandler.MarkRead)

	// The storage API is only served by deployments that own the database;
	// proxy deployments consume it through the remote store binding.
	if storeBackend == "postgres" {
		guard := middleware.StorageToken(storageToken)
		internal := router.Group("/internal", guard)
		internal.POST("/threads/resolve", storageHandler.ResolveThread)
		internal.GET("/threads", storageHandler.ListThreads)
		internal.GET("/threads/:thread_id", storageHandler.GetThread)
		internal.GET("/threads/:thread_id/messages", storageHandler.ListMessages)
		internal.POST("/threads/:thread_id/messages", storageHandler.AppendMessage)
		internal.POST("/threads/:thread_id/read", storageHandler.MarkRead)
	}

	handlers.RegisterDebugRoutes(router, audit, os.Getenv("DEBUG_ENDPOINTS") == "true")

	port := getEnv("PORT", "3000")
	log.Printf("chat relay listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
