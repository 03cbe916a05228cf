package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"prepai/internal/ai"
	appsvc "prepai/internal/app"
	"prepai/internal/bootstrap"
	"prepai/internal/cache"
	"prepai/internal/pkg/pdfextract"
	"prepai/internal/platform/rabbitmq"
	"prepai/internal/repository"
	"prepai/internal/transport/http/handler"
	"prepai/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = app.Config.RAG.MaxUploadBytes

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)
	chatRepo := repository.NewChatRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)

	aiClient := ai.NewClient(ai.Config{
		BaseURL:        app.Config.LLM.BaseURL,
		APIKey:         app.Config.LLM.APIKey,
		ChatModel:      app.Config.LLM.ChatModel,
		EmbeddingModel: app.Config.LLM.EmbeddingModel,
	})
	transcriptCache := cache.NewTranscriptCache(
		app.Redis,
		time.Duration(app.Config.Redis.TranscriptTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.TranscriptDirtyTTLSeconds)*time.Second,
	)
	turnPublisher := rabbitmq.NewTurnEventPublisher(app.MQConn, app.Config.RabbitMQ.TurnAuditQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	documentService := appsvc.NewDocumentService(
		docRepo,
		chunkRepo,
		app.Store,
		aiClient,
		pdfextract.ExtractText,
		app.Config.RAG,
		app.Config.Storage.KeyPrefix,
		app.Log,
	)
	retrievalService := appsvc.NewRetrievalService(chunkRepo, aiClient, app.Log)
	interviewService := appsvc.NewInterviewService(
		chatRepo,
		messageRepo,
		docRepo,
		chunkRepo,
		retrievalService,
		aiClient,
		transcriptCache,
		turnPublisher,
		app.Config.RAG.TopK,
		app.Log,
	)

	authHandler := handler.NewAuthHandler(authService)
	documentHandler := handler.NewDocumentHandler(documentService)
	chatHandler := handler.NewChatHandler(interviewService)

	authLimiter := middleware.RateLimit(
		app.Redis,
		"auth",
		app.Config.RateLimit.AuthLimit,
		time.Duration(app.Config.RateLimit.AuthWindowMinute)*time.Minute,
		"Too many authentication attempts, please try again after 5 minutes",
	)
	apiLimiter := middleware.RateLimit(
		app.Redis,
		"api",
		app.Config.RateLimit.APILimit,
		time.Duration(app.Config.RateLimit.APIWindowMinute)*time.Minute,
		"Too many requests from this IP, please try again after 15 minutes",
	)
	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(authLimiter)
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)

	docGroup := api.Group("/documents")
	docGroup.Use(apiLimiter, authJWT)
	docGroup.POST("/upload", documentHandler.Upload)
	docGroup.GET("/list", documentHandler.List)
	docGroup.DELETE("/:id", documentHandler.Delete)

	chatGroup := api.Group("/chat")
	chatGroup.Use(apiLimiter, authJWT)
	chatGroup.POST("/start", chatHandler.Start)
	chatGroup.POST("/query", chatHandler.Query)
	chatGroup.GET("/history", chatHandler.History)
	chatGroup.GET("/:id", chatHandler.Get)

	return router
}
