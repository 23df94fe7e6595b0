package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "nexus/api/swagger" // swagger docs
	"nexus/internal/access"
	"nexus/internal/auth"
	"nexus/internal/config"
	"nexus/internal/database"
	"nexus/internal/handler"
	"nexus/internal/logger"
	"nexus/internal/middleware"
	"nexus/internal/notify"
	"nexus/internal/repository"
	"nexus/internal/service"
	"nexus/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Nexus Project OS API
// @version         1.0
// @description     Role based access, role requests, AI output review and project tracking for the Nexus dashboard.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Logger setup failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN(), zlog)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	zlog.Info("connected to PostgreSQL")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zlog.Named("ws"))
	go wsHub.Run(ctx)
	notifier := notify.NewHubSink(wsHub, zlog.Named("notify"))

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	profileRepo := repository.NewProfileRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	requestRepo := repository.NewRoleRequestRepository(db)
	outputRepo := repository.NewAIOutputRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	overlayStore := access.NewOverlayStore(roleRepo, zlog.Named("access"),
		access.WithLoadTimeout(cfg.OverlayLoadTimeout),
		access.WithRetryInterval(cfg.OverlayRetryInterval),
	)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	accessService := service.NewAccessService(roleRepo, overlayStore, zlog.Named("access"))
	profileService := service.NewProfileService(profileRepo, roleRepo, txManager, tokens, cfg.BootstrapAdminEmail, zlog.Named("profile"))
	roleService := service.NewRoleService(roleRepo, profileRepo, overlayStore, notifier, wsHub)
	requestService := service.NewRoleRequestService(requestRepo, roleRepo, txManager, notifier, wsHub, zlog.Named("role_request"))
	outputService := service.NewAIOutputService(outputRepo, auditRepo, txManager, notifier, wsHub, zlog.Named("ai_output"))
	auditService := service.NewAuditService(auditRepo)
	projectService := service.NewProjectService(projectRepo, taskRepo, wsHub)

	authMiddleware := middleware.NewAuth(tokens, accessService, zlog.Named("auth"))

	// Initialize Handlers
	handlers := []interface {
		RegisterRoutes(router *gin.RouterGroup)
	}{
		handler.NewProfileHandler(profileService, authMiddleware, zlog),
		handler.NewAccessHandler(accessService, authMiddleware, zlog),
		handler.NewRoleHandler(roleService, authMiddleware, zlog),
		handler.NewRoleRequestHandler(requestService, authMiddleware, zlog),
		handler.NewAIOutputHandler(outputService, authMiddleware, zlog),
		handler.NewAuditHandler(auditService, authMiddleware, zlog),
		handler.NewProjectHandler(projectService, authMiddleware, zlog),
		handler.NewPresenceHandler(wsHub, profileService.Presence, authMiddleware),
	}

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(zlog.Named("http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "permissions": overlayStore.State().String()})
	})

	// API Routing
	for _, h := range handlers {
		h.RegisterRoutes(router.Group(""))
	}

	// Warm the permission overlay so the first requests do not wait on it.
	go overlayStore.Load(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
