package main

import (
  "context"
  "fmt"
  "os"
  "time"

  "github.com/redis/go-redis/v9"

  "github.com/airwave/airwave-backend/internal/clients/redisbus"
  "github.com/airwave/airwave-backend/internal/config"
  "github.com/airwave/airwave-backend/internal/db"
  "github.com/airwave/airwave-backend/internal/handlers"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/middleware"
  "github.com/airwave/airwave-backend/internal/observability"
  "github.com/airwave/airwave-backend/internal/repos"
  "github.com/airwave/airwave-backend/internal/server"
  "github.com/airwave/airwave-backend/internal/services"
  "github.com/airwave/airwave-backend/internal/sse"
  "github.com/airwave/airwave-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
  port := utils.GetEnv("PORT", "8080", log)
  webhookURL := utils.GetEnv("RENDER_WEBHOOK_URL", "", log)
  webhookSecret := utils.GetEnv("RENDER_WEBHOOK_SECRET", "", log)
  if webhookSecret == "" {
    log.Warn("RENDER_WEBHOOK_SECRET not set, render webhook accepts unauthenticated results")
  }

  // Config
  cfg := config.Load(log)

  // Tracing
  ctx := context.Background()
  shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
    ServiceName: "airwave",
    Environment: os.Getenv("APP_ENV"),
    Version:     os.Getenv("APP_VERSION"),
  })
  defer shutdownOTel(context.Background())

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Fatal("Postgres init failed", "error", err)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Fatal("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  campaignRepo := repos.NewCampaignRepo(thePG, log)
  assetRepo := repos.NewAssetRepo(thePG, log)
  matrixRepo := repos.NewMatrixRepo(thePG, log)
  matrixSlotRepo := repos.NewMatrixSlotRepo(thePG, log)
  matrixRowRepo := repos.NewMatrixRowRepo(thePG, log)

  // SSE hub + cross-instance fan-out
  hub := sse.NewSSEHub(log)
  var redisClient *redis.Client
  if addr := os.Getenv("REDIS_ADDR"); addr != "" {
    redisClient = redis.NewClient(&redis.Options{
      Addr:     addr,
      Password: os.Getenv("REDIS_PASSWORD"),
    })
  } else {
    log.Warn("REDIS_ADDR not set, SSE events stay in-process")
  }
  bus := redisbus.NewBus(redisClient, hub, log)
  bus.StartForwarder(ctx)

  // Services
  log.Info("Setting up Services from main...")
  authService := services.NewAuthService(
    thePG, log, userRepo, userTokenRepo,
    jwtSecretKey,
    time.Duration(accessTokenTTL)*time.Second,
    time.Duration(refreshTokenTTL)*time.Second,
  )
  userService := services.NewUserService(thePG, log, userRepo)
  campaignService := services.NewCampaignService(thePG, log, campaignRepo)
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Warn("Bucket service init failed, uploads disabled", "error", err)
  }
  thumbnailService, err := services.NewThumbnailService(log)
  if err != nil {
    log.Warn("Thumbnail service init failed, thumbnails disabled", "error", err)
  }
  assetService := services.NewAssetService(thePG, log, assetRepo, campaignService, bucketService, thumbnailService)
  matrixService := services.NewMatrixService(thePG, log, &cfg.Render, matrixRepo, matrixSlotRepo, matrixRowRepo, campaignService, hub)
  renderClient, err := services.NewRenderClient(log)
  if err != nil {
    log.Fatal("Render client init failed", "error", err)
  }
  renderService := services.NewRenderService(
    thePG, log, &cfg.Render,
    matrixRowRepo, matrixSlotRepo, assetRepo,
    matrixService, renderClient, bus, webhookURL,
  )
  renderService.StartWorker(ctx)

  // Handlers
  log.Info("Setting up Handlers from main...")
  authHandler := handlers.NewAuthHandler(authService)
  userHandler := handlers.NewUserHandler(log, userService)
  campaignHandler := handlers.NewCampaignHandler(log, campaignService)
  assetHandler := handlers.NewAssetHandler(log, assetService)
  matrixHandler := handlers.NewMatrixHandler(log, matrixService)
  renderHandler := handlers.NewRenderHandler(log, renderService, webhookSecret)
  realtimeHandler := handlers.NewRealtimeHandler(log, hub)

  // Middleware
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:     authHandler,
    AuthMiddleware:  authMiddleware,
    UserHandler:     userHandler,
    CampaignHandler: campaignHandler,
    AssetHandler:    assetHandler,
    MatrixHandler:   matrixHandler,
    RenderHandler:   renderHandler,
    RealtimeHandler: realtimeHandler,
  })

  log.Info("Starting server", "port", port)
  if err := router.Run(":" + port); err != nil {
    log.Fatal("Server exited", "error", err)
  }
}
