package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/airwave/airwave-backend/internal/handlers"
  "github.com/airwave/airwave-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler     *handlers.AuthHandler
  AuthMiddleware  *middleware.AuthMiddleware
  UserHandler     *handlers.UserHandler
  CampaignHandler *handlers.CampaignHandler
  AssetHandler    *handlers.AssetHandler
  MatrixHandler   *handlers.MatrixHandler
  RenderHandler   *handlers.RenderHandler
  RealtimeHandler *handlers.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware("airwave"))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
    api.POST("/render/webhook", cfg.RenderHandler.RenderWebhook)
  }

  // ===============
  // || Protected ||
  // ===============
  protected := api.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Auth
  protected.POST("/refresh", cfg.AuthHandler.Refresh)
  protected.POST("/logout", cfg.AuthHandler.Logout)
  // SSE
  protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
  protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
  protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)
  // User
  protected.GET("/user", cfg.UserHandler.GetMe)
  // Campaigns
  protected.POST("/campaigns", cfg.CampaignHandler.CreateCampaign)
  protected.GET("/campaigns", cfg.CampaignHandler.ListCampaigns)
  protected.GET("/campaigns/:id", cfg.CampaignHandler.GetCampaign)
  protected.PATCH("/campaigns/:id", cfg.CampaignHandler.UpdateCampaign)
  protected.DELETE("/campaigns/:id", cfg.CampaignHandler.DeleteCampaign)
  // Assets
  protected.POST("/assets", cfg.AssetHandler.UploadAsset)
  protected.POST("/assets/text", cfg.AssetHandler.CreateTextAsset)
  protected.GET("/assets/:id", cfg.AssetHandler.GetAsset)
  protected.DELETE("/assets/:id", cfg.AssetHandler.DeleteAsset)
  protected.GET("/campaigns/:id/assets", cfg.AssetHandler.ListAssets)
  // Matrices
  protected.POST("/matrices", cfg.MatrixHandler.CreateMatrix)
  protected.GET("/matrices/:id", cfg.MatrixHandler.GetMatrix)
  protected.PATCH("/matrices/:id", cfg.MatrixHandler.UpdateMatrix)
  protected.DELETE("/matrices/:id", cfg.MatrixHandler.DeleteMatrix)
  protected.GET("/campaigns/:id/matrices", cfg.MatrixHandler.ListMatrices)
  protected.PATCH("/matrix-slots/:slotId", cfg.MatrixHandler.UpdateSlot)
  protected.POST("/matrices/:id/combinations", cfg.MatrixHandler.GenerateCombinations)
  // Rendering
  protected.POST("/matrix-rows/:id/render", cfg.RenderHandler.RenderRow)
  protected.POST("/matrix-rows/:id/cancel", cfg.RenderHandler.CancelQueuedRow)
  protected.POST("/matrices/:id/render", cfg.RenderHandler.StartBatchRendering)
  protected.GET("/matrices/:id/progress", cfg.RenderHandler.GetBatchProgress)

  return router
}
