package handlers

import (
  "io"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/services"
)

type AssetHandler struct {
  log          *logger.Logger
  assetService services.AssetService
}

func NewAssetHandler(log *logger.Logger, assetService services.AssetService) *AssetHandler {
  return &AssetHandler{
    log:          log.With("handler", "AssetHandler"),
    assetService: assetService,
  }
}

// UploadAsset accepts a multipart form with a "file" part plus campaign_id,
// name and type fields.
func (h *AssetHandler) UploadAsset(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  campaignID, err := uuid.Parse(c.PostForm("campaign_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_campaign_id", err)
    return
  }
  fileHeader, err := c.FormFile("file")
  if err != nil {
    RespondError(c, http.StatusBadRequest, "missing_file", err)
    return
  }
  file, err := fileHeader.Open()
  if err != nil {
    RespondError(c, http.StatusBadRequest, "unreadable_file", err)
    return
  }
  defer file.Close()
  data, err := io.ReadAll(file)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "unreadable_file", err)
    return
  }
  asset, err := h.assetService.UploadAsset(c.Request.Context(), services.UploadAssetInput{
    CampaignID: campaignID,
    Name:       c.PostForm("name"),
    Type:       c.PostForm("type"),
    MimeType:   fileHeader.Header.Get("Content-Type"),
    Filename:   fileHeader.Filename,
    Data:       data,
  })
  if err != nil {
    h.log.Error("UploadAsset failed", "error", err, "campaign_id", campaignID)
    RespondError(c, http.StatusBadRequest, "upload_asset_failed", err)
    return
  }
  RespondOK(c, gin.H{"asset": asset})
}

func (h *AssetHandler) CreateTextAsset(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var input services.CreateTextAssetInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  asset, err := h.assetService.CreateTextAsset(c.Request.Context(), input)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "create_text_asset_failed", err)
    return
  }
  RespondOK(c, gin.H{"asset": asset})
}

func (h *AssetHandler) GetAsset(c *gin.Context) {
  assetID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_asset_id", err)
    return
  }
  asset, err := h.assetService.GetAsset(c.Request.Context(), assetID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "asset_not_found", err)
    return
  }
  RespondOK(c, gin.H{"asset": asset})
}

// ListAssets lists a campaign's assets, optionally filtered by ?type=.
func (h *AssetHandler) ListAssets(c *gin.Context) {
  campaignID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_campaign_id", err)
    return
  }
  assets, err := h.assetService.ListAssets(c.Request.Context(), campaignID, c.Query("type"))
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "load_assets_failed", err)
    return
  }
  RespondOK(c, gin.H{"assets": assets})
}

func (h *AssetHandler) DeleteAsset(c *gin.Context) {
  assetID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_asset_id", err)
    return
  }
  if err := h.assetService.DeleteAsset(c.Request.Context(), assetID); err != nil {
    RespondError(c, http.StatusBadRequest, "delete_asset_failed", err)
    return
  }
  RespondOK(c, gin.H{"deleted": assetID})
}
