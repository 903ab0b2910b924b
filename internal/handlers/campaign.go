package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/services"
)

type CampaignHandler struct {
  log             *logger.Logger
  campaignService services.CampaignService
}

func NewCampaignHandler(log *logger.Logger, campaignService services.CampaignService) *CampaignHandler {
  return &CampaignHandler{
    log:             log.With("handler", "CampaignHandler"),
    campaignService: campaignService,
  }
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var input services.CreateCampaignInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  campaign, err := h.campaignService.CreateCampaign(c.Request.Context(), input)
  if err != nil {
    h.log.Error("CreateCampaign failed", "error", err, "user_id", rd.UserID)
    RespondError(c, http.StatusBadRequest, "create_campaign_failed", err)
    return
  }
  RespondOK(c, gin.H{"campaign": campaign})
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
  campaignID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_campaign_id", err)
    return
  }
  campaign, err := h.campaignService.GetCampaign(c.Request.Context(), campaignID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "campaign_not_found", err)
    return
  }
  RespondOK(c, gin.H{"campaign": campaign})
}

func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  campaigns, err := h.campaignService.ListCampaigns(c.Request.Context())
  if err != nil {
    h.log.Error("ListCampaigns failed", "error", err, "user_id", rd.UserID)
    RespondError(c, http.StatusInternalServerError, "load_campaigns_failed", err)
    return
  }
  RespondOK(c, gin.H{"campaigns": campaigns})
}

func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
  campaignID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_campaign_id", err)
    return
  }
  var updates map[string]interface{}
  if err := c.ShouldBindJSON(&updates); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  campaign, err := h.campaignService.UpdateCampaign(c.Request.Context(), campaignID, updates)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "update_campaign_failed", err)
    return
  }
  RespondOK(c, gin.H{"campaign": campaign})
}

func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
  campaignID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_campaign_id", err)
    return
  }
  if err := h.campaignService.DeleteCampaign(c.Request.Context(), campaignID); err != nil {
    RespondError(c, http.StatusBadRequest, "delete_campaign_failed", err)
    return
  }
  RespondOK(c, gin.H{"deleted": campaignID})
}
