package handlers

import (
  "crypto/subtle"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/services"
)

type RenderHandler struct {
  log           *logger.Logger
  renderService services.RenderService
  webhookSecret string
}

func NewRenderHandler(log *logger.Logger, renderService services.RenderService, webhookSecret string) *RenderHandler {
  return &RenderHandler{
    log:           log.With("handler", "RenderHandler"),
    renderService: renderService,
    webhookSecret: webhookSecret,
  }
}

func (h *RenderHandler) RenderRow(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  rowID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_row_id", err)
    return
  }
  var input services.RenderRowInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  row, err := h.renderService.RenderRow(c.Request.Context(), rowID, input)
  if err != nil {
    h.log.Error("RenderRow failed", "error", err, "row_id", rowID)
    RespondError(c, http.StatusBadRequest, "render_row_failed", err)
    return
  }
  RespondOK(c, gin.H{"row": row})
}

func (h *RenderHandler) StartBatchRendering(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  matrixID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_matrix_id", err)
    return
  }
  var input services.StartBatchInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  enqueued, err := h.renderService.StartBatchRendering(c.Request.Context(), matrixID, input)
  if err != nil {
    h.log.Error("StartBatchRendering failed", "error", err, "matrix_id", matrixID)
    RespondError(c, http.StatusBadRequest, "start_batch_failed", err)
    return
  }
  RespondOK(c, gin.H{"enqueued": enqueued})
}

func (h *RenderHandler) CancelQueuedRow(c *gin.Context) {
  rowID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_row_id", err)
    return
  }
  row, err := h.renderService.CancelQueuedRow(c.Request.Context(), rowID)
  if err != nil {
    RespondError(c, http.StatusConflict, "cancel_row_failed", err)
    return
  }
  RespondOK(c, gin.H{"row": row})
}

func (h *RenderHandler) GetBatchProgress(c *gin.Context) {
  matrixID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_matrix_id", err)
    return
  }
  progress, err := h.renderService.GetBatchProgress(c.Request.Context(), matrixID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "load_progress_failed", err)
    return
  }
  RespondOK(c, progress)
}

// RenderWebhook receives terminal job results pushed by the render service.
// The caller must present the shared webhook token; unknown job IDs are
// acknowledged and dropped.
func (h *RenderHandler) RenderWebhook(c *gin.Context) {
  if h.webhookSecret != "" {
    token := c.Query("token")
    if token == "" {
      token = c.GetHeader("X-Render-Webhook-Token")
    }
    if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookSecret)) != 1 {
      RespondError(c, http.StatusUnauthorized, "invalid_webhook_token", nil)
      return
    }
  }
  var result services.RenderResult
  if err := c.ShouldBindJSON(&result); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  if result.JobID == "" {
    RespondError(c, http.StatusBadRequest, "missing_job_id", nil)
    return
  }
  if err := h.renderService.HandleRenderResult(c.Request.Context(), result); err != nil {
    h.log.Error("RenderWebhook failed", "error", err, "job_id", result.JobID)
    RespondError(c, http.StatusInternalServerError, "handle_result_failed", err)
    return
  }
  RespondOK(c, gin.H{"received": result.JobID})
}
