package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/services"
)

type MatrixHandler struct {
  log           *logger.Logger
  matrixService services.MatrixService
}

func NewMatrixHandler(log *logger.Logger, matrixService services.MatrixService) *MatrixHandler {
  return &MatrixHandler{
    log:           log.With("handler", "MatrixHandler"),
    matrixService: matrixService,
  }
}

func (h *MatrixHandler) CreateMatrix(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
    return
  }
  var input services.CreateMatrixInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  detail, err := h.matrixService.CreateMatrix(c.Request.Context(), input)
  if err != nil {
    h.log.Error("CreateMatrix failed", "error", err, "campaign_id", input.CampaignID)
    RespondError(c, http.StatusBadRequest, "create_matrix_failed", err)
    return
  }
  RespondOK(c, detail)
}

func (h *MatrixHandler) GetMatrix(c *gin.Context) {
  matrixID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_matrix_id", err)
    return
  }
  detail, err := h.matrixService.GetMatrix(c.Request.Context(), matrixID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "matrix_not_found", err)
    return
  }
  RespondOK(c, detail)
}

func (h *MatrixHandler) ListMatrices(c *gin.Context) {
  campaignID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_campaign_id", err)
    return
  }
  matrices, err := h.matrixService.ListMatrices(c.Request.Context(), campaignID)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "load_matrices_failed", err)
    return
  }
  RespondOK(c, gin.H{"matrices": matrices})
}

func (h *MatrixHandler) UpdateMatrix(c *gin.Context) {
  matrixID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_matrix_id", err)
    return
  }
  var updates map[string]interface{}
  if err := c.ShouldBindJSON(&updates); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  matrix, err := h.matrixService.UpdateMatrix(c.Request.Context(), matrixID, updates)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "update_matrix_failed", err)
    return
  }
  RespondOK(c, gin.H{"matrix": matrix})
}

func (h *MatrixHandler) DeleteMatrix(c *gin.Context) {
  matrixID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_matrix_id", err)
    return
  }
  if err := h.matrixService.DeleteMatrix(c.Request.Context(), matrixID); err != nil {
    RespondError(c, http.StatusBadRequest, "delete_matrix_failed", err)
    return
  }
  RespondOK(c, gin.H{"deleted": matrixID})
}

func (h *MatrixHandler) UpdateSlot(c *gin.Context) {
  slotID, err := uuid.Parse(c.Param("slotId"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_slot_id", err)
    return
  }
  var input services.SlotInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  slot, err := h.matrixService.UpdateSlot(c.Request.Context(), slotID, input)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "update_slot_failed", err)
    return
  }
  RespondOK(c, gin.H{"slot": slot})
}

func (h *MatrixHandler) GenerateCombinations(c *gin.Context) {
  matrixID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_matrix_id", err)
    return
  }
  var input services.GenerateCombinationsInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
    return
  }
  rows, err := h.matrixService.GenerateCombinations(c.Request.Context(), matrixID, input)
  if err != nil {
    h.log.Error("GenerateCombinations failed", "error", err, "matrix_id", matrixID)
    RespondError(c, http.StatusBadRequest, "generate_combinations_failed", err)
    return
  }
  RespondOK(c, gin.H{"rows": rows, "count": len(rows)})
}
