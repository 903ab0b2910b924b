package handlers

import (
  "net/http"
  "sync"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/sse"
)

type RealtimeHandler struct {
  Log *logger.Logger
  Hub *sse.SSEHub

  mu      sync.RWMutex
  clients map[string]*sse.SSEClient // key: access token (one stream per session)
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.SSEHub) *RealtimeHandler {
  return &RealtimeHandler{
    Log:     log,
    Hub:     hub,
    clients: make(map[string]*sse.SSEClient),
  }
}

func (h *RealtimeHandler) SSEStream(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
    return
  }
  userID := rd.UserID
  sessionKey := rd.TokenString
  if sessionKey == "" {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
    return
  }
  h.Log.Info("SSEStream open", "user_id", userID.String())

  h.mu.Lock()
  // If this session already has a client, close it and replace.
  if existing, ok := h.clients[sessionKey]; ok {
    h.Hub.CloseClient(existing)
    delete(h.clients, sessionKey)
  }
  client := h.Hub.NewSSEClient(userID)
  client.ID = uuid.New()
  client.Logger = h.Log.With("SSEClientID", client.ID)
  h.clients[sessionKey] = client
  h.mu.Unlock()

  // Every stream joins the user's own channel; matrix channels are opt-in.
  h.Hub.AddChannel(client, userID.String())

  h.Hub.ServeHTTP(c.Writer, c.Request, client)

  h.mu.Lock()
  delete(h.clients, sessionKey)
  h.mu.Unlock()
  h.Hub.CloseClient(client)
}

func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
  client, req, ok := h.lookupClient(c)
  if !ok {
    return
  }
  h.Hub.AddChannel(client, req)
  c.JSON(http.StatusOK, gin.H{"message": "subscribed", "channel": req})
}

func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
  client, req, ok := h.lookupClient(c)
  if !ok {
    return
  }
  h.Hub.RemoveChannel(client, req)
  c.JSON(http.StatusOK, gin.H{"message": "unsubscribed", "channel": req})
}

func (h *RealtimeHandler) lookupClient(c *gin.Context) (*sse.SSEClient, string, bool) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
    return nil, "", false
  }
  if rd.TokenString == "" {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
    return nil, "", false
  }

  var req struct {
    Channel string `json:"channel"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
    return nil, "", false
  }

  h.mu.RLock()
  client, exists := h.clients[rd.TokenString]
  h.mu.RUnlock()
  if !exists {
    c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection for this session"})
    return nil, "", false
  }
  return client, req.Channel, true
}
