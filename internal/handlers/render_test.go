package handlers

import (
  "context"
  "net/http"
  "net/http/httptest"
  "strings"
  "testing"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/services"
  "github.com/airwave/airwave-backend/internal/types"
)

type stubRenderService struct {
  handled []services.RenderResult
}

func (s *stubRenderService) RenderRow(ctx context.Context, rowID uuid.UUID, input services.RenderRowInput) (*types.MatrixRow, error) {
  return nil, nil
}
func (s *stubRenderService) StartBatchRendering(ctx context.Context, matrixID uuid.UUID, input services.StartBatchInput) (int, error) {
  return 0, nil
}
func (s *stubRenderService) CancelQueuedRow(ctx context.Context, rowID uuid.UUID) (*types.MatrixRow, error) {
  return nil, nil
}
func (s *stubRenderService) GetBatchProgress(ctx context.Context, matrixID uuid.UUID) (*services.BatchProgress, error) {
  return nil, nil
}
func (s *stubRenderService) HandleRenderResult(ctx context.Context, result services.RenderResult) error {
  s.handled = append(s.handled, result)
  return nil
}
func (s *stubRenderService) StartWorker(ctx context.Context) {}

func newWebhookRouter(t *testing.T, secret string) (*gin.Engine, *stubRenderService) {
  t.Helper()
  gin.SetMode(gin.TestMode)
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  svc := &stubRenderService{}
  handler := NewRenderHandler(log, svc, secret)
  router := gin.New()
  router.POST("/api/render/webhook", handler.RenderWebhook)
  return router, svc
}

func TestRenderWebhookRejectsBadToken(t *testing.T) {
  router, svc := newWebhookRouter(t, "s3cret")

  body := `{"job_id":"job-1","status":"succeeded","preview_url":"https://cdn/p.mp4"}`
  cases := []struct {
    name  string
    path  string
    token string
  }{
    {name: "missing_token", path: "/api/render/webhook"},
    {name: "wrong_query_token", path: "/api/render/webhook?token=wrong"},
    {name: "wrong_header_token", path: "/api/render/webhook", token: "wrong"},
  }
  for _, tc := range cases {
    t.Run(tc.name, func(t *testing.T) {
      req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(body))
      if tc.token != "" {
        req.Header.Set("X-Render-Webhook-Token", tc.token)
      }
      w := httptest.NewRecorder()
      router.ServeHTTP(w, req)
      if w.Code != http.StatusUnauthorized {
        t.Fatalf("got status %d, want %d", w.Code, http.StatusUnauthorized)
      }
    })
  }
  if len(svc.handled) != 0 {
    t.Fatalf("unauthorized requests reached the service: %d", len(svc.handled))
  }
}

func TestRenderWebhookAcceptsValidToken(t *testing.T) {
  router, svc := newWebhookRouter(t, "s3cret")

  body := `{"job_id":"job-1","status":"succeeded","preview_url":"https://cdn/p.mp4"}`
  req := httptest.NewRequest(http.MethodPost, "/api/render/webhook?token=s3cret", strings.NewReader(body))
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)
  if w.Code != http.StatusOK {
    t.Fatalf("got status %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
  }
  if len(svc.handled) != 1 || svc.handled[0].JobID != "job-1" {
    t.Fatalf("service saw %v", svc.handled)
  }
}
