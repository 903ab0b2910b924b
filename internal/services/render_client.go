package services

import (
  "bytes"
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "io"
  "math/rand"
  "net"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/airwave/airwave-backend/internal/logger"
)

// RenderRequest is the payload handed to the external video composition API.
// Modifications maps slot id -> text content (text-type slots) or asset URL
// (everything else).
type RenderRequest struct {
  TemplateID    string            `json:"template_id"`
  OutputFormat  string            `json:"output_format"`
  Modifications map[string]string `json:"modifications"`
  WebhookURL    string            `json:"webhook_url,omitempty"`
}

const (
  RenderJobStatusQueued    = "queued"
  RenderJobStatusRendering = "rendering"
  RenderJobStatusSucceeded = "succeeded"
  RenderJobStatusFailed    = "failed"
)

type RenderJob struct {
  ID           string `json:"id"`
  Status       string `json:"status"`
  PreviewURL   string `json:"url,omitempty"`
  ThumbnailURL string `json:"snapshot_url,omitempty"`
  Error        string `json:"error_message,omitempty"`
}

func (j *RenderJob) Terminal() bool {
  return j.Status == RenderJobStatusSucceeded || j.Status == RenderJobStatusFailed
}

type RenderClient interface {
  SubmitRender(ctx context.Context, req RenderRequest) (*RenderJob, error)
  GetJob(ctx context.Context, jobID string) (*RenderJob, error)
}

type renderClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  httpClient *http.Client

  maxRetries int
}

func NewRenderClient(log *logger.Logger) (RenderClient, error) {
  apiKey := os.Getenv("RENDER_API_KEY")
  if apiKey == "" {
    return nil, fmt.Errorf("missing RENDER_API_KEY")
  }

  baseURL := os.Getenv("RENDER_API_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.creatomate.com/v1"
  }
  baseURL = strings.TrimRight(baseURL, "/")

  timeoutSec := 60
  if v := os.Getenv("RENDER_API_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  maxRetries := 3
  if v := os.Getenv("RENDER_API_MAX_RETRIES"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
      maxRetries = parsed
    }
  }

  return &renderClient{
    log:        log.With("service", "RenderClient"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
    maxRetries: maxRetries,
  }, nil
}

type renderHTTPError struct {
  StatusCode int
  Body       string
}

func (e *renderHTTPError) Error() string {
  return fmt.Sprintf("render api http %d: %s", e.StatusCode, e.Body)
}

func retryableHTTPStatus(code int) bool {
  if code == 408 || code == 429 {
    return true
  }
  return code >= 500 && code <= 599
}

func retryableRenderErr(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, context.DeadlineExceeded) {
    return true
  }
  if errors.Is(err, context.Canceled) {
    return false
  }
  var netErr net.Error
  if errors.As(err, &netErr) {
    if netErr.Timeout() {
      return true
    }
  }
  var httpErr *renderHTTPError
  if errors.As(err, &httpErr) {
    return retryableHTTPStatus(httpErr.StatusCode)
  }
  return false
}

func renderJitter(base time.Duration) time.Duration {
  // +/- 20%
  if base <= 0 {
    return 0
  }
  delta := base.Seconds() * 0.2
  low := base.Seconds() - delta
  high := base.Seconds() + delta
  if low < 0 {
    low = 0
  }
  v := low + rand.Float64()*(high-low)
  return time.Duration(v * float64(time.Second))
}

func (c *renderClient) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
  var buf bytes.Buffer
  if body != nil {
    if err := json.NewEncoder(&buf).Encode(body); err != nil {
      return nil, nil, err
    }
  }

  req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
  if err != nil {
    return nil, nil, err
  }
  req.Header.Set("Authorization", "Bearer "+c.apiKey)
  req.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(req)
  if err != nil {
    return nil, nil, err
  }

  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return resp, nil, readErr
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return resp, raw, &renderHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
  }
  return resp, raw, nil
}

func (c *renderClient) do(ctx context.Context, method, path string, body any, out any) error {
  backoff := 1 * time.Second

  for attempt := 0; attempt <= c.maxRetries; attempt++ {
    if ctx.Err() != nil {
      return ctx.Err()
    }

    resp, raw, err := c.doOnce(ctx, method, path, body)
    if err == nil {
      if out == nil {
        return nil
      }
      if uErr := json.Unmarshal(raw, out); uErr != nil {
        return fmt.Errorf("render api decode error: %w; raw=%s", uErr, string(raw))
      }
      return nil
    }

    if !retryableRenderErr(err) {
      return err
    }
    if attempt == c.maxRetries {
      return err
    }

    sleepFor := backoff
    if resp != nil {
      ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
      if ra != "" {
        if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
          sleepFor = time.Duration(secs) * time.Second
        }
      }
    }
    if sleepFor > 10*time.Second {
      sleepFor = 10 * time.Second
    }
    sleepFor = renderJitter(sleepFor)

    c.log.Warn("Render API request retrying",
      "path", path,
      "attempt", attempt+1,
      "max_retries", c.maxRetries,
      "sleep", sleepFor.String(),
      "error", err.Error(),
    )

    time.Sleep(sleepFor)
    backoff *= 2
  }

  return fmt.Errorf("unreachable retry loop")
}

func (c *renderClient) SubmitRender(ctx context.Context, req RenderRequest) (*RenderJob, error) {
  if req.TemplateID == "" {
    return nil, fmt.Errorf("template id is required")
  }
  if req.OutputFormat == "" {
    req.OutputFormat = "mp4"
  }
  var job RenderJob
  if err := c.do(ctx, http.MethodPost, "/renders", req, &job); err != nil {
    return nil, err
  }
  if job.ID == "" {
    return nil, fmt.Errorf("render api returned no job id")
  }
  return &job, nil
}

func (c *renderClient) GetJob(ctx context.Context, jobID string) (*RenderJob, error) {
  if jobID == "" {
    return nil, fmt.Errorf("job id is required")
  }
  var job RenderJob
  if err := c.do(ctx, http.MethodGet, "/renders/"+jobID, nil, &job); err != nil {
    return nil, err
  }
  return &job, nil
}
