package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"
  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/gorm"
  "github.com/airwave/airwave-backend/internal/config"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/repos"
  "github.com/airwave/airwave-backend/internal/sse"
  "github.com/airwave/airwave-backend/internal/types"
)

// EventPublisher fans render events out to SSE subscribers, locally or
// across instances.
type EventPublisher interface {
  Publish(ctx context.Context, msg sse.SSEMessage)
}

type RenderRowInput struct {
  Priority   int    `json:"priority"`
  TemplateID string `json:"template_id"`
}

type StartBatchInput struct {
  RowIDs     []uuid.UUID `json:"row_ids"`
  TemplateID string      `json:"template_id"`
  Priority   int         `json:"priority"`
}

// RenderResult is the typed terminal payload for a render job, delivered by
// webhook or collected by polling.
type RenderResult struct {
  JobID        string `json:"job_id"`
  Status       string `json:"status"`
  PreviewURL   string `json:"preview_url"`
  ThumbnailURL string `json:"thumbnail_url"`
  Error        string `json:"error"`
}

type RenderService interface {
  RenderRow(ctx context.Context, rowID uuid.UUID, input RenderRowInput) (*types.MatrixRow, error)
  StartBatchRendering(ctx context.Context, matrixID uuid.UUID, input StartBatchInput) (int, error)
  CancelQueuedRow(ctx context.Context, rowID uuid.UUID) (*types.MatrixRow, error)
  GetBatchProgress(ctx context.Context, matrixID uuid.UUID) (*BatchProgress, error)
  HandleRenderResult(ctx context.Context, result RenderResult) error
  StartWorker(ctx context.Context)
}

// renderService owns the in-process queue and the drain/poll/sweep loops.
// It is constructed once per process and passed to its callers explicitly;
// two instances never share state.
type renderService struct {
  db            *gorm.DB
  log           *logger.Logger
  cfg           *config.RenderConfig
  queue         *RenderQueue
  matrixRowRepo repos.MatrixRowRepo
  slotRepo      repos.MatrixSlotRepo
  assetRepo     repos.AssetRepo
  matrixService MatrixService
  client        RenderClient
  publisher     EventPublisher
  webhookURL    string
}

func NewRenderService(
  db *gorm.DB,
  log *logger.Logger,
  cfg *config.RenderConfig,
  matrixRowRepo repos.MatrixRowRepo,
  slotRepo repos.MatrixSlotRepo,
  assetRepo repos.AssetRepo,
  matrixService MatrixService,
  client RenderClient,
  publisher EventPublisher,
  webhookURL string,
) RenderService {
  serviceLog := log.With("service", "RenderService")
  return &renderService{
    db:            db,
    log:           serviceLog,
    cfg:           cfg,
    queue:         NewRenderQueue(),
    matrixRowRepo: matrixRowRepo,
    slotRepo:      slotRepo,
    assetRepo:     assetRepo,
    matrixService: matrixService,
    client:        client,
    publisher:     publisher,
    webhookURL:    webhookURL,
  }
}

func (rs *renderService) RenderRow(ctx context.Context, rowID uuid.UUID, input RenderRowInput) (*types.MatrixRow, error) {
  row, err := rs.getRow(ctx, rowID)
  if err != nil {
    return nil, err
  }
  if _, err := rs.matrixService.GetMatrix(ctx, row.MatrixID); err != nil {
    return nil, err
  }
  switch row.Status {
  case types.RowStatusRendering:
    return nil, fmt.Errorf("Row is already rendering")
  case types.RowStatusQueued:
    if rs.queue.IsInFlight(rowID) {
      return row, nil
    }
  }

  templateID := input.TemplateID
  if templateID == "" {
    templateID = row.TemplateID
  }

  now := time.Now()
  updates := map[string]interface{}{
    "status":    types.RowStatusQueued,
    "priority":  input.Priority,
    "queued_at": now,
    "error":     "",
  }
  if templateID != "" {
    updates["template_id"] = templateID
  }
  if err := rs.matrixRowRepo.UpdateFields(ctx, nil, rowID, updates); err != nil {
    return nil, fmt.Errorf("Failed to mark row queued: %w", err)
  }

  rs.queue.Enqueue(RenderQueueItem{
    MatrixID:   row.MatrixID,
    RowID:      rowID,
    Priority:   input.Priority,
    TemplateID: templateID,
    Attempts:   row.Attempts,
    EnqueuedAt: now,
  })

  rs.publish(ctx, row.MatrixID, sse.SSEEventRenderRowQueued, map[string]interface{}{
    "row_id":   rowID,
    "priority": input.Priority,
  })

  return rs.getRow(ctx, rowID)
}

// StartBatchRendering enqueues every draft and failed row of the matrix, or
// only the given row ids. Returns the number of rows enqueued.
func (rs *renderService) StartBatchRendering(ctx context.Context, matrixID uuid.UUID, input StartBatchInput) (int, error) {
  if _, err := rs.matrixService.GetMatrix(ctx, matrixID); err != nil {
    return 0, err
  }

  var rows []*types.MatrixRow
  var err error
  if len(input.RowIDs) > 0 {
    rows, err = rs.matrixRowRepo.GetByIDs(ctx, nil, input.RowIDs)
  } else {
    rows, err = rs.matrixRowRepo.GetByMatrixAndStatus(ctx, nil, matrixID, []string{types.RowStatusDraft, types.RowStatusFailed})
  }
  if err != nil {
    return 0, fmt.Errorf("Failed to load rows for batch: %w", err)
  }

  enqueued := 0
  for _, row := range rows {
    if row.MatrixID != matrixID {
      continue
    }
    if row.Status == types.RowStatusRendering || rs.queue.IsInFlight(row.ID) {
      continue
    }
    if _, rErr := rs.RenderRow(ctx, row.ID, RenderRowInput{Priority: input.Priority, TemplateID: input.TemplateID}); rErr != nil {
      rs.log.Warn("Failed to enqueue row for batch", "rowID", row.ID, "error", rErr)
      continue
    }
    enqueued++
  }
  return enqueued, nil
}

// CancelQueuedRow removes a queued row from the queue and returns it to
// draft. Rows already dispatched cannot be cancelled; the external render
// job keeps running.
func (rs *renderService) CancelQueuedRow(ctx context.Context, rowID uuid.UUID) (*types.MatrixRow, error) {
  row, err := rs.getRow(ctx, rowID)
  if err != nil {
    return nil, err
  }
  if _, err := rs.matrixService.GetMatrix(ctx, row.MatrixID); err != nil {
    return nil, err
  }
  if row.Status != types.RowStatusQueued {
    return nil, fmt.Errorf("Row is not queued")
  }
  if !rs.queue.CancelQueued(rowID) {
    if rs.queue.IsInFlight(rowID) {
      return nil, fmt.Errorf("Row is already dispatched and cannot be cancelled")
    }
  }
  if err := rs.matrixRowRepo.UpdateFields(ctx, nil, rowID, map[string]interface{}{
    "status":    types.RowStatusDraft,
    "queued_at": gorm.Expr("NULL"),
  }); err != nil {
    return nil, fmt.Errorf("Failed to reset cancelled row: %w", err)
  }
  rs.publish(ctx, row.MatrixID, sse.SSEEventRenderRowCancelled, map[string]interface{}{
    "row_id": rowID,
  })
  return rs.getRow(ctx, rowID)
}

func (rs *renderService) GetBatchProgress(ctx context.Context, matrixID uuid.UUID) (*BatchProgress, error) {
  if _, err := rs.matrixService.GetMatrix(ctx, matrixID); err != nil {
    return nil, err
  }
  rows, err := rs.matrixRowRepo.GetByMatrixID(ctx, nil, matrixID)
  if err != nil {
    return nil, fmt.Errorf("Failed to load rows for progress: %w", err)
  }
  progress := computeBatchProgress(rows)
  return &progress, nil
}

// HandleRenderResult applies a terminal render outcome delivered by the
// external renderer's webhook.
func (rs *renderService) HandleRenderResult(ctx context.Context, result RenderResult) error {
  if result.JobID == "" {
    return fmt.Errorf("Job id is required")
  }
  row, err := rs.matrixRowRepo.GetByRenderJobID(ctx, nil, result.JobID)
  if err != nil {
    return fmt.Errorf("Failed to look up row by render job: %w", err)
  }
  if row == nil {
    // Stray or late result; acknowledge and drop.
    rs.log.Debug("Ignoring render result for unknown job", "jobID", result.JobID)
    return nil
  }
  if row.Status != types.RowStatusRendering {
    rs.log.Debug("Ignoring render result for non-rendering row", "rowID", row.ID, "status", row.Status)
    return nil
  }

  switch result.Status {
  case RenderJobStatusSucceeded:
    rs.completeRow(ctx, row, result.PreviewURL, result.ThumbnailURL)
  case RenderJobStatusFailed:
    errMsg := result.Error
    if errMsg == "" {
      errMsg = "render failed with no error detail"
    }
    rs.failRow(ctx, row, errMsg)
  default:
    return fmt.Errorf("Unknown render result status %q", result.Status)
  }
  return nil
}

// StartWorker launches the drain, poll and reconciliation loops. The drain
// loop dispatches up to the concurrency budget and returns without waiting
// for renders to finish; completions arrive via webhook or the poll loop.
func (rs *renderService) StartWorker(ctx context.Context) {
  go func() {
    drain := time.NewTicker(rs.cfg.DrainInterval)
    poll := time.NewTicker(rs.cfg.PollInterval)
    sweep := time.NewTicker(time.Minute)
    defer drain.Stop()
    defer poll.Stop()
    defer sweep.Stop()

    rs.reconcileStartup(ctx)

    for {
      select {
      case <-ctx.Done():
        return
      case <-drain.C:
        rs.drainOnce(ctx)
      case <-poll.C:
        rs.pollOnce(ctx)
      case <-sweep.C:
        rs.sweepStale(ctx)
      }
    }
  }()
  rs.log.Info("Render worker started",
    "maxConcurrent", rs.cfg.MaxConcurrent,
    "maxAttempts", rs.cfg.MaxAttempts,
    "pollInterval", rs.cfg.PollInterval.String(),
  )
}

func (rs *renderService) drainOnce(ctx context.Context) {
  batch := rs.queue.DequeueNextBatch(rs.cfg.MaxConcurrent)
  if len(batch) == 0 {
    return
  }
  g, gctx := errgroup.WithContext(ctx)
  for _, item := range batch {
    item := item
    g.Go(func() error {
      rs.dispatch(gctx, item)
      return nil
    })
  }
  _ = g.Wait()
}

// dispatch performs one render attempt for a queued item. Any failure path
// releases the concurrency slot; a submit failure re-enqueues the item until
// the attempt budget is spent.
func (rs *renderService) dispatch(ctx context.Context, item RenderQueueItem) {
  defer func() {
    if r := recover(); r != nil {
      rs.log.Error("Render dispatch panic", "rowID", item.RowID, "panic", r)
      rs.queue.MarkDone(item.RowID)
    }
  }()

  row, err := rs.getRow(ctx, item.RowID)
  if err != nil {
    rs.log.Warn("Dispatch dropped; row no longer exists", "rowID", item.RowID, "error", err)
    rs.queue.MarkDone(item.RowID)
    return
  }
  // A row cancelled while it waited (including during a retry delay, when it
  // sits in neither the pending nor the in-flight set) has left the queued
  // state; drop it instead of rendering.
  if row.Status != types.RowStatusQueued {
    rs.log.Debug("Dispatch dropped; row no longer queued", "rowID", row.ID, "status", row.Status)
    rs.queue.MarkDone(item.RowID)
    return
  }

  payload, vErr := rs.buildPayload(ctx, row)
  if vErr != nil {
    rs.failRow(ctx, row, vErr.Error())
    return
  }

  req := RenderRequest{
    TemplateID:    item.TemplateID,
    OutputFormat:  "mp4",
    Modifications: payload,
    WebhookURL:    rs.webhookURL,
  }
  attempts := item.Attempts + 1
  job, sErr := rs.client.SubmitRender(ctx, req)
  if sErr != nil {
    if attempts < rs.cfg.MaxAttempts {
      rs.log.Warn("Render submit failed; will retry",
        "rowID", row.ID, "attempt", attempts, "maxAttempts", rs.cfg.MaxAttempts, "error", sErr)
      rs.queue.MarkDone(item.RowID)
      if uErr := rs.matrixRowRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{"attempts": attempts}); uErr != nil {
        rs.log.Warn("Failed to bump row attempts", "rowID", row.ID, "error", uErr)
      }
      retry := item
      retry.Attempts = attempts
      time.AfterFunc(rs.cfg.RetryDelay, func() {
        rs.queue.Enqueue(retry)
      })
      return
    }
    rs.failRow(ctx, row, fmt.Sprintf("render submit failed after %d attempts: %v", attempts, sErr))
    return
  }

  now := time.Now()
  if uErr := rs.matrixRowRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
    "status":            types.RowStatusRendering,
    "render_job_id":     job.ID,
    "render_started_at": now,
    "attempts":          attempts,
  }); uErr != nil {
    rs.log.Error("Failed to mark row rendering", "rowID", row.ID, "jobID", job.ID, "error", uErr)
    rs.queue.MarkDone(item.RowID)
    return
  }
  rs.publish(ctx, row.MatrixID, sse.SSEEventRenderRowStarted, map[string]interface{}{
    "row_id": row.ID,
    "job_id": job.ID,
  })
}

// buildPayload resolves the row's slot assignments to render modifications.
// A missing optional asset is omitted with a log line; a missing required
// asset or an out-of-sync assignment set fails the row before any external
// call is made.
func (rs *renderService) buildPayload(ctx context.Context, row *types.MatrixRow) (map[string]string, error) {
  slots, err := rs.slotRepo.GetByMatrixID(ctx, nil, row.MatrixID)
  if err != nil {
    return nil, fmt.Errorf("failed to load matrix slots: %w", err)
  }

  assignment, aErr := decodeAssignments(row.Assignments)
  if aErr != nil {
    return nil, fmt.Errorf("row has invalid assignments: %w", aErr)
  }

  slotsByID := map[string]*types.MatrixSlot{}
  for _, slot := range slots {
    slotsByID[slot.ID.String()] = slot
  }
  for slotID := range assignment {
    if _, ok := slotsByID[slotID]; !ok {
      return nil, fmt.Errorf("row out of sync with matrix slots: slot %s no longer exists", slotID)
    }
  }
  for _, slot := range slots {
    candidates, _ := decodeCandidates(slot.Candidates)
    if len(candidates) == 0 {
      continue
    }
    if _, ok := assignment[slot.ID.String()]; !ok {
      return nil, fmt.Errorf("row out of sync with matrix slots: missing assignment for slot %q", slot.Name)
    }
  }

  assetIDs := make([]uuid.UUID, 0, len(assignment))
  for _, raw := range assignment {
    id, pErr := uuid.Parse(raw)
    if pErr != nil {
      return nil, fmt.Errorf("row references invalid asset id %q", raw)
    }
    assetIDs = append(assetIDs, id)
  }
  assets, err := rs.assetRepo.GetByIDs(ctx, nil, assetIDs)
  if err != nil {
    return nil, fmt.Errorf("failed to load row assets: %w", err)
  }
  assetsByID := map[string]*types.Asset{}
  for _, asset := range assets {
    assetsByID[asset.ID.String()] = asset
  }

  payload := map[string]string{}
  for slotID, assetID := range assignment {
    slot := slotsByID[slotID]
    asset, ok := assetsByID[assetID]
    if !ok {
      if slot.Required {
        return nil, fmt.Errorf("required slot %q references missing asset %s", slot.Name, assetID)
      }
      rs.log.Warn("Skipping slot; asset no longer exists", "rowID", row.ID, "slot", slot.Name, "assetID", assetID)
      continue
    }
    switch slot.Type {
    case types.AssetTypeText, types.AssetTypeCTA, types.AssetTypeTerms:
      payload[slotID] = asset.TextContent
    default:
      payload[slotID] = asset.FileURL
    }
  }
  return payload, nil
}

// pollOnce collects terminal results for rendering rows. It backs up the
// webhook path and is the only completion path when no webhook is configured.
func (rs *renderService) pollOnce(ctx context.Context) {
  rows, err := rs.matrixRowRepo.FindStaleRendering(ctx, nil, time.Now(), 100)
  if err != nil {
    rs.log.Warn("Poll query failed", "error", err)
    return
  }
  for _, row := range rows {
    if row.RenderJobID == "" {
      continue
    }
    job, jErr := rs.client.GetJob(ctx, row.RenderJobID)
    if jErr != nil {
      rs.log.Warn("Failed to poll render job", "rowID", row.ID, "jobID", row.RenderJobID, "error", jErr)
      continue
    }
    if !job.Terminal() {
      continue
    }
    if job.Status == RenderJobStatusSucceeded {
      rs.completeRow(ctx, row, job.PreviewURL, job.ThumbnailURL)
    } else {
      errMsg := job.Error
      if errMsg == "" {
        errMsg = "render failed with no error detail"
      }
      rs.failRow(ctx, row, errMsg)
    }
  }
}

// sweepStale handles rows stuck in rendering past the staleness timeout,
// typically after a process restart lost the in-memory queue. Rows with
// attempt budget left are re-queued; the rest are failed.
func (rs *renderService) sweepStale(ctx context.Context) {
  cutoff := time.Now().Add(-rs.cfg.StaleRenderTimeout)
  rows, err := rs.matrixRowRepo.FindStaleRendering(ctx, nil, cutoff, 50)
  if err != nil {
    rs.log.Warn("Stale sweep query failed", "error", err)
    return
  }
  for _, row := range rows {
    if rs.queue.IsInFlight(row.ID) {
      continue
    }
    if row.RenderJobID != "" {
      if job, jErr := rs.client.GetJob(ctx, row.RenderJobID); jErr == nil && !job.Terminal() {
        continue
      }
    }
    if row.Attempts < rs.cfg.MaxAttempts {
      rs.log.Info("Re-queueing stale rendering row", "rowID", row.ID, "attempts", row.Attempts)
      if uErr := rs.matrixRowRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
        "status":        types.RowStatusQueued,
        "render_job_id": "",
        "queued_at":     time.Now(),
      }); uErr != nil {
        rs.log.Warn("Failed to re-queue stale row", "rowID", row.ID, "error", uErr)
        continue
      }
      rs.queue.Enqueue(RenderQueueItem{
        MatrixID:   row.MatrixID,
        RowID:      row.ID,
        Priority:   row.Priority,
        TemplateID: row.TemplateID,
        Attempts:   row.Attempts,
      })
      continue
    }
    rs.failRow(ctx, row, "render timed out with no result from the render service")
  }
}

// reconcileStartup runs once when the worker starts: queued rows that were
// lost with the previous process's queue are re-enqueued.
func (rs *renderService) reconcileStartup(ctx context.Context) {
  rows, err := rs.matrixRowRepo.GetByStatus(ctx, nil, types.RowStatusQueued, 500)
  if err != nil {
    rs.log.Warn("Startup reconciliation query failed", "error", err)
    return
  }
  for _, row := range rows {
    rs.queue.Enqueue(RenderQueueItem{
      MatrixID:   row.MatrixID,
      RowID:      row.ID,
      Priority:   row.Priority,
      TemplateID: row.TemplateID,
      Attempts:   row.Attempts,
    })
  }
  if len(rows) > 0 {
    rs.log.Info("Re-enqueued queued rows from previous process", "count", len(rows))
  }
}

func (rs *renderService) completeRow(ctx context.Context, row *types.MatrixRow, previewURL, thumbnailURL string) {
  defer rs.queue.MarkDone(row.ID)
  now := time.Now()
  if err := rs.matrixRowRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
    "status":              types.RowStatusCompleted,
    "preview_url":         previewURL,
    "thumbnail_url":       thumbnailURL,
    "error":               "",
    "render_completed_at": now,
  }); err != nil {
    rs.log.Error("Failed to mark row completed", "rowID", row.ID, "error", err)
    return
  }
  rs.publish(ctx, row.MatrixID, sse.SSEEventRenderRowCompleted, map[string]interface{}{
    "row_id":      row.ID,
    "preview_url": previewURL,
  })
  rs.broadcastProgress(ctx, row.MatrixID)
}

func (rs *renderService) failRow(ctx context.Context, row *types.MatrixRow, errMsg string) {
  defer rs.queue.MarkDone(row.ID)
  now := time.Now()
  if err := rs.matrixRowRepo.UpdateFields(ctx, nil, row.ID, map[string]interface{}{
    "status":              types.RowStatusFailed,
    "error":               errMsg,
    "render_completed_at": now,
  }); err != nil {
    rs.log.Error("Failed to mark row failed", "rowID", row.ID, "error", err)
    return
  }
  rs.log.Warn("Row render failed", "rowID", row.ID, "error", errMsg)
  rs.publish(ctx, row.MatrixID, sse.SSEEventRenderRowFailed, map[string]interface{}{
    "row_id": row.ID,
    "error":  errMsg,
  })
  rs.broadcastProgress(ctx, row.MatrixID)
}

func (rs *renderService) broadcastProgress(ctx context.Context, matrixID uuid.UUID) {
  rows, err := rs.matrixRowRepo.GetByMatrixID(ctx, nil, matrixID)
  if err != nil {
    rs.log.Warn("Failed to compute progress for broadcast", "matrixID", matrixID, "error", err)
    return
  }
  progress := computeBatchProgress(rows)
  raw, mErr := json.Marshal(progress)
  if mErr != nil {
    return
  }
  var data map[string]interface{}
  if uErr := json.Unmarshal(raw, &data); uErr != nil {
    return
  }
  rs.publish(ctx, matrixID, sse.SSEEventBatchProgress, data)
}

func (rs *renderService) publish(ctx context.Context, matrixID uuid.UUID, event sse.SSEEvent, data map[string]interface{}) {
  if rs.publisher == nil {
    return
  }
  rs.publisher.Publish(ctx, sse.SSEMessage{
    Channel: sse.MatrixChannel(matrixID),
    Event:   event,
    Data:    data,
  })
}

func (rs *renderService) getRow(ctx context.Context, rowID uuid.UUID) (*types.MatrixRow, error) {
  found, err := rs.matrixRowRepo.GetByIDs(ctx, nil, []uuid.UUID{rowID})
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch row: %w", err)
  }
  if len(found) == 0 || found[0] == nil {
    return nil, fmt.Errorf("Row not found")
  }
  return found[0], nil
}
