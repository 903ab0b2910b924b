package services

import (
  "context"
  "encoding/json"
  "strings"
  "testing"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/airwave/airwave-backend/internal/config"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

type fakeSlotRepo struct {
  slots []*types.MatrixSlot
}

func (f *fakeSlotRepo) Create(ctx context.Context, tx *gorm.DB, slots []*types.MatrixSlot) ([]*types.MatrixSlot, error) {
  return slots, nil
}
func (f *fakeSlotRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.MatrixSlot, error) {
  return nil, nil
}
func (f *fakeSlotRepo) GetByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) ([]*types.MatrixSlot, error) {
  return f.slots, nil
}
func (f *fakeSlotRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  return nil
}
func (f *fakeSlotRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  return nil
}

type fakeAssetRepo struct {
  assets []*types.Asset
}

func (f *fakeAssetRepo) Create(ctx context.Context, tx *gorm.DB, assets []*types.Asset) ([]*types.Asset, error) {
  return assets, nil
}
func (f *fakeAssetRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Asset, error) {
  wanted := map[uuid.UUID]bool{}
  for _, id := range ids {
    wanted[id] = true
  }
  var out []*types.Asset
  for _, asset := range f.assets {
    if wanted[asset.ID] {
      out = append(out, asset)
    }
  }
  return out, nil
}
func (f *fakeAssetRepo) GetByCampaignID(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID, assetType string) ([]*types.Asset, error) {
  return f.assets, nil
}
func (f *fakeAssetRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  return nil
}
func (f *fakeAssetRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  return nil
}

type fakeRowRepo struct {
  rows    map[uuid.UUID]*types.MatrixRow
  updates map[uuid.UUID]map[string]interface{}
}

func newFakeRowRepo(rows ...*types.MatrixRow) *fakeRowRepo {
  repo := &fakeRowRepo{
    rows:    map[uuid.UUID]*types.MatrixRow{},
    updates: map[uuid.UUID]map[string]interface{}{},
  }
  for _, row := range rows {
    repo.rows[row.ID] = row
  }
  return repo
}

func (f *fakeRowRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.MatrixRow) ([]*types.MatrixRow, error) {
  for _, row := range rows {
    f.rows[row.ID] = row
  }
  return rows, nil
}
func (f *fakeRowRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.MatrixRow, error) {
  var out []*types.MatrixRow
  for _, id := range ids {
    if row, ok := f.rows[id]; ok {
      out = append(out, row)
    }
  }
  return out, nil
}
func (f *fakeRowRepo) GetByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) ([]*types.MatrixRow, error) {
  var out []*types.MatrixRow
  for _, row := range f.rows {
    if row.MatrixID == matrixID {
      out = append(out, row)
    }
  }
  return out, nil
}
func (f *fakeRowRepo) GetByRenderJobID(ctx context.Context, tx *gorm.DB, renderJobID string) (*types.MatrixRow, error) {
  for _, row := range f.rows {
    if row.RenderJobID == renderJobID {
      return row, nil
    }
  }
  return nil, nil
}
func (f *fakeRowRepo) GetByMatrixAndStatus(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID, statuses []string) ([]*types.MatrixRow, error) {
  return nil, nil
}
func (f *fakeRowRepo) GetByStatus(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.MatrixRow, error) {
  return nil, nil
}
func (f *fakeRowRepo) FindStaleRendering(ctx context.Context, tx *gorm.DB, startedBefore time.Time, limit int) ([]*types.MatrixRow, error) {
  return nil, nil
}
func (f *fakeRowRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  merged, ok := f.updates[id]
  if !ok {
    merged = map[string]interface{}{}
    f.updates[id] = merged
  }
  for k, v := range updates {
    merged[k] = v
  }
  if row, ok := f.rows[id]; ok {
    if status, ok := updates["status"].(string); ok {
      row.Status = status
    }
    if errMsg, ok := updates["error"].(string); ok {
      row.Error = errMsg
    }
    if attempts, ok := updates["attempts"].(int); ok {
      row.Attempts = attempts
    }
  }
  return nil
}
func (f *fakeRowRepo) FullDeleteUnlockedByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) error {
  return nil
}
func (f *fakeRowRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  return nil
}

type fakeRenderClient struct {
  submitCalls int
  job         *RenderJob
  err         error
}

func (f *fakeRenderClient) SubmitRender(ctx context.Context, req RenderRequest) (*RenderJob, error) {
  f.submitCalls++
  if f.err != nil {
    return nil, f.err
  }
  return f.job, nil
}
func (f *fakeRenderClient) GetJob(ctx context.Context, jobID string) (*RenderJob, error) {
  return f.job, nil
}

func mustJSON(t *testing.T, v interface{}) datatypes.JSON {
  t.Helper()
  raw, err := json.Marshal(v)
  if err != nil {
    t.Fatalf("marshal: %v", err)
  }
  return datatypes.JSON(raw)
}

func newTestRenderService(t *testing.T, rowRepo *fakeRowRepo, slotRepo *fakeSlotRepo, assetRepo *fakeAssetRepo, client *fakeRenderClient) *renderService {
  t.Helper()
  cfg := &config.RenderConfig{
    MaxConcurrent:      3,
    MaxAttempts:        3,
    RetryDelay:         time.Millisecond,
    StaleRenderTimeout: time.Minute,
    PollInterval:       time.Second,
    DrainInterval:      time.Millisecond,
    MaxCombinations:    100,
  }
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger: %v", err)
  }
  return &renderService{
    log:           log,
    cfg:           cfg,
    queue:         NewRenderQueue(),
    matrixRowRepo: rowRepo,
    slotRepo:      slotRepo,
    assetRepo:     assetRepo,
    client:        client,
  }
}

func TestDispatchMissingRequiredAssetFailsWithoutExternalCall(t *testing.T) {
  matrixID := uuid.New()
  videoSlot := &types.MatrixSlot{
    ID:         uuid.New(),
    MatrixID:   matrixID,
    Name:       "Video",
    Type:       types.AssetTypeVideo,
    Required:   true,
    Candidates: mustJSON(t, []string{uuid.NewString()}),
  }
  deletedAssetID := uuid.New()
  row := &types.MatrixRow{
    ID:          uuid.New(),
    MatrixID:    matrixID,
    Status:      types.RowStatusQueued,
    Assignments: mustJSON(t, map[string]string{videoSlot.ID.String(): deletedAssetID.String()}),
  }

  rowRepo := newFakeRowRepo(row)
  client := &fakeRenderClient{job: &RenderJob{ID: "job-1", Status: RenderJobStatusQueued}}
  rs := newTestRenderService(t, rowRepo, &fakeSlotRepo{slots: []*types.MatrixSlot{videoSlot}}, &fakeAssetRepo{}, client)

  rs.dispatch(context.Background(), RenderQueueItem{MatrixID: matrixID, RowID: row.ID, TemplateID: "tpl"})

  if client.submitCalls != 0 {
    t.Fatalf("external render API called %d times, want 0", client.submitCalls)
  }
  if row.Status != types.RowStatusFailed {
    t.Fatalf("row status = %q, want failed", row.Status)
  }
  if row.Error == "" {
    t.Fatal("failed row must carry a non-empty error message")
  }
  if rs.queue.IsInFlight(row.ID) {
    t.Fatal("concurrency slot leaked after validation failure")
  }
}

func TestDispatchDropsRowCancelledBeforeRetry(t *testing.T) {
  matrixID := uuid.New()
  assetID := uuid.New()
  slot := &types.MatrixSlot{
    ID:         uuid.New(),
    MatrixID:   matrixID,
    Name:       "Video",
    Type:       types.AssetTypeVideo,
    Required:   true,
    Candidates: mustJSON(t, []string{assetID.String()}),
  }
  // Cancelled while waiting out a retry delay: back to draft in storage,
  // absent from both queue sets, with the delayed re-enqueue still due.
  row := &types.MatrixRow{
    ID:          uuid.New(),
    MatrixID:    matrixID,
    Status:      types.RowStatusDraft,
    Assignments: mustJSON(t, map[string]string{slot.ID.String(): assetID.String()}),
  }

  rowRepo := newFakeRowRepo(row)
  client := &fakeRenderClient{job: &RenderJob{ID: "job-1", Status: RenderJobStatusQueued}}
  assetRepo := &fakeAssetRepo{assets: []*types.Asset{{ID: assetID, Type: types.AssetTypeVideo, FileURL: "https://cdn/v.mp4"}}}
  rs := newTestRenderService(t, rowRepo, &fakeSlotRepo{slots: []*types.MatrixSlot{slot}}, assetRepo, client)

  rs.queue.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: row.ID, TemplateID: "tpl", Attempts: 1})
  batch := rs.queue.DequeueNextBatch(1)
  if len(batch) != 1 {
    t.Fatalf("dequeued %d items, want 1", len(batch))
  }
  rs.dispatch(context.Background(), batch[0])

  if client.submitCalls != 0 {
    t.Fatalf("external render API called %d times for a cancelled row, want 0", client.submitCalls)
  }
  if row.Status != types.RowStatusDraft {
    t.Fatalf("row status = %q, want draft untouched", row.Status)
  }
  if rs.queue.IsInFlight(row.ID) {
    t.Fatal("concurrency slot leaked after dropping a cancelled row")
  }
}

func TestDispatchOutOfSyncRowFails(t *testing.T) {
  matrixID := uuid.New()
  slot := &types.MatrixSlot{
    ID:         uuid.New(),
    MatrixID:   matrixID,
    Name:       "Video",
    Type:       types.AssetTypeVideo,
    Candidates: mustJSON(t, []string{uuid.NewString()}),
  }
  // Row assigns a slot that no longer exists on the matrix.
  row := &types.MatrixRow{
    ID:          uuid.New(),
    MatrixID:    matrixID,
    Status:      types.RowStatusQueued,
    Assignments: mustJSON(t, map[string]string{uuid.NewString(): uuid.NewString()}),
  }

  rowRepo := newFakeRowRepo(row)
  client := &fakeRenderClient{}
  rs := newTestRenderService(t, rowRepo, &fakeSlotRepo{slots: []*types.MatrixSlot{slot}}, &fakeAssetRepo{}, client)

  rs.dispatch(context.Background(), RenderQueueItem{MatrixID: matrixID, RowID: row.ID, TemplateID: "tpl"})

  if client.submitCalls != 0 {
    t.Fatalf("external render API called %d times, want 0", client.submitCalls)
  }
  if row.Status != types.RowStatusFailed {
    t.Fatalf("row status = %q, want failed", row.Status)
  }
  if !strings.Contains(row.Error, "out of sync") {
    t.Fatalf("error = %q, want an out-of-sync message", row.Error)
  }
}

func TestBuildPayloadTextVersusURL(t *testing.T) {
  matrixID := uuid.New()
  textAsset := &types.Asset{
    ID:          uuid.New(),
    Type:        types.AssetTypeText,
    TextContent: "Buy now and save",
  }
  videoAsset := &types.Asset{
    ID:      uuid.New(),
    Type:    types.AssetTypeVideo,
    FileURL: "https://cdn.example.com/video.mp4",
  }
  textSlot := &types.MatrixSlot{
    ID:         uuid.New(),
    MatrixID:   matrixID,
    Name:       "Copy",
    Type:       types.AssetTypeText,
    Candidates: mustJSON(t, []string{textAsset.ID.String()}),
  }
  videoSlot := &types.MatrixSlot{
    ID:         uuid.New(),
    MatrixID:   matrixID,
    Name:       "Video",
    Type:       types.AssetTypeVideo,
    Candidates: mustJSON(t, []string{videoAsset.ID.String()}),
  }
  row := &types.MatrixRow{
    ID:       uuid.New(),
    MatrixID: matrixID,
    Status:   types.RowStatusQueued,
    Assignments: mustJSON(t, map[string]string{
      textSlot.ID.String():  textAsset.ID.String(),
      videoSlot.ID.String(): videoAsset.ID.String(),
    }),
  }

  rowRepo := newFakeRowRepo(row)
  rs := newTestRenderService(t, rowRepo,
    &fakeSlotRepo{slots: []*types.MatrixSlot{textSlot, videoSlot}},
    &fakeAssetRepo{assets: []*types.Asset{textAsset, videoAsset}},
    &fakeRenderClient{})

  payload, err := rs.buildPayload(context.Background(), row)
  if err != nil {
    t.Fatalf("buildPayload: %v", err)
  }
  if got := payload[textSlot.ID.String()]; got != "Buy now and save" {
    t.Fatalf("text slot payload = %q, want the asset text content", got)
  }
  if got := payload[videoSlot.ID.String()]; got != "https://cdn.example.com/video.mp4" {
    t.Fatalf("video slot payload = %q, want the asset url", got)
  }
}

func TestBuildPayloadOmitsMissingOptionalAsset(t *testing.T) {
  matrixID := uuid.New()
  videoAsset := &types.Asset{
    ID:      uuid.New(),
    Type:    types.AssetTypeVideo,
    FileURL: "https://cdn.example.com/video.mp4",
  }
  videoSlot := &types.MatrixSlot{
    ID:         uuid.New(),
    MatrixID:   matrixID,
    Name:       "Video",
    Type:       types.AssetTypeVideo,
    Candidates: mustJSON(t, []string{videoAsset.ID.String()}),
  }
  optionalSlot := &types.MatrixSlot{
    ID:         uuid.New(),
    MatrixID:   matrixID,
    Name:       "Graphics",
    Type:       types.AssetTypeGraphics,
    Candidates: mustJSON(t, []string{uuid.NewString()}),
  }
  missingAssetID := uuid.New()
  row := &types.MatrixRow{
    ID:       uuid.New(),
    MatrixID: matrixID,
    Status:   types.RowStatusQueued,
    Assignments: mustJSON(t, map[string]string{
      videoSlot.ID.String():    videoAsset.ID.String(),
      optionalSlot.ID.String(): missingAssetID.String(),
    }),
  }

  rowRepo := newFakeRowRepo(row)
  rs := newTestRenderService(t, rowRepo,
    &fakeSlotRepo{slots: []*types.MatrixSlot{videoSlot, optionalSlot}},
    &fakeAssetRepo{assets: []*types.Asset{videoAsset}},
    &fakeRenderClient{})

  payload, err := rs.buildPayload(context.Background(), row)
  if err != nil {
    t.Fatalf("buildPayload: %v", err)
  }
  if _, ok := payload[optionalSlot.ID.String()]; ok {
    t.Fatal("missing optional asset should be omitted, not included")
  }
  if len(payload) != 1 {
    t.Fatalf("payload has %d entries, want 1", len(payload))
  }
}

func TestHandleRenderResultCompletesRow(t *testing.T) {
  matrixID := uuid.New()
  row := &types.MatrixRow{
    ID:          uuid.New(),
    MatrixID:    matrixID,
    Status:      types.RowStatusRendering,
    RenderJobID: "job-42",
  }
  rowRepo := newFakeRowRepo(row)
  rs := newTestRenderService(t, rowRepo, &fakeSlotRepo{}, &fakeAssetRepo{}, &fakeRenderClient{})

  err := rs.HandleRenderResult(context.Background(), RenderResult{
    JobID:        "job-42",
    Status:       RenderJobStatusSucceeded,
    PreviewURL:   "https://cdn.example.com/out.mp4",
    ThumbnailURL: "https://cdn.example.com/out.png",
  })
  if err != nil {
    t.Fatalf("HandleRenderResult: %v", err)
  }
  if row.Status != types.RowStatusCompleted {
    t.Fatalf("row status = %q, want completed", row.Status)
  }
  updates := rowRepo.updates[row.ID]
  if updates["preview_url"] != "https://cdn.example.com/out.mp4" {
    t.Fatalf("preview url not stored: %v", updates)
  }
}

func TestHandleRenderResultUnknownJobDropped(t *testing.T) {
  rowRepo := newFakeRowRepo()
  rs := newTestRenderService(t, rowRepo, &fakeSlotRepo{}, &fakeAssetRepo{}, &fakeRenderClient{})
  err := rs.HandleRenderResult(context.Background(), RenderResult{JobID: "nope", Status: RenderJobStatusSucceeded})
  if err != nil {
    t.Fatalf("unknown job id should be dropped, got error: %v", err)
  }
  if len(rowRepo.updates) != 0 {
    t.Fatalf("unknown job id touched %d row(s)", len(rowRepo.updates))
  }
}
