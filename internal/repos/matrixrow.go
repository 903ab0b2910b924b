package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

type MatrixRowRepo interface {
  Create(ctx context.Context, tx *gorm.DB, rows []*types.MatrixRow) ([]*types.MatrixRow, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.MatrixRow, error)
  GetByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) ([]*types.MatrixRow, error)
  GetByRenderJobID(ctx context.Context, tx *gorm.DB, renderJobID string) (*types.MatrixRow, error)
  GetByMatrixAndStatus(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID, statuses []string) ([]*types.MatrixRow, error)
  GetByStatus(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.MatrixRow, error)

  // FindStaleRendering returns rows stuck in the rendering state whose render
  // started before the cutoff. Used by the restart-recovery sweep.
  FindStaleRendering(ctx context.Context, tx *gorm.DB, startedBefore time.Time, limit int) ([]*types.MatrixRow, error)

  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  FullDeleteUnlockedByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) error
  FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type matrixRowRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMatrixRowRepo(db *gorm.DB, baseLog *logger.Logger) MatrixRowRepo {
  repoLog := baseLog.With("repo", "MatrixRowRepo")
  return &matrixRowRepo{db: db, log: repoLog}
}

func (r *matrixRowRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.MatrixRow) ([]*types.MatrixRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(rows) == 0 {
    return []*types.MatrixRow{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
    return nil, err
  }
  return rows, nil
}

func (r *matrixRowRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.MatrixRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MatrixRow
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *matrixRowRepo) GetByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) ([]*types.MatrixRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MatrixRow
  if matrixID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("matrix_id = ?", matrixID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *matrixRowRepo) GetByRenderJobID(ctx context.Context, tx *gorm.DB, renderJobID string) (*types.MatrixRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if renderJobID == "" {
    return nil, nil
  }
  var row types.MatrixRow
  err := transaction.WithContext(ctx).
    Where("render_job_id = ?", renderJobID).
    Limit(1).
    Find(&row).Error
  if err != nil {
    return nil, err
  }
  if row.ID == uuid.Nil {
    return nil, nil
  }
  return &row, nil
}

func (r *matrixRowRepo) GetByMatrixAndStatus(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID, statuses []string) ([]*types.MatrixRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MatrixRow
  if matrixID == uuid.Nil || len(statuses) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("matrix_id = ? AND status IN ?", matrixID, statuses).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *matrixRowRepo) GetByStatus(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.MatrixRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MatrixRow
  if status == "" {
    return results, nil
  }
  query := transaction.WithContext(ctx).
    Where("status = ?", status).
    Order("priority ASC, created_at ASC")
  if limit > 0 {
    query = query.Limit(limit)
  }
  if err := query.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *matrixRowRepo) FindStaleRendering(ctx context.Context, tx *gorm.DB, startedBefore time.Time, limit int) ([]*types.MatrixRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    limit = 50
  }
  var results []*types.MatrixRow
  if err := transaction.WithContext(ctx).
    Where("status = ? AND render_started_at IS NOT NULL AND render_started_at < ?", types.RowStatusRendering, startedBefore).
    Order("render_started_at ASC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *matrixRowRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.MatrixRow{}).
    Where("id = ?", id).
    Updates(updates).Error
}

// FullDeleteUnlockedByMatrixID removes every unlocked row of a matrix. Locked
// rows survive regeneration verbatim.
func (r *matrixRowRepo) FullDeleteUnlockedByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if matrixID == uuid.Nil {
    return nil
  }
  return transaction.WithContext(ctx).
    Unscoped().
    Where("matrix_id = ? AND locked = ?", matrixID, false).
    Delete(&types.MatrixRow{}).Error
}

func (r *matrixRowRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(ids) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Unscoped().
    Where("id IN ?", ids).
    Delete(&types.MatrixRow{}).Error
}
