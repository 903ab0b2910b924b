package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

type MatrixRepo interface {
  Create(ctx context.Context, tx *gorm.DB, matrices []*types.Matrix) ([]*types.Matrix, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Matrix, error)
  GetByCampaignID(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID) ([]*types.Matrix, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type matrixRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMatrixRepo(db *gorm.DB, baseLog *logger.Logger) MatrixRepo {
  repoLog := baseLog.With("repo", "MatrixRepo")
  return &matrixRepo{db: db, log: repoLog}
}

func (r *matrixRepo) Create(ctx context.Context, tx *gorm.DB, matrices []*types.Matrix) ([]*types.Matrix, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(matrices) == 0 {
    return []*types.Matrix{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&matrices).Error; err != nil {
    return nil, err
  }
  return matrices, nil
}

func (r *matrixRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Matrix, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Matrix
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

func (r *matrixRepo) GetByCampaignID(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID) ([]*types.Matrix, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Matrix
  if campaignID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("campaign_id = ?", campaignID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *matrixRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
    Model(&types.Matrix{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *matrixRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(ids) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Delete(&types.Matrix{}).Error
}
