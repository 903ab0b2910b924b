package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

type MatrixSlotRepo interface {
  Create(ctx context.Context, tx *gorm.DB, slots []*types.MatrixSlot) ([]*types.MatrixSlot, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.MatrixSlot, error)
  GetByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) ([]*types.MatrixSlot, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type matrixSlotRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMatrixSlotRepo(db *gorm.DB, baseLog *logger.Logger) MatrixSlotRepo {
  repoLog := baseLog.With("repo", "MatrixSlotRepo")
  return &matrixSlotRepo{db: db, log: repoLog}
}

func (r *matrixSlotRepo) Create(ctx context.Context, tx *gorm.DB, slots []*types.MatrixSlot) ([]*types.MatrixSlot, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(slots) == 0 {
    return []*types.MatrixSlot{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&slots).Error; err != nil {
    return nil, err
  }
  return slots, nil
}

func (r *matrixSlotRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.MatrixSlot, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MatrixSlot
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

// GetByMatrixID returns slots in authoring order; generation depends on this
// ordering being stable.
func (r *matrixSlotRepo) GetByMatrixID(ctx context.Context, tx *gorm.DB, matrixID uuid.UUID) ([]*types.MatrixSlot, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MatrixSlot
  if matrixID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("matrix_id = ?", matrixID).
    Order(`"index" ASC`).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *matrixSlotRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
    Model(&types.MatrixSlot{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *matrixSlotRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
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
    Delete(&types.MatrixSlot{}).Error
}
