package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

type CampaignRepo interface {
  Create(ctx context.Context, tx *gorm.DB, campaigns []*types.Campaign) ([]*types.Campaign, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Campaign, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Campaign, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type campaignRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCampaignRepo(db *gorm.DB, baseLog *logger.Logger) CampaignRepo {
  repoLog := baseLog.With("repo", "CampaignRepo")
  return &campaignRepo{db: db, log: repoLog}
}

func (r *campaignRepo) Create(ctx context.Context, tx *gorm.DB, campaigns []*types.Campaign) ([]*types.Campaign, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(campaigns) == 0 {
    return []*types.Campaign{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&campaigns).Error; err != nil {
    return nil, err
  }
  return campaigns, nil
}

func (r *campaignRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Campaign, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Campaign
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

func (r *campaignRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Campaign, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Campaign
  if userID == uuid.Nil {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *campaignRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
    Model(&types.Campaign{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *campaignRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(ids) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Delete(&types.Campaign{}).Error
}
