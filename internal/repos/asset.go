package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

type AssetRepo interface {
  Create(ctx context.Context, tx *gorm.DB, assets []*types.Asset) ([]*types.Asset, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Asset, error)
  GetByCampaignID(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID, assetType string) ([]*types.Asset, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type assetRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
  repoLog := baseLog.With("repo", "AssetRepo")
  return &assetRepo{db: db, log: repoLog}
}

func (r *assetRepo) Create(ctx context.Context, tx *gorm.DB, assets []*types.Asset) ([]*types.Asset, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(assets) == 0 {
    return []*types.Asset{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&assets).Error; err != nil {
    return nil, err
  }
  return assets, nil
}

func (r *assetRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Asset, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Asset
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

func (r *assetRepo) GetByCampaignID(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID, assetType string) ([]*types.Asset, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Asset
  if campaignID == uuid.Nil {
    return results, nil
  }
  q := transaction.WithContext(ctx).Where("campaign_id = ?", campaignID)
  if assetType != "" {
    q = q.Where("type = ?", assetType)
  }
  if err := q.Order("created_at DESC").Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *assetRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
    Model(&types.Asset{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *assetRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(ids) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Delete(&types.Asset{}).Error
}
