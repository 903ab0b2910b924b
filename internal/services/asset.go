package services

import (
  "bytes"
  "context"
  "fmt"
  "path/filepath"
  "strings"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/normalization"
  "github.com/airwave/airwave-backend/internal/repos"
  "github.com/airwave/airwave-backend/internal/types"
)

type UploadAssetInput struct {
  CampaignID uuid.UUID
  Name       string
  Type       string
  MimeType   string
  Filename   string
  Data       []byte
}

type CreateTextAssetInput struct {
  CampaignID  uuid.UUID `json:"campaign_id"`
  Name        string    `json:"name"`
  Type        string    `json:"type"`
  TextContent string    `json:"text_content"`
}

type AssetService interface {
  UploadAsset(ctx context.Context, input UploadAssetInput) (*types.Asset, error)
  CreateTextAsset(ctx context.Context, input CreateTextAssetInput) (*types.Asset, error)
  GetAsset(ctx context.Context, assetID uuid.UUID) (*types.Asset, error)
  ListAssets(ctx context.Context, campaignID uuid.UUID, assetType string) ([]*types.Asset, error)
  DeleteAsset(ctx context.Context, assetID uuid.UUID) error
}

type assetService struct {
  db               *gorm.DB
  log              *logger.Logger
  assetRepo        repos.AssetRepo
  campaignService  CampaignService
  bucketService    BucketService
  thumbnailService ThumbnailService
}

func NewAssetService(
  db *gorm.DB,
  log *logger.Logger,
  assetRepo repos.AssetRepo,
  campaignService CampaignService,
  bucketService BucketService,
  thumbnailService ThumbnailService,
) AssetService {
  serviceLog := log.With("service", "AssetService")
  return &assetService{
    db:               db,
    log:              serviceLog,
    assetRepo:        assetRepo,
    campaignService:  campaignService,
    bucketService:    bucketService,
    thumbnailService: thumbnailService,
  }
}

func (s *assetService) UploadAsset(ctx context.Context, input UploadAssetInput) (*types.Asset, error) {
  if _, err := s.campaignService.GetCampaign(ctx, input.CampaignID); err != nil {
    return nil, err
  }
  if !types.ValidAssetType(input.Type) {
    return nil, fmt.Errorf("Invalid asset type %q", input.Type)
  }
  if len(input.Data) == 0 {
    return nil, fmt.Errorf("Empty upload")
  }
  if s.bucketService == nil {
    return nil, fmt.Errorf("File uploads are disabled: no bucket service configured")
  }
  name := normalization.ParseInputString(input.Name)
  if name == "" {
    name = strings.TrimSuffix(input.Filename, filepath.Ext(input.Filename))
  }

  assetID := uuid.New()
  key := fmt.Sprintf("campaign_asset/%s/%s%s", input.CampaignID.String(), assetID.String(), filepath.Ext(input.Filename))
  if err := s.bucketService.UploadFile(ctx, key, bytes.NewReader(input.Data)); err != nil {
    return nil, fmt.Errorf("Failed to upload asset file: %w", err)
  }

  now := time.Now()
  asset := &types.Asset{
    ID:         assetID,
    CampaignID: input.CampaignID,
    Name:       name,
    Type:       input.Type,
    MimeType:   input.MimeType,
    SizeBytes:  int64(len(input.Data)),
    StorageKey: key,
    FileURL:    s.bucketService.GetPublicURL(key),
    Status:     "ready",
    CreatedAt:  now,
    UpdatedAt:  now,
  }

  s.attachThumbnail(ctx, asset, input.Data)

  if _, err := s.assetRepo.Create(ctx, nil, []*types.Asset{asset}); err != nil {
    return nil, fmt.Errorf("Failed to create asset: %w", err)
  }
  return asset, nil
}

func (s *assetService) CreateTextAsset(ctx context.Context, input CreateTextAssetInput) (*types.Asset, error) {
  if _, err := s.campaignService.GetCampaign(ctx, input.CampaignID); err != nil {
    return nil, err
  }
  assetType := input.Type
  if assetType == "" {
    assetType = types.AssetTypeText
  }
  switch assetType {
  case types.AssetTypeText, types.AssetTypeCTA, types.AssetTypeTerms:
  default:
    return nil, fmt.Errorf("Invalid text asset type %q", assetType)
  }
  name := normalization.ParseInputString(input.Name)
  if name == "" {
    return nil, fmt.Errorf("Asset name is required")
  }
  if strings.TrimSpace(input.TextContent) == "" {
    return nil, fmt.Errorf("Text content is required")
  }

  now := time.Now()
  asset := &types.Asset{
    ID:          uuid.New(),
    CampaignID:  input.CampaignID,
    Name:        name,
    Type:        assetType,
    MimeType:    "text/plain",
    SizeBytes:   int64(len(input.TextContent)),
    TextContent: input.TextContent,
    Status:      "ready",
    CreatedAt:   now,
    UpdatedAt:   now,
  }

  s.attachThumbnail(ctx, asset, nil)

  if _, err := s.assetRepo.Create(ctx, nil, []*types.Asset{asset}); err != nil {
    return nil, fmt.Errorf("Failed to create asset: %w", err)
  }
  return asset, nil
}

// attachThumbnail is best-effort: a failed thumbnail never fails the upload.
func (s *assetService) attachThumbnail(ctx context.Context, asset *types.Asset, raw []byte) {
  if s.thumbnailService == nil || s.bucketService == nil {
    return
  }
  var buf bytes.Buffer
  var err error
  if asset.Type == types.AssetTypeImage && len(raw) > 0 {
    buf, err = s.thumbnailService.ResizeImage(raw, 320)
  } else {
    buf, err = s.thumbnailService.GenerateCard(asset.Name, asset.Type)
  }
  if err != nil {
    s.log.Warn("Failed to generate thumbnail (ignored)", "assetID", asset.ID, "error", err)
    return
  }
  thumbKey := fmt.Sprintf("campaign_asset/%s/thumb/%s.png", asset.CampaignID.String(), asset.ID.String())
  if err := s.bucketService.UploadFile(ctx, thumbKey, bytes.NewReader(buf.Bytes())); err != nil {
    s.log.Warn("Failed to upload thumbnail (ignored)", "assetID", asset.ID, "error", err)
    return
  }
  asset.ThumbnailURL = s.bucketService.GetPublicURL(thumbKey)
}

func (s *assetService) GetAsset(ctx context.Context, assetID uuid.UUID) (*types.Asset, error) {
  found, err := s.assetRepo.GetByIDs(ctx, nil, []uuid.UUID{assetID})
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch asset: %w", err)
  }
  if len(found) == 0 || found[0] == nil {
    return nil, fmt.Errorf("Asset not found")
  }
  if _, err := s.campaignService.GetCampaign(ctx, found[0].CampaignID); err != nil {
    return nil, fmt.Errorf("Asset not found")
  }
  return found[0], nil
}

func (s *assetService) ListAssets(ctx context.Context, campaignID uuid.UUID, assetType string) ([]*types.Asset, error) {
  if _, err := s.campaignService.GetCampaign(ctx, campaignID); err != nil {
    return nil, err
  }
  assets, err := s.assetRepo.GetByCampaignID(ctx, nil, campaignID, assetType)
  if err != nil {
    return nil, fmt.Errorf("Failed to list assets: %w", err)
  }
  return assets, nil
}

func (s *assetService) DeleteAsset(ctx context.Context, assetID uuid.UUID) error {
  asset, err := s.GetAsset(ctx, assetID)
  if err != nil {
    return err
  }
  if err := s.assetRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{assetID}); err != nil {
    return fmt.Errorf("Failed to delete asset: %w", err)
  }
  if asset.StorageKey != "" && s.bucketService != nil {
    if dErr := s.bucketService.DeleteFile(ctx, asset.StorageKey); dErr != nil {
      s.log.Warn("Failed to delete asset object (ignored)", "key", asset.StorageKey, "error", dErr)
    }
  }
  return nil
}
