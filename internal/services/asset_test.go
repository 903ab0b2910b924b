package services

import (
  "context"
  "strings"
  "testing"

  "github.com/google/uuid"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
)

type fakeCampaignService struct {
  campaign *types.Campaign
}

func (f *fakeCampaignService) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*types.Campaign, error) {
  return f.campaign, nil
}
func (f *fakeCampaignService) GetCampaign(ctx context.Context, campaignID uuid.UUID) (*types.Campaign, error) {
  return f.campaign, nil
}
func (f *fakeCampaignService) ListCampaigns(ctx context.Context) ([]*types.Campaign, error) {
  return []*types.Campaign{f.campaign}, nil
}
func (f *fakeCampaignService) UpdateCampaign(ctx context.Context, campaignID uuid.UUID, updates map[string]interface{}) (*types.Campaign, error) {
  return f.campaign, nil
}
func (f *fakeCampaignService) DeleteCampaign(ctx context.Context, campaignID uuid.UUID) error {
  return nil
}

func TestUploadAssetWithoutBucketServiceFailsCleanly(t *testing.T) {
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  campaignID := uuid.New()
  svc := &assetService{
    log:             log,
    assetRepo:       &fakeAssetRepo{},
    campaignService: &fakeCampaignService{campaign: &types.Campaign{ID: campaignID}},
  }

  _, err = svc.UploadAsset(context.Background(), UploadAssetInput{
    CampaignID: campaignID,
    Name:       "Hero shot",
    Type:       types.AssetTypeImage,
    MimeType:   "image/png",
    Filename:   "hero.png",
    Data:       []byte{0x89, 0x50, 0x4e, 0x47},
  })
  if err == nil {
    t.Fatal("expected error, got nil")
  }
  if !strings.Contains(err.Error(), "uploads are disabled") {
    t.Fatalf("unexpected error: %v", err)
  }
}

func TestDeleteAssetWithoutBucketServiceSkipsObjectDelete(t *testing.T) {
  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  campaignID := uuid.New()
  asset := &types.Asset{
    ID:         uuid.New(),
    CampaignID: campaignID,
    Name:       "Hero shot",
    Type:       types.AssetTypeImage,
    StorageKey: "campaign_asset/x/y.png",
  }
  svc := &assetService{
    log:             log,
    assetRepo:       &fakeAssetRepo{assets: []*types.Asset{asset}},
    campaignService: &fakeCampaignService{campaign: &types.Campaign{ID: campaignID}},
  }

  if err := svc.DeleteAsset(context.Background(), asset.ID); err != nil {
    t.Fatalf("DeleteAsset: %v", err)
  }
}
