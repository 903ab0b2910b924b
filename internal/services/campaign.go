package services

import (
  "context"
  "fmt"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/normalization"
  "github.com/airwave/airwave-backend/internal/repos"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/types"
)

type CreateCampaignInput struct {
  Name        string `json:"name"`
  Description string `json:"description"`
  ClientName  string `json:"client_name"`
}

type CampaignService interface {
  CreateCampaign(ctx context.Context, input CreateCampaignInput) (*types.Campaign, error)
  GetCampaign(ctx context.Context, campaignID uuid.UUID) (*types.Campaign, error)
  ListCampaigns(ctx context.Context) ([]*types.Campaign, error)
  UpdateCampaign(ctx context.Context, campaignID uuid.UUID, updates map[string]interface{}) (*types.Campaign, error)
  DeleteCampaign(ctx context.Context, campaignID uuid.UUID) error
}

type campaignService struct {
  db           *gorm.DB
  log          *logger.Logger
  campaignRepo repos.CampaignRepo
}

func NewCampaignService(db *gorm.DB, log *logger.Logger, campaignRepo repos.CampaignRepo) CampaignService {
  serviceLog := log.With("service", "CampaignService")
  return &campaignService{
    db:           db,
    log:          serviceLog,
    campaignRepo: campaignRepo,
  }
}

func (cs *campaignService) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*types.Campaign, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("Unauthorized")
  }
  name := normalization.ParseInputString(input.Name)
  if name == "" {
    return nil, fmt.Errorf("Campaign name is required")
  }
  now := time.Now()
  campaign := &types.Campaign{
    ID:          uuid.New(),
    UserID:      rd.UserID,
    Name:        name,
    Description: input.Description,
    ClientName:  input.ClientName,
    Status:      "draft",
    CreatedAt:   now,
    UpdatedAt:   now,
  }
  if _, err := cs.campaignRepo.Create(ctx, nil, []*types.Campaign{campaign}); err != nil {
    return nil, fmt.Errorf("Failed to create campaign: %w", err)
  }
  return campaign, nil
}

func (cs *campaignService) GetCampaign(ctx context.Context, campaignID uuid.UUID) (*types.Campaign, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("Unauthorized")
  }
  found, err := cs.campaignRepo.GetByIDs(ctx, nil, []uuid.UUID{campaignID})
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch campaign: %w", err)
  }
  if len(found) == 0 || found[0] == nil {
    return nil, fmt.Errorf("Campaign not found")
  }
  if found[0].UserID != rd.UserID {
    return nil, fmt.Errorf("Campaign not found")
  }
  return found[0], nil
}

func (cs *campaignService) ListCampaigns(ctx context.Context) ([]*types.Campaign, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("Unauthorized")
  }
  campaigns, err := cs.campaignRepo.GetByUserID(ctx, nil, rd.UserID)
  if err != nil {
    return nil, fmt.Errorf("Failed to list campaigns: %w", err)
  }
  return campaigns, nil
}

var allowedCampaignUpdateFields = map[string]bool{
  "name":        true,
  "description": true,
  "client_name": true,
  "status":      true,
  "metadata":    true,
}

func (cs *campaignService) UpdateCampaign(ctx context.Context, campaignID uuid.UUID, updates map[string]interface{}) (*types.Campaign, error) {
  campaign, err := cs.GetCampaign(ctx, campaignID)
  if err != nil {
    return nil, err
  }
  filtered := map[string]interface{}{}
  for k, v := range updates {
    if allowedCampaignUpdateFields[k] {
      filtered[k] = v
    }
  }
  if len(filtered) == 0 {
    return campaign, nil
  }
  if err := cs.campaignRepo.UpdateFields(ctx, nil, campaignID, filtered); err != nil {
    return nil, fmt.Errorf("Failed to update campaign: %w", err)
  }
  found, err := cs.campaignRepo.GetByIDs(ctx, nil, []uuid.UUID{campaignID})
  if err != nil || len(found) == 0 {
    return nil, fmt.Errorf("Failed to reload campaign")
  }
  return found[0], nil
}

func (cs *campaignService) DeleteCampaign(ctx context.Context, campaignID uuid.UUID) error {
  if _, err := cs.GetCampaign(ctx, campaignID); err != nil {
    return err
  }
  if err := cs.campaignRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{campaignID}); err != nil {
    return fmt.Errorf("Failed to delete campaign: %w", err)
  }
  return nil
}
