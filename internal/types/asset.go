package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Asset semantic types. These mirror the slot types a matrix can declare.
const (
  AssetTypeVideo    = "video"
  AssetTypeImage    = "image"
  AssetTypeText     = "text"
  AssetTypeAudio    = "audio"
  AssetTypeGraphics = "graphics"
  AssetTypeCTA      = "cta"
  AssetTypeTerms    = "terms"
)

func ValidAssetType(t string) bool {
  switch t {
  case AssetTypeVideo, AssetTypeImage, AssetTypeText, AssetTypeAudio, AssetTypeGraphics, AssetTypeCTA, AssetTypeTerms:
    return true
  }
  return false
}

type Asset struct {
  ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  CampaignID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"campaign_id"`
  Campaign     *Campaign      `gorm:"constraint:OnDelete:CASCADE;foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
  Name         string         `gorm:"column:name;not null" json:"name"`
  Type         string         `gorm:"column:type;not null;index" json:"type"`
  MimeType     string         `gorm:"column:mime_type" json:"mime_type"`
  SizeBytes    int64          `gorm:"column:size_bytes" json:"size_bytes"`
  StorageKey   string         `gorm:"column:storage_key" json:"storage_key"`
  FileURL      string         `gorm:"column:file_url" json:"file_url"`
  ThumbnailURL string         `gorm:"column:thumbnail_url" json:"thumbnail_url"`
  TextContent  string         `gorm:"column:text_content" json:"text_content"`
  Status       string         `gorm:"column:status;not null;default:'ready'" json:"status"`
  Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
  CreatedAt    time.Time      `gorm:"not null;index" json:"created_at"`
  UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
  DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Asset) TableName() string {
  return "asset"
}
