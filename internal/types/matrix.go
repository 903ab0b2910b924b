package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

type Matrix struct {
  ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  CampaignID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"campaign_id"`
  Campaign    *Campaign      `gorm:"constraint:OnDelete:CASCADE;foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
  CreatedBy   uuid.UUID      `gorm:"type:uuid;not null;index;column:created_by" json:"created_by"`
  Name        string         `gorm:"column:name;not null" json:"name"`
  Description string         `gorm:"column:description" json:"description"`
  Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
  CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
  DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Matrix) TableName() string {
  return "matrix"
}

// MatrixSlot is one creative placeholder within a matrix. Candidates holds an
// ordered JSON array of asset id strings; locked slots always resolve to their
// first candidate and are excluded from permutation.
type MatrixSlot struct {
  ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  MatrixID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"matrix_id"`
  Matrix     *Matrix        `gorm:"constraint:OnDelete:CASCADE;foreignKey:MatrixID;references:ID" json:"matrix,omitempty"`
  Index      int            `gorm:"column:index;not null" json:"index"`
  Name       string         `gorm:"column:name;not null" json:"name"`
  Type       string         `gorm:"column:type;not null" json:"type"`
  Required   bool           `gorm:"column:required;not null;default:false" json:"required"`
  Locked     bool           `gorm:"column:locked;not null;default:false" json:"locked"`
  Candidates datatypes.JSON `gorm:"column:candidates;type:jsonb" json:"candidates"`
  CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
  DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MatrixSlot) TableName() string {
  return "matrix_slot"
}
