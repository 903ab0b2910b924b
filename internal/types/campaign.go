package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

type Campaign struct {
  ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
  User        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Name        string         `gorm:"column:name;not null" json:"name"`
  Description string         `gorm:"column:description" json:"description"`
  ClientName  string         `gorm:"column:client_name" json:"client_name"`
  Status      string         `gorm:"column:status;not null;default:'draft'" json:"status"`
  Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
  CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
  DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Campaign) TableName() string {
  return "campaign"
}
