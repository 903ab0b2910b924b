package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Row lifecycle: draft -> queued -> rendering -> completed|failed. A failed
// row may be re-queued by the user; there is no way back to draft.
const (
  RowStatusDraft     = "draft"
  RowStatusQueued    = "queued"
  RowStatusRendering = "rendering"
  RowStatusCompleted = "completed"
  RowStatusFailed    = "failed"
)

// MatrixRow is one concrete combination. Assignments holds a JSON object
// mapping slot id -> chosen asset id and must cover every slot on the matrix,
// locked slots included.
type MatrixRow struct {
  ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  MatrixID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"matrix_id"`
  Matrix      *Matrix        `gorm:"constraint:OnDelete:CASCADE;foreignKey:MatrixID;references:ID" json:"matrix,omitempty"`
  Assignments datatypes.JSON `gorm:"column:assignments;type:jsonb;not null" json:"assignments"`
  Locked      bool           `gorm:"column:locked;not null;default:false" json:"locked"`
  Status      string         `gorm:"column:status;not null;index" json:"status"`
  Priority    int            `gorm:"column:priority;not null;default:0" json:"priority"`
  TemplateID  string         `gorm:"column:template_id" json:"template_id"`

  RenderJobID  string `gorm:"column:render_job_id;index" json:"render_job_id"`
  PreviewURL   string `gorm:"column:preview_url" json:"preview_url"`
  ThumbnailURL string `gorm:"column:thumbnail_url" json:"thumbnail_url"`
  Error        string `gorm:"column:error" json:"error"`
  Attempts     int    `gorm:"column:attempts;not null;default:0" json:"attempts"`

  QueuedAt          *time.Time `gorm:"column:queued_at" json:"queued_at,omitempty"`
  RenderStartedAt   *time.Time `gorm:"column:render_started_at;index" json:"render_started_at,omitempty"`
  RenderCompletedAt *time.Time `gorm:"column:render_completed_at" json:"render_completed_at,omitempty"`

  CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
  UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
  DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MatrixRow) TableName() string {
  return "matrix_row"
}
