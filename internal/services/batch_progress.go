package services

import (
  "github.com/airwave/airwave-backend/internal/types"
)

// BatchProgress is derived from row statuses on demand. It is a snapshot,
// never the source of truth for any row.
type BatchProgress struct {
  Total           int     `json:"total"`
  Completed       int     `json:"completed"`
  Failed          int     `json:"failed"`
  InProgress      int     `json:"in_progress"`
  Queued          int     `json:"queued"`
  Draft           int     `json:"draft"`
  OverallProgress float64 `json:"overall_progress"`

  // EstimatedSecondsRemaining is omitted when no completed row carries both a
  // start and completion timestamp; absence means unknown, not instant.
  EstimatedSecondsRemaining *float64 `json:"estimated_seconds_remaining,omitempty"`
}

// computeBatchProgress aggregates row statuses. Failed rows count as done for
// overall progress: progress measures work attempted, not work successful.
func computeBatchProgress(rows []*types.MatrixRow) BatchProgress {
  p := BatchProgress{Total: len(rows)}

  var durationSum float64
  var durationSamples int
  for _, row := range rows {
    switch row.Status {
    case types.RowStatusCompleted:
      p.Completed++
    case types.RowStatusFailed:
      p.Failed++
    case types.RowStatusRendering:
      p.InProgress++
    case types.RowStatusQueued:
      p.Queued++
    default:
      p.Draft++
    }
    if row.RenderStartedAt != nil && row.RenderCompletedAt != nil {
      d := row.RenderCompletedAt.Sub(*row.RenderStartedAt).Seconds()
      if d >= 0 {
        durationSum += d
        durationSamples++
      }
    }
  }

  if p.Total > 0 {
    p.OverallProgress = float64(p.Completed+p.Failed) / float64(p.Total)
  }

  remaining := p.Queued + p.InProgress
  if durationSamples > 0 && remaining > 0 {
    avg := durationSum / float64(durationSamples)
    eta := avg * float64(remaining)
    p.EstimatedSecondsRemaining = &eta
  }

  return p
}
