package services

import (
  "math"
  "testing"
  "time"
  "github.com/airwave/airwave-backend/internal/types"
)

func rowWithStatus(status string) *types.MatrixRow {
  return &types.MatrixRow{Status: status}
}

func TestComputeBatchProgressScenario(t *testing.T) {
  rows := []*types.MatrixRow{
    rowWithStatus(types.RowStatusCompleted),
    rowWithStatus(types.RowStatusCompleted),
    rowWithStatus(types.RowStatusFailed),
    rowWithStatus(types.RowStatusRendering),
    rowWithStatus(types.RowStatusQueued),
  }

  p := computeBatchProgress(rows)
  if p.Total != 5 {
    t.Fatalf("total = %d, want 5", p.Total)
  }
  if p.Completed != 2 || p.Failed != 1 || p.InProgress != 1 || p.Queued != 1 {
    t.Fatalf("counts = completed:%d failed:%d inProgress:%d queued:%d", p.Completed, p.Failed, p.InProgress, p.Queued)
  }
  if math.Abs(p.OverallProgress-0.6) > 1e-9 {
    t.Fatalf("overall progress = %v, want 0.6", p.OverallProgress)
  }
}

func TestComputeBatchProgressMonotonic(t *testing.T) {
  rows := []*types.MatrixRow{
    rowWithStatus(types.RowStatusQueued),
    rowWithStatus(types.RowStatusQueued),
    rowWithStatus(types.RowStatusQueued),
    rowWithStatus(types.RowStatusQueued),
  }

  prev := computeBatchProgress(rows).OverallProgress
  terminal := []string{types.RowStatusCompleted, types.RowStatusFailed, types.RowStatusCompleted, types.RowStatusFailed}
  for i, status := range terminal {
    rows[i].Status = status
    cur := computeBatchProgress(rows).OverallProgress
    if cur < prev {
      t.Fatalf("progress decreased: %v -> %v after %d terminal rows", prev, cur, i+1)
    }
    prev = cur
  }
  if prev != 1.0 {
    t.Fatalf("final progress = %v, want 1.0", prev)
  }
}

func TestComputeBatchProgressNoETAWithoutSamples(t *testing.T) {
  rows := []*types.MatrixRow{
    rowWithStatus(types.RowStatusQueued),
    rowWithStatus(types.RowStatusRendering),
  }
  p := computeBatchProgress(rows)
  if p.EstimatedSecondsRemaining != nil {
    t.Fatalf("eta = %v, want absent when no duration samples exist", *p.EstimatedSecondsRemaining)
  }
}

func TestComputeBatchProgressETA(t *testing.T) {
  start := time.Now().Add(-40 * time.Second)
  end := start.Add(20 * time.Second)
  done := rowWithStatus(types.RowStatusCompleted)
  done.RenderStartedAt = &start
  done.RenderCompletedAt = &end

  rows := []*types.MatrixRow{
    done,
    rowWithStatus(types.RowStatusQueued),
    rowWithStatus(types.RowStatusRendering),
  }
  p := computeBatchProgress(rows)
  if p.EstimatedSecondsRemaining == nil {
    t.Fatal("eta should be present with one duration sample and pending work")
  }
  // one 20s sample, two rows outstanding
  if math.Abs(*p.EstimatedSecondsRemaining-40.0) > 1e-6 {
    t.Fatalf("eta = %v, want 40", *p.EstimatedSecondsRemaining)
  }
}

func TestComputeBatchProgressEmpty(t *testing.T) {
  p := computeBatchProgress(nil)
  if p.Total != 0 || p.OverallProgress != 0 {
    t.Fatalf("empty matrix progress = %+v", p)
  }
  if p.EstimatedSecondsRemaining != nil {
    t.Fatal("empty matrix must not report an eta")
  }
}
