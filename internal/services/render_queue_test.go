package services

import (
  "testing"
  "github.com/google/uuid"
)

func TestRenderQueueIdempotentReEnqueue(t *testing.T) {
  q := NewRenderQueue()
  matrixID := uuid.New()
  rowID := uuid.New()

  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: rowID, Priority: 5, TemplateID: "t1"})
  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: rowID, Priority: 1, TemplateID: "t2"})

  if got := q.Len(); got != 1 {
    t.Fatalf("queue length = %d, want 1", got)
  }
  batch := q.DequeueNextBatch(1)
  if len(batch) != 1 {
    t.Fatalf("dequeued %d items, want 1", len(batch))
  }
  if batch[0].Priority != 1 || batch[0].TemplateID != "t2" {
    t.Fatalf("later enqueue should win: got priority=%d template=%q", batch[0].Priority, batch[0].TemplateID)
  }
}

func TestRenderQueueConcurrencyBound(t *testing.T) {
  q := NewRenderQueue()
  matrixID := uuid.New()
  for i := 0; i < 5; i++ {
    q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: uuid.New()})
  }

  // Two slots of three taken: at most one item comes out.
  first := q.DequeueNextBatch(2)
  if len(first) != 2 {
    t.Fatalf("dequeued %d items, want 2", len(first))
  }
  second := q.DequeueNextBatch(3)
  if len(second) != 1 {
    t.Fatalf("dequeued %d items with 2 in flight and budget 3, want 1", len(second))
  }

  // Budget exhausted: nothing comes out.
  third := q.DequeueNextBatch(3)
  if len(third) != 0 {
    t.Fatalf("dequeued %d items with 3 in flight and budget 3, want 0", len(third))
  }

  q.MarkDone(first[0].RowID)
  fourth := q.DequeueNextBatch(3)
  if len(fourth) != 1 {
    t.Fatalf("dequeued %d items after releasing a slot, want 1", len(fourth))
  }
}

func TestRenderQueueOrdering(t *testing.T) {
  q := NewRenderQueue()
  matrixID := uuid.New()
  low := uuid.New()
  highA := uuid.New()
  highB := uuid.New()

  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: highA, Priority: 1})
  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: low, Priority: 9})
  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: highB, Priority: 1})

  batch := q.DequeueNextBatch(3)
  if len(batch) != 3 {
    t.Fatalf("dequeued %d items, want 3", len(batch))
  }
  if batch[0].RowID != highA || batch[1].RowID != highB || batch[2].RowID != low {
    t.Fatalf("wrong order: got %v, %v, %v", batch[0].RowID, batch[1].RowID, batch[2].RowID)
  }
}

func TestRenderQueueCancelQueued(t *testing.T) {
  q := NewRenderQueue()
  matrixID := uuid.New()
  rowID := uuid.New()

  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: rowID})
  if !q.CancelQueued(rowID) {
    t.Fatal("cancel of a pending row should succeed")
  }
  if q.Len() != 0 {
    t.Fatalf("queue length = %d after cancel, want 0", q.Len())
  }
  if q.CancelQueued(rowID) {
    t.Fatal("second cancel should report not pending")
  }
}

func TestRenderQueueCancelDoesNotTouchInFlight(t *testing.T) {
  q := NewRenderQueue()
  matrixID := uuid.New()
  rowID := uuid.New()

  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: rowID})
  if batch := q.DequeueNextBatch(1); len(batch) != 1 {
    t.Fatalf("dequeued %d items, want 1", len(batch))
  }
  if q.CancelQueued(rowID) {
    t.Fatal("cancel must not succeed for a dispatched row")
  }
  if !q.IsInFlight(rowID) {
    t.Fatal("row should still be in flight")
  }
}

func TestRenderQueueEnqueueIgnoredWhileInFlight(t *testing.T) {
  q := NewRenderQueue()
  matrixID := uuid.New()
  rowID := uuid.New()

  q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: rowID})
  if batch := q.DequeueNextBatch(1); len(batch) != 1 {
    t.Fatalf("dequeued %d items, want 1", len(batch))
  }

  if q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: rowID}) {
    t.Fatal("enqueue should be dropped while the row is in flight")
  }
  if q.Len() != 0 {
    t.Fatalf("queue length = %d, want 0", q.Len())
  }

  q.MarkDone(rowID)
  if !q.Enqueue(RenderQueueItem{MatrixID: matrixID, RowID: rowID}) {
    t.Fatal("enqueue should succeed after the slot is released")
  }
}
