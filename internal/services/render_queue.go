package services

import (
  "sort"
  "sync"
  "time"
  "github.com/google/uuid"
)

// RenderQueueItem is ephemeral: it carries only identifiers and enough
// metadata to start a render. Row status in the database stays authoritative.
type RenderQueueItem struct {
  MatrixID   uuid.UUID
  RowID      uuid.UUID
  Priority   int
  TemplateID string
  Attempts   int
  EnqueuedAt time.Time

  seq uint64
}

// RenderQueue is an in-process priority queue of pending renders plus the
// in-flight set for the rows currently dispatched. Items order by ascending
// priority with ties broken by arrival order. Enqueuing a row that is already
// queued replaces the pending entry; enqueuing a row that is in flight is
// ignored, the in-flight set is the authority. All methods are safe for
// concurrent use.
type RenderQueue struct {
  mu       sync.Mutex
  items    []*RenderQueueItem
  pending  map[uuid.UUID]*RenderQueueItem
  inFlight map[uuid.UUID]bool
  nextSeq  uint64
}

func NewRenderQueue() *RenderQueue {
  return &RenderQueue{
    pending:  make(map[uuid.UUID]*RenderQueueItem),
    inFlight: make(map[uuid.UUID]bool),
  }
}

// Enqueue adds item to the queue. Returns false when the row is already in
// flight and the request was dropped. Re-enqueuing a pending row replaces it:
// the later priority and template win, arrival order resets.
func (q *RenderQueue) Enqueue(item RenderQueueItem) bool {
  q.mu.Lock()
  defer q.mu.Unlock()

  if q.inFlight[item.RowID] {
    return false
  }

  if existing, ok := q.pending[item.RowID]; ok {
    q.removeLocked(existing)
  }

  q.nextSeq++
  item.seq = q.nextSeq
  if item.EnqueuedAt.IsZero() {
    item.EnqueuedAt = time.Now()
  }
  stored := item
  q.pending[item.RowID] = &stored
  q.items = append(q.items, &stored)
  sort.SliceStable(q.items, func(i, j int) bool {
    if q.items[i].Priority != q.items[j].Priority {
      return q.items[i].Priority < q.items[j].Priority
    }
    return q.items[i].seq < q.items[j].seq
  })
  return true
}

// DequeueNextBatch removes and returns at most maxConcurrent minus the
// current in-flight count items, marking each as in flight. Returns nil when
// the concurrency budget is exhausted.
func (q *RenderQueue) DequeueNextBatch(maxConcurrent int) []RenderQueueItem {
  q.mu.Lock()
  defer q.mu.Unlock()

  budget := maxConcurrent - len(q.inFlight)
  if budget <= 0 || len(q.items) == 0 {
    return nil
  }
  if budget > len(q.items) {
    budget = len(q.items)
  }

  batch := make([]RenderQueueItem, 0, budget)
  for _, item := range q.items[:budget] {
    delete(q.pending, item.RowID)
    q.inFlight[item.RowID] = true
    batch = append(batch, *item)
  }
  q.items = q.items[budget:]
  return batch
}

// MarkDone releases the concurrency slot for a dispatched row. Callers must
// invoke it on every completion and failure path.
func (q *RenderQueue) MarkDone(rowID uuid.UUID) {
  q.mu.Lock()
  defer q.mu.Unlock()
  delete(q.inFlight, rowID)
}

// CancelQueued removes a pending (not yet dispatched) row. Returns false when
// the row is not pending; in-flight renders cannot be cancelled, the external
// job keeps running.
func (q *RenderQueue) CancelQueued(rowID uuid.UUID) bool {
  q.mu.Lock()
  defer q.mu.Unlock()

  existing, ok := q.pending[rowID]
  if !ok {
    return false
  }
  q.removeLocked(existing)
  delete(q.pending, rowID)
  return true
}

func (q *RenderQueue) IsInFlight(rowID uuid.UUID) bool {
  q.mu.Lock()
  defer q.mu.Unlock()
  return q.inFlight[rowID]
}

func (q *RenderQueue) IsPending(rowID uuid.UUID) bool {
  q.mu.Lock()
  defer q.mu.Unlock()
  _, ok := q.pending[rowID]
  return ok
}

// Len reports the number of pending (not yet dispatched) items.
func (q *RenderQueue) Len() int {
  q.mu.Lock()
  defer q.mu.Unlock()
  return len(q.items)
}

func (q *RenderQueue) InFlightCount() int {
  q.mu.Lock()
  defer q.mu.Unlock()
  return len(q.inFlight)
}

func (q *RenderQueue) removeLocked(target *RenderQueueItem) {
  for i, item := range q.items {
    if item == target {
      q.items = append(q.items[:i], q.items[i+1:]...)
      return
    }
  }
}
