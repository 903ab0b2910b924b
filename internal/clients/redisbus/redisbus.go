package redisbus

import (
  "context"
  "encoding/json"

  "github.com/google/uuid"
  "github.com/redis/go-redis/v9"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/sse"
)

const eventChannel = "airwave:sse"

type envelope struct {
  Origin  string         `json:"origin"`
  Message sse.SSEMessage `json:"message"`
}

// Bus fans SSE messages out across instances through Redis pub/sub.
// When no Redis client is configured it degrades to local-only broadcast.
type Bus struct {
  client *redis.Client
  hub    *sse.SSEHub
  log    *logger.Logger
  origin string
}

func NewBus(client *redis.Client, hub *sse.SSEHub, log *logger.Logger) *Bus {
  return &Bus{
    client: client,
    hub:    hub,
    log:    log.With("component", "RedisBus"),
    origin: uuid.NewString(),
  }
}

// Publish delivers msg to local subscribers and, when Redis is configured,
// to every other instance listening on the shared channel.
func (b *Bus) Publish(ctx context.Context, msg sse.SSEMessage) {
  b.hub.Broadcast(msg)
  if b.client == nil {
    return
  }
  payload, err := json.Marshal(envelope{Origin: b.origin, Message: msg})
  if err != nil {
    b.log.Warn("Failed to marshal SSE envelope", "error", err)
    return
  }
  if err := b.client.Publish(ctx, eventChannel, payload).Err(); err != nil {
    b.log.Warn("Failed to publish SSE message to redis", "error", err)
  }
}

// StartForwarder subscribes to the shared channel and forwards messages
// originating on other instances into the local hub. Runs until ctx is done.
func (b *Bus) StartForwarder(ctx context.Context) {
  if b.client == nil {
    return
  }
  sub := b.client.Subscribe(ctx, eventChannel)
  go func() {
    defer sub.Close()
    ch := sub.Channel()
    for {
      select {
      case <-ctx.Done():
        return
      case m, ok := <-ch:
        if !ok {
          return
        }
        var env envelope
        if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
          b.log.Warn("Failed to unmarshal SSE envelope", "error", err)
          continue
        }
        if env.Origin == b.origin {
          continue
        }
        b.hub.Broadcast(env.Message)
      }
    }
  }()
  b.log.Info("Redis SSE forwarder started")
}
