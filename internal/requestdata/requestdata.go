package requestdata

import (
  "context"
  "github.com/google/uuid"
)

type contextKey string

const requestDataKey contextKey = "request_data"

type RequestData struct {
  UserID       uuid.UUID
  TokenString  string
  RefreshToken string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
  return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
  rd, ok := ctx.Value(requestDataKey).(*RequestData)
  if !ok {
    return nil
  }
  return rd
}
