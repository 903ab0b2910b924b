package services

import (
  "context"
  "fmt"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/repos"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/types"
)

type UserService interface {
  GetMe(ctx context.Context) (*types.User, error)
}

type userService struct {
  db       *gorm.DB
  log      *logger.Logger
  userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) UserService {
  serviceLog := log.With("service", "UserService")
  return &userService{
    db:       db,
    log:      serviceLog,
    userRepo: userRepo,
  }
}

func (us *userService) GetMe(ctx context.Context) (*types.User, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    us.log.Warn("Request data not set in context")
    return nil, fmt.Errorf("Request data not set in context")
  }
  if rd.UserID == uuid.Nil {
    us.log.Warn("User id not set in request data")
    return nil, fmt.Errorf("User id not set in request data")
  }
  found, err := us.userRepo.GetByIDs(ctx, nil, []uuid.UUID{rd.UserID})
  if err != nil {
    return nil, fmt.Errorf("Error fetching user: %w", err)
  }
  if len(found) == 0 || found[0] == nil {
    return nil, fmt.Errorf("User does not exist")
  }
  return found[0], nil
}
