package db

import (
  "fmt"
  "strings"

  "gorm.io/driver/postgres"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"

  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/types"
  "github.com/airwave/airwave-backend/internal/utils"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  driver := strings.ToLower(utils.GetEnv("DB_DRIVER", "postgres", log))
  if driver == "sqlite" {
    path := utils.GetEnv("SQLITE_PATH", "airwave.db", log)
    serviceLog.Info("Opening SQLite database", "path", path)
    db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
      DisableForeignKeyConstraintWhenMigrating: true,
    })
    if err != nil {
      return nil, fmt.Errorf("Failed to open SQLite database: %w", err)
    }
    return &PostgresService{db: db, log: serviceLog}, nil
  }

  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "airwave", log)

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  serviceLog.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    serviceLog.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating tables...")
  err := s.db.AutoMigrate(
    &types.User{},
    &types.UserToken{},
    &types.Campaign{},
    &types.Asset{},
    &types.Matrix{},
    &types.MatrixSlot{},
    &types.MatrixRow{},
  )
  if err != nil {
    s.log.Error("Auto migration failed", "error", err)
    return err
  }
  if s.db.Dialector.Name() != "postgres" {
    return nil
  }
  s.log.Info("Configuring foreign key relationships...")
  if err := s.db.Exec(`
    ALTER TABLE "user_token"
    DROP CONSTRAINT IF EXISTS "fk_user_token_user_id";
  `).Error; err != nil {
    return fmt.Errorf("Failed to reset fk_user_token_user_id: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "user_token"
    ADD CONSTRAINT "fk_user_token_user_id"
    FOREIGN KEY ("user_id")
    REFERENCES "user"("id")
    ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_user_token_user_id: %w", err)
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
