package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"server-presence-backend/config"
	"server-presence-backend/internal/model"
)

// Session tables are parameterized by entity kind; both kinds share the
// model.Session schema.
const (
	PlayerSessionsTable = "player_sessions"
	WorldSessionsTable  = "world_sessions"
	PlayerOnlineTable   = "player_online"
	WorldOnlineTable    = "world_online"
)

// Init opens the database and runs migrations. A DSN starting with
// "postgres://" or containing "host=" selects Postgres; anything else is
// treated as a SQLite file path.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.Contains(cfg.DSN, "host=") {
		dialector = postgres.Open(cfg.DSN)
	} else {
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func migrate(db *gorm.DB) error {
	for _, table := range []string{PlayerSessionsTable, WorldSessionsTable} {
		if err := db.Table(table).AutoMigrate(&model.Session{}); err != nil {
			return fmt.Errorf("automigrate %s failed: %w", table, err)
		}
	}
	for _, table := range []string{PlayerOnlineTable, WorldOnlineTable} {
		if err := db.Table(table).AutoMigrate(&model.OnlineSample{}); err != nil {
			return fmt.Errorf("automigrate %s failed: %w", table, err)
		}
	}
	if err := db.AutoMigrate(
		&model.WorldStatus{},
		&model.Player{},
		&model.PushSubscription{},
		&model.Watch{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}
