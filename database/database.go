package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vibeproof/config"
	"vibeproof/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Partial unique indexes: at most one blocking completion per (user, mission key).
// failed and expired rows never block a retry.
var completionIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_completion_user_instance
		ON mission_completions (user_id, mission_instance_id)
		WHERE mission_instance_id IS NOT NULL AND status NOT IN ('failed', 'expired')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_completion_user_template
		ON mission_completions (user_id, mission_template_id)
		WHERE mission_template_id IS NOT NULL AND status NOT IN ('failed', 'expired')`,
}

// Open connects with the configured driver. Unique violations surface as gorm.ErrDuplicatedKey.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		// Stored times are UTC so SQLite's text comparisons order correctly.
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	switch cfg.Driver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		return db, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to ensure database dir: %w", err)
			}
		}
		dsn := cfg.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates tables, the completion uniqueness indexes and the badge catalog.
// The exactly-one-mission-key CHECK is declared on models.MissionCompletion.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.MissionInstance{},
		&models.MissionCompletion{},
		&models.UserProgress{},
		&models.UserProfile{},
		&models.SocialAccount{},
		&models.BadgeType{},
		&models.UserBadge{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	for _, stmt := range completionIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create completion index: %w", err)
		}
	}

	badges := make([]models.BadgeType, len(models.BadgeTriggers))
	copy(badges, models.BadgeTriggers)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&badges).Error; err != nil {
		return fmt.Errorf("failed to seed badge types: %w", err)
	}
	return nil
}
