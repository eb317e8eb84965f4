package postgres

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/LavaJover/shvark-market-service/internal/config"
	"github.com/LavaJover/shvark-market-service/internal/infrastructure/postgres/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// OpenDB opens the relational store selected by cfg.Backend ("postgres" or "sqlite").
// With AutoMigrate set the schema is created from the gorm models; otherwise it is
// expected to come from the SQL migrations.
func OpenDB(cfg config.Store) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Backend {
	case "postgres":
		dialector = postgres.Open(cfg.Dsn)
	case "sqlite":
		dsn := cfg.Dsn
		if dsn == "" {
			if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
			dsn = filepath.Join(cfg.Dir, "market.db")
		}
		dialector = sqlite.Open(dsn + sqlitePragmas)
	default:
		return nil, fmt.Errorf("backend %q is not relational", cfg.Backend)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Backend, err)
	}
	if cfg.Backend == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one writer at a time; transactions serialize on this connection
		sqlDB.SetMaxOpenConns(1)
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return db, nil
}
