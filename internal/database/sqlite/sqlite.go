package sqlite

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"taglens/internal/config"
)

// Open connects to a SQLite database file. The pure-Go driver keeps
// single-node deployments and tests free of cgo.
func Open(cfg *config.SQLiteConfig) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database '%s': %w", cfg.Path, err)
	}
	return db, nil
}

// OpenMemory opens an in-memory SQLite database, used by tests. The
// pool is pinned to one connection; every extra connection would see
// its own empty database.
func OpenMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory SQLite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
