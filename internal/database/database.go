// Package database provides SQLite connection management and schema
// migration for diettube through GORM.
package database

import (
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/models"
)

// DB wraps a GORM database connection.
type DB struct {
	*gorm.DB
}

// New opens the SQLite database at path and configures the connection pool.
// The pure Go driver (github.com/glebarez/sqlite -> modernc.org/sqlite) is
// used to avoid CGO. WAL mode allows the worker to write while the API layer
// serves reads.
func New(path string, cfg config.DatabaseConfig, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}

	// _pragma parameters are applied on every pooled connection.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 newGormLogger(cfg.LogLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	// SQLite in WAL mode allows concurrent readers but a single writer.
	// A small pool keeps read queries flowing during encodes without
	// piling up write lock contention.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	log.Info("database opened", slog.String("path", path))

	return &DB{DB: db}, nil
}

// Migrate creates or updates the schema for all diettube tables.
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(
		&models.Task{},
		&models.TaskLog{},
		&models.ProcessingStats{},
		&models.Setting{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func newGormLogger(level string) gormlogger.Interface {
	var logLevel gormlogger.LogLevel
	switch level {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "info":
		logLevel = gormlogger.Info
	default:
		logLevel = gormlogger.Warn
	}
	return gormlogger.Default.LogMode(logLevel)
}
