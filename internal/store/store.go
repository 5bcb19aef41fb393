// Package store is the SQLite-backed record store: progress rows, the
// course catalog, and change-event publication after every progress
// upsert.
package store

import (
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/abhisek/coursetape/internal/logging"
	"github.com/abhisek/coursetape/internal/notify"
)

// Store holds the gorm handle and provides access to repositories.
type Store struct {
	db  *gorm.DB
	log *logging.Logger
}

// Open connects to the SQLite database at dsn, applies the usual
// pragmas and runs auto-migration.
func Open(dsn string, log *logging.Logger) (*Store, error) {
	gormLog := gormlogger.New(
		stdlog.New(os.Stderr, "", stdlog.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := db.AutoMigrate(
		&LessonProgressRow{},
		&CourseProgressRow{},
		&CourseRow{},
		&ModuleRow{},
		&LessonRow{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db, log: log.With("component", "store")}, nil
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ProgressRepo returns a progress repository that publishes a change
// event on broker after every successful upsert.
func (s *Store) ProgressRepo(broker notify.Broker) *ProgressRepo {
	return &ProgressRepo{db: s.db, broker: broker, log: s.log}
}

// CatalogRepo returns the course catalog repository.
func (s *Store) CatalogRepo() *CatalogRepo {
	return &CatalogRepo{db: s.db}
}

// applyPragmas configures SQLite for single-user local use.
func applyPragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. COURSETAPE_DB environment variable
// 2. $XDG_DATA_HOME/coursetape/coursetape.db
// 3. ~/.local/share/coursetape/coursetape.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("COURSETAPE_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "coursetape", "coursetape.db")
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
