//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "quadracalc.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Blob is one named value. The table stays a flat key-value space so the
// same documents round-trip through browser localStorage.
type Blob struct {
	Key       string `gorm:"column:blob_key;primaryKey;type:varchar(128)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("QUADRA_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// One writer keeps sqlite from returning SQLITE_BUSY under the server.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Blob{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) Get(key string) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	var blob Blob
	err := c.DB.Where("blob_key = ?", key).First(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}
	return blob.Value, nil
}

func (c *DBClient) Set(key, value string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if len(value) > MaxBlobBytes {
		return ErrQuotaExceeded
	}

	blob := Blob{Key: key, Value: value, UpdatedAt: time.Now()}
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blob_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func (c *DBClient) Delete(key string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := c.DB.Where("blob_key = ?", key).Delete(&Blob{}).Error; err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (c *DBClient) Keys() ([]string, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var keys []string
	if err := c.DB.Model(&Blob{}).Order("blob_key").Pluck("blob_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}
