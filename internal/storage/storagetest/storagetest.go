// Package storagetest provides an in-memory SQLite storage for tests.
package storagetest

import (
	"fmt"
	"skillsetu/backend/internal/storage"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLite returns a storage service backed by a private in-memory database
// with the schema already in place. Redis is not configured.
func NewSQLite(t *testing.T) *storage.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection serializes writers; SQLite would otherwise report SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, storage.AutoMigrate(db))

	return storage.NewStorageService(db, nil)
}
