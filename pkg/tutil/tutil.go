package tutil

import (
	"os"
	"strings"
	"testing"

	"github.com/hashicorp/go-uuid"
	"github.com/materials-commons/mcupload/pkg/mcdb"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// IsIntegrationTest is true when MCUPLOAD_TEST=integration. Tests that need
// a running MySQL server only run then.
func IsIntegrationTest() bool {
	testType := os.Getenv("MCUPLOAD_TEST")
	return strings.ToLower(testType) == "integration"
}

// NewSqliteDB returns a migrated in memory database private to the test.
func NewSqliteDB(t *testing.T) *gorm.DB {
	t.Helper()

	name, err := uuid.GenerateUUID()
	require.NoError(t, err)

	db, err := mcdb.OpenSqlite(mcdb.SqliteNamedMemoryDSN(name))
	require.NoErrorf(t, err, "gorm.Open failed: %s", err)

	err = mcdb.RunMigrations(db)
	require.NoErrorf(t, err, "Migration failed with: %s", err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	return db
}
