package mcdb

import (
	"fmt"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const SqliteInMemoryDSN = "file::memory:?cache=shared"

// SqliteNamedMemoryDSN gives each caller its own in memory database. All
// connections using SqliteInMemoryDSN share one database.
func SqliteNamedMemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// OpenSqlite opens dsn with logging silenced and the pool held to a single
// connection. This gets around table lock issues from multiple threads.
func OpenSqlite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = SqliteInMemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}

	limitSqliteConnections(db)

	return db, nil
}

func limitSqliteConnections(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
}

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&mcmodel.User{}, &mcmodel.ChunkedUpload{})
}
