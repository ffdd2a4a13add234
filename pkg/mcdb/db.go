package mcdb

import (
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/materials-commons/mcupload/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSqlite = "sqlite"
)

func MakeMySQLDSN(c config.Configer) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.GetKey("DB_USERNAME"),
		c.GetKey("DB_PASSWORD"),
		c.GetKey("DB_HOST"),
		c.GetKeyWithDefault("DB_PORT", "3306"),
		c.GetKey("DB_DATABASE"))
}

func dialectorFromConfig(c config.Configer) (gorm.Dialector, error) {
	switch driver := c.GetKeyWithDefault(config.KeyDBDriver, DriverMySQL); driver {
	case DriverMySQL:
		return mysql.Open(MakeMySQLDSN(c)), nil
	case DriverSqlite:
		return sqlite.Open(c.GetKeyWithDefault(config.KeyDBDSN, SqliteInMemoryDSN)), nil
	default:
		return nil, fmt.Errorf("unknown database driver '%s'", driver)
	}
}

const maxDBRetries = 5

// MustConnectToDB will attempt to connect to the database maxDBRetries times. If it isn't successful
// after that number of retries then it will call log.Fatalf(), which will cause the server to exit.
// Between retry attempts it will sleep for 3 seconds. Migrations are run once connected.
func MustConnectToDB(c config.Configer) *gorm.DB {
	var (
		err error
		db  *gorm.DB
	)

	dialector, err := dialectorFromConfig(c)
	if err != nil {
		log.Fatalf("Bad database configuration: %s", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	retryCount := 1
	for {
		db, err = gorm.Open(dialector, gormConfig)
		switch {
		case err == nil:
			if dialector.Name() == DriverSqlite {
				limitSqliteConnections(db)
			}

			if err := RunMigrations(db); err != nil {
				log.Fatalf("Failed running migrations: %s", err)
			}

			return db
		case retryCount >= maxDBRetries:
			log.Fatalf("Failed to open %s db: %s", dialector.Name(), err)
		default:
			log.Warnf("Failed to open %s db (attempt %d): %s", dialector.Name(), retryCount, err)
			retryCount++
			time.Sleep(3 * time.Second)
		}
	}
}
