package db

import (
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const mysqlScheme = "mysql://"

// Connect opens the content store. DSNs prefixed with mysql:// go to MySQL
// (app:pass@tcp(127.0.0.1:3306)/folio?parseTime=true after the prefix),
// everything else is handed to the pure-Go sqlite driver.
func Connect(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, mysqlScheme) {
		dialector = mysql.Open(strings.TrimPrefix(dsn, mysqlScheme))
	} else {
		dialector = gormsqlite.Open(dsn)
	}

	var gdb *gorm.DB
	var err error
	for i := 0; i < 5; i++ {
		gdb, err = gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return gdb, nil
			}
			err = err2
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// Migrate creates or updates every table the server owns.
func Migrate(gdb *gorm.DB, models ...any) error {
	return gdb.AutoMigrate(models...)
}
