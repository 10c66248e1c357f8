package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradelens/internal/config"
)

// ErrDisabled is returned by Open when the archive is switched off.
var ErrDisabled = errors.New("database disabled")

type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

func Open(cfg config.DBConfig) (*DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	gdb, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	d := &DB{Gorm: gdb, SQL: sqldb}
	if driverName(cfg) == "postgres" {
		if err := SetTimezone(d, cfg.Timezone); err != nil {
			_ = Close(d)
			return nil, err
		}
	}
	return d, nil
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch driverName(cfg) {
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func driverName(cfg config.DBConfig) string {
	name := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch name {
	case "":
		return "sqlite"
	case "postgresql", "pg":
		return "postgres"
	}
	return name
}

// ensureDir creates the parent directory of a file-backed sqlite DSN.
func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

func Ping(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Ping()
}

func SetTimezone(db *DB, tz string) error {
	if tz == "" {
		return nil
	}
	_, err := db.SQL.Exec("SET TIME ZONE '" + tz + "'")
	return err
}
