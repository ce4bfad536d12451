// Package dbconn holds the single connection to the SQLite database that
// stores environments and their credentials.
package dbconn

import (
	"errors"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var (
	mu sync.Mutex
	db *gorm.DB
)

type DBConf struct {
	URL         string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

type DBOpts func(*DBConf)

func NewConf() *DBConf {
	return &DBConf{
		URL:         "file:vcfcreds.db",
		MaxIdle:     4,
		MaxOpen:     4,
		MaxLifetime: 300 * time.Second,
	}
}

func WithURL(url string) DBOpts {
	return func(d *DBConf) {
		d.URL = url
	}
}

func WithMaxIdle(idle int) DBOpts {
	return func(d *DBConf) {
		d.MaxIdle = idle
	}
}

func WithMaxOpen(open int) DBOpts {
	return func(d *DBConf) {
		d.MaxOpen = open
	}
}

func WithMaxLifetime(lifetime time.Duration) DBOpts {
	return func(d *DBConf) {
		d.MaxLifetime = lifetime
	}
}

// GetConn opens the database on first use and returns the same handle
// afterwards. Options are ignored once the connection exists.
func GetConn(options ...DBOpts) (*gorm.DB, error) {
	mu.Lock()
	defer mu.Unlock()

	if db != nil {
		return db, nil
	}

	dbConf := NewConf()
	for _, o := range options {
		o(dbConf)
	}

	conn, err := gorm.Open(sqlite.Open(dbConf.URL), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sdb, err := conn.DB()
	if err != nil {
		return nil, err
	}

	sdb.SetMaxIdleConns(dbConf.MaxIdle)
	sdb.SetMaxOpenConns(dbConf.MaxOpen)
	sdb.SetConnMaxLifetime(dbConf.MaxLifetime)

	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, err
	}

	db = conn
	return db, nil
}

func Migrate(models ...any) error {
	mu.Lock()
	defer mu.Unlock()

	if db == nil {
		return errors.New("db is not defined")
	}
	return db.AutoMigrate(models...)
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if db == nil {
		return nil
	}
	sdb, err := db.DB()
	db = nil
	if err != nil {
		return err
	}
	return sdb.Close()
}
