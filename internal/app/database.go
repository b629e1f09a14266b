package app

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/stockledger/internal/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"

	defaultSQLiteFile = "stockledger.db"
	sqlitePragmas     = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
)

func openGORM(dsn string, debug bool) (*gorm.DB, string, error) {
	backend, sqlitePath, err := resolveBackend(dsn)
	if err != nil {
		return nil, "", err
	}
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	var db *gorm.DB
	switch backend {
	case backendPostgres:
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case backendSQLite:
		db, err = gorm.Open(sqlite.Open(withSQLitePragmas(sqlitePath)), gormConfig)
	default:
		return nil, "", fmt.Errorf("unsupported database scheme %q", backend)
	}
	if err != nil {
		return nil, "", err
	}
	if backend == backendSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, "", err
		}
		// sqlite allows one writer; a single connection keeps transactions serialized.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, backend, nil
}

func resolveBackend(dsn string) (string, string, error) {
	if config.IsPostgresURL(dsn) {
		return backendPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return backendSQLite, sqlitePath, err
	}
	sqlitePath, err := normalizeSQLitePath(dsn)
	return backendSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func withSQLitePragmas(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqlitePragmas
	}
	return path + "?" + sqlitePragmas
}
