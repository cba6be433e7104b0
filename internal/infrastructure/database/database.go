package database

import (
	"context"
	"strings"

	"solv-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Open opens a GORM DB from DSN. postgres:// URLs (and key=value DSNs) use the
// pgx driver; "sqlite:<path>" or a bare *.db path uses the pure-Go SQLite driver
// with foreign keys switched on so RESTRICT / SET NULL behave like Postgres.
// PreferSimpleProtocol avoids 42P05 ("prepared statement already exists")
// behind connection poolers such as PgBouncer.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if path, ok := sqlitePath(dsn); ok {
		return gorm.Open(sqlite.Open(withForeignKeys(path)), cfg)
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), cfg)
}

func sqlitePath(dsn string) (string, bool) {
	switch {
	case strings.HasPrefix(dsn, sqlitePrefix):
		return strings.TrimPrefix(dsn, sqlitePrefix), true
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return dsn, true
	}
	return "", false
}

func withForeignKeys(path string) string {
	if strings.Contains(path, "foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}

// AutoMigrate creates or updates the organizations, units and users tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Organization{}, &domain.User{}, &domain.Unit{})
}

// Ping checks the underlying connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
