// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	stdlog "log"
	"os"
	"time"

	"loyalty/internal/config"
	"loyalty/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the database instance opened by InitDB.
var DB *gorm.DB

// ledgerModels lists every table owned by the ledger, in migration order.
var ledgerModels = []interface{}{
	&models.Merchant{},
	&models.Wallet{},
	&models.Hold{},
	&models.Transaction{},
	&models.Receipt{},
	&models.QrNonce{},
	&models.IdempotencyKey{},
	&models.LoyaltyTier{},
	&models.TierAssignment{},
}

// InitDB connects to PostgreSQL, applies the pool settings and migrates the
// ledger schema.
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get database instance")
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	DB = db
	log.Info().Str("host", cfg.Host).Str("database", cfg.Name).Msg("postgres connected, migrations applied")
	return db, nil
}

// OpenSQLite opens a SQLite database, used for local operator runs and tests.
// SQLite serialises writers, so the pool is limited to one connection.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get database instance")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(ledgerModels...); err != nil {
		return errors.Wrap(err, "migrate ledger schema")
	}
	return nil
}

// DropAllTables removes every ledger table.
func DropAllTables(db *gorm.DB) error {
	return errors.Wrap(db.Migrator().DropTable(ledgerModels...), "drop ledger tables")
}

// gormLogger only reports slow queries and real errors; missing rows are an
// expected outcome of most lookups here.
func gormLogger() logger.Interface {
	return logger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
