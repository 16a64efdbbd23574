package database

import (
	"CareChain/models"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the database connection and configures it.
func InitDB(ctx context.Context, dsn string, development bool, log *zap.Logger) (*gorm.DB, error) {
	// Configure logging level based on environment
	logMode := logger.Silent
	if development {
		logMode = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}

	if err := configureConnectionPool(db); err != nil {
		return nil, err
	}

	if err := testDatabaseConnection(ctx, db); err != nil {
		return nil, err
	}

	log.Info("database initialized")
	return db, nil
}

// configureConnectionPool sets up the connection pool settings for the database.
func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB from GORM")
	}
	sqlDB.SetMaxOpenConns(40)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return nil
}

func testDatabaseConnection(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB from GORM")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "failed to ping database")
	}
	return nil
}

// RunMigrations creates the workflow tables. The users table is owned by the
// identity service and is migrated only for local development.
func RunMigrations(db *gorm.DB, development bool) error {
	if err := db.AutoMigrate(&models.Appointment{}, &models.WorkItem{}); err != nil {
		return errors.Wrap(err, "failed to migrate workflow tables")
	}
	if !development {
		return nil
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return errors.Wrap(err, "failed to migrate users")
	}
	if err := models.SeedDevelopmentUsers(db); err != nil {
		return errors.Wrap(err, "failed to seed users")
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB from GORM")
	}
	return sqlDB.Close()
}
