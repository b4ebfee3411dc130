package database

import (
	"errors"
	"fmt"
	"time"

	"grocery-checkout/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// OrderSequence names the counter behind order numbers.
const OrderSequence = "orders"

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Connect opens MySQL, waiting for the server to come up, and syncs the schema.
func Connect(dsn string, log zerolog.Logger, sqlLog logger.LogLevel) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database: DB_DSN is not configured")
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(sqlLog),
		})
		if err == nil {
			break
		}
		log.Warn().Err(err).Msgf("failed to connect to database, retrying in %s (%d/%d)", connectBackoff, i+1, connectAttempts)
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("database: connect after %d attempts: %w", connectAttempts, err)
	}
	log.Info().Msg("connected to MySQL")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Msg("database schema synced")
	return db, nil
}

// Migrate creates the tables and seeds the order-number sequence row.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Product{},
		&models.Variant{},
		&models.Order{},
		&models.OrderItem{},
		&models.StatusHistoryEntry{},
		&models.Sequence{},
	)
	if err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}

	seed := models.Sequence{Name: OrderSequence}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("database: seed sequence: %w", err)
	}
	return nil
}
