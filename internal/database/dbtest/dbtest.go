// Package dbtest opens a migrated in-memory database for tests.
package dbtest

import (
	"testing"

	"grocery-checkout/internal/database"
	"grocery-checkout/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh schema on a single-connection in-memory SQLite.
// One connection keeps the memory database alive and serializes
// transactions the way row locks would on MySQL.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Money parses a decimal literal.
func Money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// SeedFlat inserts a product without variants.
func SeedFlat(t testing.TB, db *gorm.DB, name, unit, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		Name:   name,
		Unit:   unit,
		Price:  Money(price),
		Stock:  stock,
		Images: []string{"https://cdn.example.com/" + name + ".jpg"},
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// SeedVariants inserts a product with the given variants.
func SeedVariants(t testing.TB, db *gorm.DB, name string, variants ...models.Variant) models.Product {
	t.Helper()
	p := models.Product{Name: name, Unit: "kg", Variants: variants}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// VariantStock reads a variant's stock by product and label.
func VariantStock(t testing.TB, db *gorm.DB, productID uint, label string) int {
	t.Helper()
	var v models.Variant
	require.NoError(t, db.Where("product_id = ? AND label = ?", productID, label).Take(&v).Error)
	return v.Stock
}

// ProductStock reads a flat product's stock.
func ProductStock(t testing.TB, db *gorm.DB, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.Take(&p, productID).Error)
	return p.Stock
}
