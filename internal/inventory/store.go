// Package inventory owns the stock counters of products and variants.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"grocery-checkout/internal/models"

	"gorm.io/gorm"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPoolNotFound      = errors.New("stock pool not found")
)

// Pool identifies one stock counter: a variant row, or the product row
// itself when VariantID is nil.
type Pool struct {
	ProductID uint
	VariantID *uint
}

func (p Pool) String() string {
	if p.VariantID == nil {
		return fmt.Sprintf("product:%d", p.ProductID)
	}
	return fmt.Sprintf("product:%d/variant:%d", p.ProductID, *p.VariantID)
}

// Store applies stock changes with conditional updates so concurrent
// writers can never take a counter below zero. The db handle may be a
// transaction.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetStock returns the current quantity in pool.
func (s *Store) GetStock(ctx context.Context, pool Pool) (int, error) {
	db := s.db.WithContext(ctx)

	var (
		stock int
		err   error
	)
	if pool.VariantID != nil {
		var v models.Variant
		err = db.Select("id", "stock").
			Where("id = ? AND product_id = ?", *pool.VariantID, pool.ProductID).
			Take(&v).Error
		stock = v.Stock
	} else {
		var p models.Product
		err = db.Select("id", "stock").Where("id = ?", pool.ProductID).Take(&p).Error
		stock = p.Stock
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}
	if err != nil {
		return 0, fmt.Errorf("inventory: read %s: %w", pool, err)
	}
	return stock, nil
}

// Decrement takes amount out of pool in a single "decrement if enough"
// statement. It fails with ErrInsufficientStock and leaves stock untouched
// when the pool holds less than amount.
func (s *Store) Decrement(ctx context.Context, pool Pool, amount int) error {
	if amount < 1 {
		return fmt.Errorf("inventory: invalid decrement amount %d", amount)
	}

	res := s.scoped(ctx, pool).
		Where("stock >= ?", amount).
		UpdateColumn("stock", gorm.Expr("stock - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("inventory: decrement %s: %w", pool, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetStock(ctx, pool); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInsufficientStock, pool)
	}
	return nil
}

// Increment puts amount back into pool (cancellations, restocks).
func (s *Store) Increment(ctx context.Context, pool Pool, amount int) error {
	if amount < 1 {
		return fmt.Errorf("inventory: invalid increment amount %d", amount)
	}

	res := s.scoped(ctx, pool).UpdateColumn("stock", gorm.Expr("stock + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("inventory: increment %s: %w", pool, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}
	return nil
}

// SetStock overwrites the pool's quantity; used by catalog admins.
func (s *Store) SetStock(ctx context.Context, pool Pool, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("inventory: stock must not be negative, got %d", quantity)
	}

	res := s.scoped(ctx, pool).UpdateColumn("stock", quantity)
	if res.Error != nil {
		return fmt.Errorf("inventory: set %s: %w", pool, res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports 0 affected rows when the value is unchanged.
		if _, err := s.GetStock(ctx, pool); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) scoped(ctx context.Context, pool Pool) *gorm.DB {
	db := s.db.WithContext(ctx)
	if pool.VariantID != nil {
		return db.Model(&models.Variant{}).
			Where("id = ? AND product_id = ?", *pool.VariantID, pool.ProductID)
	}
	return db.Model(&models.Product{}).Where("id = ?", pool.ProductID)
}
