package orders

import (
	"context"
	"fmt"

	"grocery-checkout/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Filter selects one page of orders, optionally by status.
type Filter struct {
	Page   int
	Limit  int
	Status models.OrderStatus
}

func (f Filter) normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Page is one slice of a newest-first order listing.
type Page struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
	Pages  int            `json:"pages"`
}

// ListForUser pages through the orders owned by userID.
func (s *Store) ListForUser(ctx context.Context, userID uint, f Filter) (*Page, error) {
	return s.list(ctx, f, func(db *gorm.DB) *gorm.DB { return db.Where("user_id = ?", userID) })
}

// ListAll pages through every order.
func (s *Store) ListAll(ctx context.Context, f Filter) (*Page, error) {
	return s.list(ctx, f, func(db *gorm.DB) *gorm.DB { return db })
}

func (s *Store) list(ctx context.Context, f Filter, scope func(*gorm.DB) *gorm.DB) (*Page, error) {
	f = f.normalize()
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}

	base := func() *gorm.DB {
		db := scope(s.db.WithContext(ctx).Model(&models.Order{}))
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("orders: count: %w", err)
	}

	page := &Page{Orders: []models.Order{}, Total: total, Page: f.Page, Limit: f.Limit}
	page.Pages = int((total + int64(f.Limit) - 1) / int64(f.Limit))
	if total == 0 {
		return page, nil
	}

	err := withDetails(base()).
		Order("created_at DESC").Order("order_number DESC").
		Offset((f.Page - 1) * f.Limit).Limit(f.Limit).
		Find(&page.Orders).Error
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	return page, nil
}
