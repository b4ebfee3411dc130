package database

import (
	"context"
	"fmt"
	"time"

	"grocery-checkout/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesSummary holds the figures the admin dashboard and assistant report.
type SalesSummary struct {
	From         time.Time                    `json:"from"`
	To           time.Time                    `json:"to"`
	TotalRevenue decimal.Decimal              `json:"total_revenue"`
	TotalOrders  int64                        `json:"total_orders"`
	ByStatus     map[models.OrderStatus]int64 `json:"by_status"`
}

// GetSalesSummary totals orders created in [start, end). Cancelled orders
// are counted by status but excluded from revenue and the order count.
func GetSalesSummary(ctx context.Context, db *gorm.DB, start, end time.Time) (*SalesSummary, error) {
	result := &SalesSummary{From: start, To: end, ByStatus: map[models.OrderStatus]int64{}}
	inRange := func() *gorm.DB {
		return db.WithContext(ctx).Model(&models.Order{}).
			Where("created_at >= ? AND created_at < ?", start, end)
	}

	// COALESCE ensures we get 0 instead of NULL if no orders exist
	var revenue decimal.NullDecimal
	err := inRange().
		Where("status <> ?", models.StatusCancelled).
		Select("COALESCE(SUM(total_amount), 0)").
		Row().Scan(&revenue)
	if err != nil {
		return nil, fmt.Errorf("reports: revenue: %w", err)
	}
	result.TotalRevenue = revenue.Decimal

	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	err = inRange().Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reports: status counts: %w", err)
	}
	for _, r := range rows {
		result.ByStatus[r.Status] = r.Count
		if r.Status != models.StatusCancelled {
			result.TotalOrders += r.Count
		}
	}
	return result, nil
}
