// Package orders persists orders and their append-only status history.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocery-checkout/internal/database"
	"grocery-checkout/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
)

// Store reads and writes orders. The db handle may be a transaction.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create numbers the order, records the initial history entry and inserts
// the order together with its items.
func (s *Store) Create(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		seq, err := nextSequence(tx, database.OrderSequence)
		if err != nil {
			return err
		}

		if order.ID == "" {
			order.ID = uuid.NewString()
		}
		order.OrderNumber = FormatOrderNumber(now, seq)
		if order.Status == "" {
			order.Status = models.StatusPending
		}
		if order.PaymentStatus == "" {
			order.PaymentStatus = models.PaymentPending
		}
		order.CreatedAt = now
		order.UpdatedAt = now
		order.StatusHistory = append(order.StatusHistory, models.StatusHistoryEntry{
			Status:    order.Status,
			Note:      "Order placed",
			CreatedAt: now,
		})

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("orders: insert %s: %w", order.OrderNumber, err)
		}
		return nil
	})
}

// FormatOrderNumber renders ORD<yymmdd><6-digit sequence>.
func FormatOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD%s%06d", at.Format("060102"), seq)
}

// nextSequence bumps a named counter atomically and returns the new value.
func nextSequence(tx *gorm.DB, name string) (int64, error) {
	bump := func() (int64, error) {
		res := tx.Model(&models.Sequence{}).Where("name = ?", name).
			UpdateColumn("value", gorm.Expr("value + 1"))
		return res.RowsAffected, res.Error
	}

	affected, err := bump()
	if err != nil {
		return 0, fmt.Errorf("orders: bump sequence %s: %w", name, err)
	}
	if affected == 0 {
		seed := models.Sequence{Name: name}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return 0, fmt.Errorf("orders: seed sequence %s: %w", name, err)
		}
		if _, err := bump(); err != nil {
			return 0, fmt.Errorf("orders: bump sequence %s: %w", name, err)
		}
	}

	var seq models.Sequence
	if err := tx.Where("name = ?", name).Take(&seq).Error; err != nil {
		return 0, fmt.Errorf("orders: read sequence %s: %w", name, err)
	}
	return seq.Value, nil
}

// Get loads an order with items and history, oldest history entry first.
func (s *Store) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := withDetails(s.db.WithContext(ctx)).Where("id = ?", id).Take(&order).Error
	return found(&order, err, id)
}

// GetForUpdate is Get under a row lock held until the surrounding
// transaction ends. Use it on a transaction handle when a decision depends on
// the current status.
func (s *Store) GetForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := withDetails(s.db.WithContext(ctx)).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).Take(&order).Error
	return found(&order, err, id)
}

// GetByNumber loads an order by its human-readable number.
func (s *Store) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := withDetails(s.db.WithContext(ctx)).Where("order_number = ?", number).Take(&order).Error
	return found(&order, err, number)
}

// SetStatus overwrites the status and appends exactly one history entry.
// Transitions are not policed: any status may follow any other.
func (s *Store) SetStatus(ctx context.Context, id string, status models.OrderStatus, note string) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, id); err != nil {
			return err
		}
		now := s.now()
		if err := tx.Model(&models.Order{}).Where("id = ?", id).
			Updates(map[string]interface{}{"status": status, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("orders: update status: %w", err)
		}
		entry := models.StatusHistoryEntry{OrderID: id, Status: status, Note: note, CreatedAt: now}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("orders: append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetPaymentStatus overwrites the payment status and, when given, the
// gateway transaction id.
func (s *Store) SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus, transactionID string) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, status)
	}

	updates := map[string]interface{}{"payment_status": status, "updated_at": s.now()}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	if err := s.update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// VerifyManualPayment records an admin's verdict on a wallet transfer.
// A verified transfer marks the order paid.
func (s *Store) VerifyManualPayment(ctx context.Context, id string, adminID uint, verified bool) (*models.Order, error) {
	now := s.now()
	updates := map[string]interface{}{
		"manual_verified":    verified,
		"manual_verified_at": now,
		"manual_verified_by": adminID,
		"updated_at":         now,
	}
	if verified {
		updates["payment_status"] = models.PaymentPaid
	} else {
		updates["payment_status"] = models.PaymentFailed
	}
	if err := s.update(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// MarkStockRestored flips the restock flag once. It reports false when the
// order's stock was already returned.
func (s *Store) MarkStockRestored(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND stock_restored = ?", id, false).
		UpdateColumn("stock_restored", true)
	if res.Error != nil {
		return false, fmt.Errorf("orders: mark restored: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClearStockRestored undoes MarkStockRestored once the order holds its stock
// again. It reports false when the flag was not set.
func (s *Store) ClearStockRestored(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND stock_restored = ?", id, true).
		UpdateColumn("stock_restored", false)
	if res.Error != nil {
		return false, fmt.Errorf("orders: clear restored: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) update(ctx context.Context, id string, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("orders: update %s: %w", id, err)
		}
		return nil
	})
}

// lockOrder takes the row lock and doubles as the existence check.
func lockOrder(tx *gorm.DB, id string) error {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", id).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("orders: lock %s: %w", id, err)
	}
	return nil
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func found(order *models.Order, err error, key string) (*models.Order, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("orders: load %s: %w", key, err)
	}
	return order, nil
}
