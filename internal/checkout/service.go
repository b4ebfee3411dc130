// Package checkout turns carts into orders and drives every later change to
// an order that touches stock or emits events.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocery-checkout/internal/database"
	"grocery-checkout/internal/events"
	"grocery-checkout/internal/inventory"
	"grocery-checkout/internal/models"
	"grocery-checkout/internal/orders"
	"grocery-checkout/internal/pricing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const publishTimeout = 5 * time.Second

// LineRequest is one requested cart line.
type LineRequest struct {
	ProductID    uint   `json:"product_id" binding:"required"`
	VariantLabel string `json:"variant"`
	Quantity     int    `json:"quantity"`
}

// Request is the checkout payload.
type Request struct {
	Items           []LineRequest          `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	ContactPhone    string                 `json:"contact_phone" binding:"required"`
	PaymentMethod   models.PaymentMethod   `json:"payment_method"`
	ManualPayment   *ManualPaymentRequest  `json:"manual_payment"`
}

// ManualPaymentRequest carries the wallet transfer a customer already made.
type ManualPaymentRequest struct {
	SenderNumber  string `json:"sender_number"`
	TransactionID string `json:"transaction_id"`
}

// Requester is the authenticated caller of an order operation.
type Requester struct {
	UserID uint
	Admin  bool
}

func (r Requester) canSee(o *models.Order) bool {
	return r.Admin || o.UserID == r.UserID
}

type Service struct {
	db        *gorm.DB
	delivery  pricing.DeliveryPolicy
	publisher events.Publisher
	log       zerolog.Logger
}

func NewService(db *gorm.DB, delivery pricing.DeliveryPolicy, publisher events.Publisher, log zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		db:        db,
		delivery:  delivery,
		publisher: publisher,
		log:       log.With().Str("component", "checkout").Logger(),
	}
}

// PlaceOrder prices every line, takes the stock and inserts the order in one
// transaction. Any failing line rolls back the decrements of earlier lines.
func (s *Service) PlaceOrder(ctx context.Context, userID uint, req Request) (*models.Order, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv := inventory.NewStore(tx)

		items := make([]models.OrderItem, 0, len(req.Items))
		subtotal := decimal.Zero
		for _, line := range req.Items {
			item, err := takeLine(ctx, tx, inv, line)
			if err != nil {
				return err
			}
			subtotal = subtotal.Add(item.LineTotal())
			items = append(items, item)
		}

		fee := s.delivery.Fee(subtotal)
		discount := decimal.Zero
		order = &models.Order{
			UserID:          userID,
			Items:           items,
			ShippingAddress: req.ShippingAddress,
			ContactPhone:    req.ContactPhone,
			Subtotal:        subtotal,
			DeliveryFee:     fee,
			Discount:        discount,
			TotalAmount:     subtotal.Add(fee).Sub(discount),
			Status:          models.StatusPending,
			PaymentMethod:   req.PaymentMethod,
			PaymentStatus:   models.PaymentPending,
		}
		if req.ManualPayment != nil {
			order.ManualPayment = models.ManualPayment{
				SenderNumber:  req.ManualPayment.SenderNumber,
				TransactionID: req.ManualPayment.TransactionID,
			}
		}
		return orders.NewStore(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_number", order.OrderNumber).
		Uint("user_id", userID).
		Int("items", len(order.Items)).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("order placed")
	s.publish(ctx, events.OrderCreated, order)
	return order, nil
}

func validateRequest(req *Request) error {
	if len(req.Items) == 0 {
		return ErrEmptyOrder
	}
	for i, line := range req.Items {
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d has quantity %d", ErrInvalidQuantity, i+1, line.Quantity)
		}
	}
	if req.ShippingAddress.Address == "" || req.ShippingAddress.City == "" {
		return ErrInvalidAddress
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentCOD
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	if req.PaymentMethod.IsManual() && (req.ManualPayment == nil || req.ManualPayment.TransactionID == "") {
		return fmt.Errorf("%w: %s requires a transaction id", ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	if !req.PaymentMethod.IsManual() {
		req.ManualPayment = nil
	}
	return nil
}

// takeLine resolves one line against the catalog and decrements its pool.
// Reads go through tx, so a pool already drawn on by an earlier line of the
// same order shows the reduced stock.
func takeLine(ctx context.Context, tx *gorm.DB, inv *inventory.Store, line LineRequest) (models.OrderItem, error) {
	var product models.Product
	err := tx.WithContext(ctx).Preload("Variants").Take(&product, line.ProductID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.OrderItem{}, fmt.Errorf("%w: %d", ErrProductNotFound, line.ProductID)
	}
	if err != nil {
		return models.OrderItem{}, fmt.Errorf("checkout: load product %d: %w", line.ProductID, err)
	}

	res, err := pricing.Resolve(product, line.VariantLabel)
	if err != nil {
		return models.OrderItem{}, err
	}

	if line.Quantity > res.Stock {
		return models.OrderItem{}, &InsufficientStockError{
			Product:   product.Name,
			Label:     res.Label,
			Requested: line.Quantity,
			Available: res.Stock,
		}
	}

	pool := inventory.Pool{ProductID: product.ID, VariantID: res.VariantID}
	if err := inv.Decrement(ctx, pool, line.Quantity); err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			return models.OrderItem{}, shortage(ctx, inv, pool, product.Name, res.Label, line.Quantity)
		}
		return models.OrderItem{}, err
	}

	return models.OrderItem{
		ProductID:    product.ID,
		VariantID:    res.VariantID,
		Name:         product.Name,
		Image:        product.FirstImage(),
		VariantLabel: res.Label,
		Quantity:     line.Quantity,
		Price:        res.Price,
	}, nil
}

// shortage reports a failed decrement with the pool's current quantity.
func shortage(ctx context.Context, inv *inventory.Store, pool inventory.Pool, product, label string, requested int) error {
	available, err := inv.GetStock(ctx, pool)
	if err != nil {
		return fmt.Errorf("checkout: read stock after shortage: %w", err)
	}
	return &InsufficientStockError{
		Product:   product,
		Label:     label,
		Requested: requested,
		Available: available,
	}
}

// GetOrder returns the order if the requester owns it or is an admin.
func (s *Service) GetOrder(ctx context.Context, who Requester, id string) (*models.Order, error) {
	order, err := orders.NewStore(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.canSee(order) {
		return nil, ErrNotAuthorized
	}
	return order, nil
}

// OrderByNumber looks an order up by its display number. Admin use only.
func (s *Service) OrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return orders.NewStore(s.db).GetByNumber(ctx, number)
}

func (s *Service) ListMyOrders(ctx context.Context, userID uint, f orders.Filter) (*orders.Page, error) {
	return orders.NewStore(s.db).ListForUser(ctx, userID, f)
}

func (s *Service) ListAllOrders(ctx context.Context, f orders.Filter) (*orders.Page, error) {
	return orders.NewStore(s.db).ListAll(ctx, f)
}

// SetStatus is the admin status change. Moving an order to Cancelled puts
// its stock back, once. Moving it out of Cancelled takes that stock again and
// fails with an *InsufficientStockError when a pool no longer covers a line.
func (s *Service) SetStatus(ctx context.Context, id string, status models.OrderStatus, note string) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := orders.NewStore(tx)
		current, err := store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		order, err = store.SetStatus(ctx, id, status, note)
		if err != nil {
			return err
		}
		switch {
		case status == models.StatusCancelled:
			return s.restock(ctx, tx, order)
		case current.Status == models.StatusCancelled:
			return s.retake(ctx, tx, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("order_number", order.OrderNumber).Str("status", string(status)).Msg("order status changed")
	if status == models.StatusCancelled {
		s.publish(ctx, events.OrderCancelled, order)
	} else {
		s.publish(ctx, events.OrderStatusChanged, order)
	}
	return order, nil
}

// CancelOrder lets the owner (or an admin) cancel an order that has not
// started processing.
func (s *Service) CancelOrder(ctx context.Context, who Requester, id, note string) (*models.Order, error) {
	if note == "" {
		note = "Cancelled by customer"
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := orders.NewStore(tx)
		current, err := store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !who.canSee(current) {
			return ErrNotAuthorized
		}
		if current.Status != models.StatusPending && current.Status != models.StatusConfirmed {
			return fmt.Errorf("%w: status is %s", ErrNotCancellable, current.Status)
		}

		order, err = store.SetStatus(ctx, id, models.StatusCancelled, note)
		if err != nil {
			return err
		}
		return s.restock(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("order_number", order.OrderNumber).Uint("by", who.UserID).Msg("order cancelled")
	s.publish(ctx, events.OrderCancelled, order)
	return order, nil
}

// restock returns every line's quantity to its pool unless that already
// happened for this order. Pools deleted from the catalog are skipped.
func (s *Service) restock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	first, err := orders.NewStore(tx).MarkStockRestored(ctx, order.ID)
	if err != nil || !first {
		return err
	}

	inv := inventory.NewStore(tx)
	for _, item := range order.Items {
		pool := inventory.Pool{ProductID: item.ProductID, VariantID: item.VariantID}
		err := inv.Increment(ctx, pool, item.Quantity)
		if errors.Is(err, inventory.ErrPoolNotFound) {
			s.log.Warn().Str("order_number", order.OrderNumber).Stringer("pool", pool).Msg("restock skipped, pool no longer exists")
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// retake draws a revived order's lines from stock again after restock gave
// them back. Pools deleted from the catalog are skipped, as in restock.
func (s *Service) retake(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	restored, err := orders.NewStore(tx).ClearStockRestored(ctx, order.ID)
	if err != nil || !restored {
		return err
	}

	inv := inventory.NewStore(tx)
	for _, item := range order.Items {
		pool := inventory.Pool{ProductID: item.ProductID, VariantID: item.VariantID}
		err := inv.Decrement(ctx, pool, item.Quantity)
		switch {
		case err == nil:
		case errors.Is(err, inventory.ErrPoolNotFound):
			s.log.Warn().Str("order_number", order.OrderNumber).Stringer("pool", pool).Msg("retake skipped, pool no longer exists")
		case errors.Is(err, inventory.ErrInsufficientStock):
			return shortage(ctx, inv, pool, item.Name, item.VariantLabel, item.Quantity)
		default:
			return err
		}
	}
	return nil
}

// SetPaymentStatus records a payment outcome reported by an admin or a
// gateway callback.
func (s *Service) SetPaymentStatus(ctx context.Context, id string, status models.PaymentStatus, transactionID string) (*models.Order, error) {
	order, err := orders.NewStore(s.db).SetPaymentStatus(ctx, id, status, transactionID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.OrderPaymentUpdated, order)
	return order, nil
}

// VerifyManualPayment records the admin's check of a wallet transfer.
func (s *Service) VerifyManualPayment(ctx context.Context, adminID uint, id string, verified bool) (*models.Order, error) {
	store := orders.NewStore(s.db)
	current, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.PaymentMethod.IsManual() {
		return nil, fmt.Errorf("%w: %s", ErrNotManualPayment, current.PaymentMethod)
	}

	order, err := store.VerifyManualPayment(ctx, id, adminID, verified)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("order_number", order.OrderNumber).Bool("verified", verified).Uint("admin_id", adminID).Msg("manual payment reviewed")
	s.publish(ctx, events.OrderPaymentUpdated, order)
	return order, nil
}

// SalesSummary reports revenue and order counts for [start, end).
func (s *Service) SalesSummary(ctx context.Context, start, end time.Time) (*database.SalesSummary, error) {
	return database.GetSalesSummary(ctx, s.db, start, end)
}

// publish never fails the caller: the order is already committed.
func (s *Service) publish(ctx context.Context, t events.Type, order *models.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, events.NewOrderEvent(t, order)); err != nil {
		s.log.Error().Err(err).Str("event", string(t)).Str("order_number", order.OrderNumber).Msg("failed to publish order event")
	}
}
