package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"grocery-checkout/internal/checkout"
	"grocery-checkout/internal/database/dbtest"
	"grocery-checkout/internal/events"
	"grocery-checkout/internal/inventory"
	"grocery-checkout/internal/models"
	"grocery-checkout/internal/orders"
	"grocery-checkout/internal/pricing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newService(t *testing.T) (*checkout.Service, *gorm.DB, *capturePublisher) {
	t.Helper()
	db := dbtest.Open(t)
	pub := &capturePublisher{}
	return checkout.NewService(db, pricing.DefaultDeliveryPolicy(), pub, zerolog.Nop()), db, pub
}

func rice(t *testing.T, db *gorm.DB) models.Product {
	return dbtest.SeedVariants(t, db, "Miniket Rice",
		models.Variant{Label: "1kg", Price: dbtest.Money("100"), Stock: 10},
		models.Variant{Label: "5kg", Price: dbtest.Money("480"), SalePrice: decimal.NewNullDecimal(dbtest.Money("450")), Stock: 4},
	)
}

func request(lines ...checkout.LineRequest) checkout.Request {
	return checkout.Request{
		Items:           lines,
		ShippingAddress: models.ShippingAddress{Address: "House 12, Road 5", City: "Dhaka", Area: "Dhanmondi", ZipCode: "1205"},
		ContactPhone:    "01700000000",
	}
}

func TestPlaceOrderSingleVariantLine(t *testing.T) {
	svc, db, pub := newService(t)
	p := rice(t, db)

	order, err := svc.PlaceOrder(context.Background(), 7, request(
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 3},
	))
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(dbtest.Money("300")))
	assert.True(t, order.DeliveryFee.Equal(dbtest.Money("50")))
	assert.True(t, order.Discount.IsZero())
	assert.True(t, order.TotalAmount.Equal(dbtest.Money("350")))
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, models.PaymentCOD, order.PaymentMethod)
	assert.Equal(t, uint(7), order.UserID)
	assert.Equal(t, 7, dbtest.VariantStock(t, db, p.ID, "1kg"))
	assert.Equal(t, 4, dbtest.VariantStock(t, db, p.ID, "5kg"))

	require.Len(t, order.Items, 1)
	item := order.Items[0]
	assert.Equal(t, "Miniket Rice", item.Name)
	assert.Equal(t, "1kg", item.VariantLabel)
	assert.NotNil(t, item.VariantID)
	assert.True(t, item.Price.Equal(dbtest.Money("100")))

	require.Len(t, order.StatusHistory, 1)
	assert.Equal(t, models.StatusPending, order.StatusHistory[0].Status)

	require.Equal(t, []events.Type{events.OrderCreated}, pub.types())
	assert.Equal(t, order.OrderNumber, pub.events[0].OrderNumber)
}

func TestPlaceOrderRepeatedPoolOverStockRollsBack(t *testing.T) {
	svc, db, pub := newService(t)
	p := rice(t, db)

	_, err := svc.PlaceOrder(context.Background(), 7, request(
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 4},
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 7},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var short *checkout.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "Miniket Rice", short.Product)
	assert.Equal(t, 7, short.Requested)
	assert.Equal(t, 6, short.Available)

	assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))
	assert.Empty(t, pub.types())

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPlaceOrderFailureLeavesEveryPoolUntouched(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)
	eggs := dbtest.SeedFlat(t, db, "Eggs", "dozen", "150", 2)

	_, err := svc.PlaceOrder(context.Background(), 7, request(
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "5kg", Quantity: 2},
		checkout.LineRequest{ProductID: eggs.ID, Quantity: 1},
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "2kg", Quantity: 1},
	))
	assert.ErrorIs(t, err, pricing.ErrVariantNotFound)

	assert.Equal(t, 4, dbtest.VariantStock(t, db, p.ID, "5kg"))
	assert.Equal(t, 2, dbtest.ProductStock(t, db, eggs.ID))
}

func TestPlaceOrderTotals(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)
	oil := dbtest.SeedFlat(t, db, "Soybean Oil", "litre", "189.99", 20)
	onion := dbtest.SeedFlat(t, db, "Onion", "kg", "0.10", 100)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", onion.ID).
		Update("sale_price", dbtest.Money("0.20")).Error)

	order, err := svc.PlaceOrder(context.Background(), 1, request(
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "5kg", Quantity: 1},
		checkout.LineRequest{ProductID: oil.ID, Quantity: 3},
		checkout.LineRequest{ProductID: onion.ID, Quantity: 3},
	))
	require.NoError(t, err)

	// 450 (sale) + 3 × 189.99 + 3 × 0.20 (sale)
	want := dbtest.Money("1020.57")
	assert.True(t, order.Subtotal.Equal(want), "subtotal %s", order.Subtotal)
	assert.True(t, order.DeliveryFee.IsZero())
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Add(order.DeliveryFee).Sub(order.Discount)))

	sum := decimal.Zero
	for _, item := range order.Items {
		sum = sum.Add(item.LineTotal())
	}
	assert.True(t, sum.Equal(order.Subtotal))

	require.Len(t, order.Items, 3)
	assert.Equal(t, "litre", order.Items[1].VariantLabel)
	assert.Nil(t, order.Items[1].VariantID)
	assert.Equal(t, "https://cdn.example.com/Soybean Oil.jpg", order.Items[1].Image)
	assert.Equal(t, 17, dbtest.ProductStock(t, db, oil.ID))
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)

	tests := []struct {
		name string
		req  checkout.Request
		want error
	}{
		{"empty", request(), checkout.ErrEmptyOrder},
		{"zero quantity", request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg"}), checkout.ErrInvalidQuantity},
		{"unknown product", request(checkout.LineRequest{ProductID: 9999, Quantity: 1}), checkout.ErrProductNotFound},
		{"unknown variant", request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "2kg", Quantity: 1}), pricing.ErrVariantNotFound},
		{"over stock", request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "5kg", Quantity: 5}), inventory.ErrInsufficientStock},
		{
			"unknown payment method",
			func() checkout.Request {
				r := request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1})
				r.PaymentMethod = "Cheque"
				return r
			}(),
			checkout.ErrInvalidPaymentMethod,
		},
		{
			"wallet without transaction id",
			func() checkout.Request {
				r := request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1})
				r.PaymentMethod = models.PaymentBKash
				return r
			}(),
			checkout.ErrInvalidPaymentMethod,
		},
		{
			"missing city",
			func() checkout.Request {
				r := request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1})
				r.ShippingAddress.City = ""
				return r
			}(),
			checkout.ErrInvalidAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(context.Background(), 1, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))
}

// The test database holds a single connection, so the two checkouts below
// run one after the other. TestPlaceOrderStaleReadLosesToConcurrentDecrement
// covers the interleaving where a read goes stale before the decrement.
func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	svc, db, _ := newService(t)
	mango := dbtest.SeedFlat(t, db, "Mango", "piece", "60", 1)

	const buyers = 2
	var (
		wg   sync.WaitGroup
		errs = make([]error, buyers)
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), uint(i+1), request(
				checkout.LineRequest{ProductID: mango.ID, Quantity: 1},
			))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, inventory.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, dbtest.ProductStock(t, db, mango.ID))
}

func TestPlaceOrderStaleReadLosesToConcurrentDecrement(t *testing.T) {
	svc, db, _ := newService(t)
	mango := dbtest.SeedFlat(t, db, "Mango", "piece", "60", 1)

	// Another buyer takes the last unit right after checkout has read the
	// product row. The write shares the checkout transaction, so it is rolled
	// back together with it.
	var taken bool
	require.NoError(t, db.Callback().Query().After("gorm:preload").Register("test:take_last_unit", func(tx *gorm.DB) {
		if taken || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "products" {
			return
		}
		taken = true
		err := tx.Session(&gorm.Session{NewDB: true}).Model(&models.Product{}).
			Where("id = ?", mango.ID).UpdateColumn("stock", gorm.Expr("stock - 1")).Error
		if err != nil {
			tx.AddError(err)
		}
	}))

	_, err := svc.PlaceOrder(context.Background(), 7, request(
		checkout.LineRequest{ProductID: mango.ID, Quantity: 1},
	))
	require.True(t, taken)
	var short *checkout.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 1, short.Requested)
	assert.Equal(t, 0, short.Available)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPlaceOrderShortageReadErrorIsReturned(t *testing.T) {
	svc, db, _ := newService(t)
	mango := dbtest.SeedFlat(t, db, "Mango", "piece", "60", 1)

	// First product read: another buyer takes the unit. Second: the
	// decrement's existence check. Third: the shortage report, which fails.
	var reads int
	require.NoError(t, db.Callback().Query().After("gorm:preload").Register("test:flaky_reads", func(tx *gorm.DB) {
		if tx.Statement.Schema == nil || tx.Statement.Schema.Table != "products" {
			return
		}
		reads++
		switch reads {
		case 1:
			err := tx.Session(&gorm.Session{NewDB: true}).Model(&models.Product{}).
				Where("id = ?", mango.ID).UpdateColumn("stock", 0).Error
			if err != nil {
				tx.AddError(err)
			}
		case 3:
			tx.AddError(errors.New("connection reset"))
		}
	}))

	_, err := svc.PlaceOrder(context.Background(), 7, request(
		checkout.LineRequest{ProductID: mango.ID, Quantity: 1},
	))
	require.Error(t, err)
	assert.Equal(t, 3, reads)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestPlaceOrderManualPayment(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)

	req := request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1})
	req.PaymentMethod = models.PaymentNagad
	req.ManualPayment = &checkout.ManualPaymentRequest{SenderNumber: "01811111111", TransactionID: "NG12345"}

	order, err := svc.PlaceOrder(context.Background(), 3, req)
	require.NoError(t, err)
	assert.Equal(t, "NG12345", order.ManualPayment.TransactionID)
	assert.False(t, order.ManualPayment.Verified)

	verified, err := svc.VerifyManualPayment(context.Background(), 99, order.ID, true)
	require.NoError(t, err)
	assert.True(t, verified.ManualPayment.Verified)
	assert.Equal(t, models.PaymentPaid, verified.PaymentStatus)
	require.NotNil(t, verified.ManualPayment.VerifiedBy)
	assert.Equal(t, uint(99), *verified.ManualPayment.VerifiedBy)
}

func TestVerifyManualPaymentRejectsCOD(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)

	order, err := svc.PlaceOrder(context.Background(), 3, request(
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1},
	))
	require.NoError(t, err)

	_, err = svc.VerifyManualPayment(context.Background(), 99, order.ID, true)
	assert.ErrorIs(t, err, checkout.ErrNotManualPayment)
}

func TestStatusHistoryScenario(t *testing.T) {
	svc, db, pub := newService(t)
	p := rice(t, db)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1}))
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, order.ID, models.StatusConfirmed, "")
	require.NoError(t, err)
	final, err := svc.SetStatus(ctx, order.ID, models.StatusDelivered, "handed to customer")
	require.NoError(t, err)

	assert.Equal(t, models.StatusDelivered, final.Status)
	require.Len(t, final.StatusHistory, 3)
	assert.Equal(t, models.StatusPending, final.StatusHistory[0].Status)
	assert.Equal(t, models.StatusConfirmed, final.StatusHistory[1].Status)
	assert.Equal(t, models.StatusDelivered, final.StatusHistory[2].Status)
	assert.Equal(t, final.Status, final.StatusHistory[len(final.StatusHistory)-1].Status)

	assert.Equal(t, []events.Type{events.OrderCreated, events.OrderStatusChanged, events.OrderStatusChanged}, pub.types())
}

func TestCancelOrderRestoresStock(t *testing.T) {
	svc, db, pub := newService(t)
	p := rice(t, db)
	eggs := dbtest.SeedFlat(t, db, "Eggs", "dozen", "150", 5)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, 7, request(
		checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 3},
		checkout.LineRequest{ProductID: eggs.ID, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 7, dbtest.VariantStock(t, db, p.ID, "1kg"))
	assert.Equal(t, 3, dbtest.ProductStock(t, db, eggs.ID))

	cancelled, err := svc.CancelOrder(ctx, checkout.Requester{UserID: 7}, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Cancelled by customer", cancelled.StatusHistory[len(cancelled.StatusHistory)-1].Note)
	assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))
	assert.Equal(t, 5, dbtest.ProductStock(t, db, eggs.ID))

	_, err = svc.CancelOrder(ctx, checkout.Requester{UserID: 7}, order.ID, "")
	assert.ErrorIs(t, err, checkout.ErrNotCancellable)

	// A later admin Cancelled must not hand the stock back a second time.
	_, err = svc.SetStatus(ctx, order.ID, models.StatusCancelled, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))
	assert.Equal(t, 5, dbtest.ProductStock(t, db, eggs.ID))

	assert.Contains(t, pub.types(), events.OrderCancelled)
}

func TestCancelOrderRules(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1}))
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, checkout.Requester{UserID: 8}, order.ID, "")
	assert.ErrorIs(t, err, checkout.ErrNotAuthorized)

	_, err = svc.CancelOrder(ctx, checkout.Requester{UserID: 7}, "missing", "")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = svc.SetStatus(ctx, order.ID, models.StatusShipped, "")
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, checkout.Requester{UserID: 7}, order.ID, "")
	assert.ErrorIs(t, err, checkout.ErrNotCancellable)
	assert.Equal(t, 9, dbtest.VariantStock(t, db, p.ID, "1kg"))

	admin, err := svc.SetStatus(ctx, order.ID, models.StatusCancelled, "returned by courier")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, admin.Status)
	assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))
}

func TestCancelOrderRacingShipmentKeepsStockConsistent(t *testing.T) {
	for i := 0; i < 5; i++ {
		svc, db, _ := newService(t)
		p := rice(t, db)
		ctx := context.Background()

		order, err := svc.PlaceOrder(ctx, 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 3}))
		require.NoError(t, err)
		_, err = svc.SetStatus(ctx, order.ID, models.StatusConfirmed, "")
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			cancelErr error
			shipErr   error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = svc.CancelOrder(ctx, checkout.Requester{UserID: 7}, order.ID, "")
		}()
		go func() {
			defer wg.Done()
			_, shipErr = svc.SetStatus(ctx, order.ID, models.StatusShipped, "")
		}()
		wg.Wait()
		require.NoError(t, shipErr)

		final, err := svc.GetOrder(ctx, checkout.Requester{UserID: 7}, order.ID)
		require.NoError(t, err)
		// Whatever the interleaving, a live order holds its 3 units and a
		// cancelled one has given them back.
		if final.Status == models.StatusCancelled {
			assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))
		} else {
			assert.Equal(t, models.StatusShipped, final.Status)
			assert.Equal(t, 7, dbtest.VariantStock(t, db, p.ID, "1kg"))
		}
		if cancelErr != nil {
			assert.ErrorIs(t, cancelErr, checkout.ErrNotCancellable)
		}
	}
}

func TestRevivingCancelledOrderTakesStockAgain(t *testing.T) {
	svc, db, pub := newService(t)
	p := rice(t, db)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 3}))
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, order.ID, models.StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))

	revived, err := svc.SetStatus(ctx, order.ID, models.StatusConfirmed, "customer changed their mind")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, revived.Status)
	assert.Equal(t, 7, dbtest.VariantStock(t, db, p.ID, "1kg"))

	_, err = svc.PlaceOrder(ctx, 8, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 10}))
	var short *checkout.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 7, short.Available)

	// The second cancellation gives the units back again.
	_, err = svc.CancelOrder(ctx, checkout.Requester{UserID: 7}, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 10, dbtest.VariantStock(t, db, p.ID, "1kg"))
	assert.Equal(t, events.OrderCancelled, pub.types()[len(pub.types())-1])
}

func TestRevivingCancelledOrderFailsWithoutStock(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 3}))
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, checkout.Requester{UserID: 7}, order.ID, "")
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, 8, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 9}))
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, order.ID, models.StatusPending, "reopen")
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	var short *checkout.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "Miniket Rice", short.Product)
	assert.Equal(t, 3, short.Requested)
	assert.Equal(t, 1, short.Available)

	got, err := svc.GetOrder(ctx, checkout.Requester{UserID: 7}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Len(t, got.StatusHistory, 2)
	assert.Equal(t, 1, dbtest.VariantStock(t, db, p.ID, "1kg"))

	// Still restored, so another Cancelled must not add stock.
	_, err = svc.SetStatus(ctx, order.ID, models.StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, 1, dbtest.VariantStock(t, db, p.ID, "1kg"))
}

func TestGetOrderAuthorization(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1}))
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, checkout.Requester{UserID: 7}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)

	_, err = svc.GetOrder(ctx, checkout.Requester{UserID: 8}, order.ID)
	assert.ErrorIs(t, err, checkout.ErrNotAuthorized)

	_, err = svc.GetOrder(ctx, checkout.Requester{UserID: 8, Admin: true}, order.ID)
	assert.NoError(t, err)

	_, err = svc.GetOrder(ctx, checkout.Requester{UserID: 7}, "nope")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	byNumber, err := svc.OrderByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)
}

func TestPublishFailureDoesNotFailCheckout(t *testing.T) {
	db := dbtest.Open(t)
	pub := &capturePublisher{err: errors.New("broker down")}
	svc := checkout.NewService(db, pricing.DefaultDeliveryPolicy(), pub, zerolog.Nop())
	p := rice(t, db)

	order, err := svc.PlaceOrder(context.Background(), 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1}))
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Len(t, pub.types(), 1)
}

func TestSetPaymentStatus(t *testing.T) {
	svc, db, pub := newService(t)
	p := rice(t, db)
	ctx := context.Background()

	order, err := svc.PlaceOrder(ctx, 7, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1}))
	require.NoError(t, err)

	paid, err := svc.SetPaymentStatus(ctx, order.ID, models.PaymentPaid, "SSL-778")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, "SSL-778", paid.TransactionID)
	assert.Equal(t, events.OrderPaymentUpdated, pub.types()[1])

	_, err = svc.SetPaymentStatus(ctx, order.ID, "Maybe", "")
	assert.ErrorIs(t, err, orders.ErrInvalidPaymentStatus)
}

func TestListOrders(t *testing.T) {
	svc, db, _ := newService(t)
	p := rice(t, db)
	ctx := context.Background()

	for _, user := range []uint{1, 1, 2} {
		_, err := svc.PlaceOrder(ctx, user, request(checkout.LineRequest{ProductID: p.ID, VariantLabel: "1kg", Quantity: 1}))
		require.NoError(t, err)
	}

	mine, err := svc.ListMyOrders(ctx, 1, orders.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)

	all, err := svc.ListAllOrders(ctx, orders.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, 2, all.Pages)
	assert.Len(t, all.Orders, 2)
}
