package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus - where an order is in its delivery lifecycle
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusConfirmed  OrderStatus = "Confirmed"
	StatusProcessing OrderStatus = "Processing"
	StatusPacked     OrderStatus = "Packed"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusProcessing, StatusPacked,
	StatusShipped, StatusDelivered, StatusCancelled,
}

// OrderStatuses returns every status in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func (s OrderStatus) Valid() bool {
	for _, known := range orderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentStatus - settlement state of the order's money
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentMethod - how the customer intends to pay. Gateways are labels only.
type PaymentMethod string

const (
	PaymentCOD        PaymentMethod = "COD"
	PaymentBKash      PaymentMethod = "bKash"
	PaymentNagad      PaymentMethod = "Nagad"
	PaymentRocket     PaymentMethod = "Rocket"
	PaymentSSLCommerz PaymentMethod = "SSLCommerz"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentBKash, PaymentNagad, PaymentRocket, PaymentSSLCommerz:
		return true
	}
	return false
}

// IsManual reports whether the method is a mobile-wallet transfer that an
// admin verifies by hand.
func (m PaymentMethod) IsManual() bool {
	return m == PaymentBKash || m == PaymentNagad || m == PaymentRocket
}

// Product - a catalog entry. Either flat (Price/Stock) or variant-based.
type Product struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	Name      string              `gorm:"size:200;not null" json:"name"`
	Unit      string              `gorm:"size:32" json:"unit"` // "kg", "piece", ...
	Price     decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	SalePrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"sale_price"`
	Stock     int                 `gorm:"not null;default:0" json:"stock"` // ignored when Variants is non-empty
	Images    []string            `gorm:"serializer:json" json:"images"`
	Variants  []Variant           `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Variant - a purchasable pack size of a product with its own stock pool
type Variant struct {
	ID        uint                `gorm:"primaryKey" json:"id"`
	ProductID uint                `gorm:"index;not null" json:"product_id"`
	Label     string              `gorm:"size:64;not null" json:"label"`
	Price     decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	SalePrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"sale_price"`
	Stock     int                 `gorm:"not null;default:0" json:"stock"`
}

func (p *Product) HasVariants() bool { return len(p.Variants) > 0 }

// FirstImage is the image snapshotted onto order lines.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

var (
	ErrMixedStock       = errors.New("product with variants must not carry a flat stock")
	ErrDuplicateVariant = errors.New("duplicate variant label")
	ErrNegativePrice    = errors.New("price must not be negative")
)

func negative(price decimal.Decimal, sale decimal.NullDecimal) bool {
	return price.IsNegative() || (sale.Valid && sale.Decimal.IsNegative())
}

// Validate enforces the flat-or-variants representation.
func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("product name is required")
	}
	if !p.HasVariants() {
		if negative(p.Price, p.SalePrice) {
			return ErrNegativePrice
		}
		if p.Stock < 0 {
			return errors.New("stock must not be negative")
		}
		return nil
	}
	if p.Stock != 0 {
		return ErrMixedStock
	}
	seen := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		if v.Label == "" {
			return errors.New("variant label is required")
		}
		if seen[v.Label] {
			return fmt.Errorf("%w: %q", ErrDuplicateVariant, v.Label)
		}
		seen[v.Label] = true
		if negative(v.Price, v.SalePrice) {
			return fmt.Errorf("variant %q: %w", v.Label, ErrNegativePrice)
		}
		if v.Stock < 0 {
			return fmt.Errorf("variant %q: stock must not be negative", v.Label)
		}
	}
	return nil
}

// ShippingAddress - where the groceries go
type ShippingAddress struct {
	Address string `gorm:"size:255" json:"address"`
	City    string `gorm:"size:100" json:"city"`
	Area    string `gorm:"size:100" json:"area"`
	ZipCode string `gorm:"size:20" json:"zip_code"`
}

// ManualPayment - wallet transfer details submitted at checkout, verified by an admin
type ManualPayment struct {
	SenderNumber  string     `gorm:"size:32" json:"sender_number"`
	TransactionID string     `gorm:"size:64" json:"transaction_id"`
	Verified      bool       `gorm:"not null;default:false" json:"verified"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	VerifiedBy    *uint      `json:"verified_by,omitempty"`
}

// Order - the checkout header. Items and totals never change after creation.
type Order struct {
	ID              string               `gorm:"primaryKey;type:char(36)" json:"id"`
	OrderNumber     string               `gorm:"uniqueIndex;size:32;not null" json:"order_number"`
	UserID          uint                 `gorm:"index;not null" json:"user_id"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	ShippingAddress ShippingAddress      `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	ContactPhone    string               `gorm:"size:32" json:"contact_phone"`
	Subtotal        decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DeliveryFee     decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"delivery_fee"`
	Discount        decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"discount"`
	TotalAmount     decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status          OrderStatus          `gorm:"size:20;index;not null" json:"status"`
	PaymentMethod   PaymentMethod        `gorm:"size:20;not null" json:"payment_method"`
	PaymentStatus   PaymentStatus        `gorm:"size:20;not null" json:"payment_status"`
	TransactionID   string               `gorm:"size:64" json:"transaction_id,omitempty"`
	ManualPayment   ManualPayment        `gorm:"embedded;embeddedPrefix:manual_" json:"manual_payment"`
	StockRestored   bool                 `gorm:"not null;default:false" json:"-"`
	StatusHistory   []StatusHistoryEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history"`
	CreatedAt       time.Time            `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OrderItem - snapshot of a product line at the time of checkout
type OrderItem struct {
	ID           uint            `gorm:"primaryKey" json:"-"`
	OrderID      string          `gorm:"type:char(36);index;not null" json:"-"`
	ProductID    uint            `gorm:"not null" json:"product_id"`
	VariantID    *uint           `json:"variant_id,omitempty"`
	Name         string          `gorm:"size:200;not null" json:"name"`
	Image        string          `gorm:"size:500" json:"image"`
	VariantLabel string          `gorm:"size:64" json:"variant"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"` // unit price at order time
}

// LineTotal is price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StatusHistoryEntry - one row of the append-only status log
type StatusHistoryEntry struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	OrderID   string      `gorm:"type:char(36);index;not null" json:"-"`
	Status    OrderStatus `gorm:"size:20;not null" json:"status"`
	Note      string      `gorm:"size:500" json:"note,omitempty"`
	CreatedAt time.Time   `json:"timestamp"`
}

func (StatusHistoryEntry) TableName() string { return "order_status_history" }

// Sequence - named monotonic counter used for human-readable numbers
type Sequence struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value int64  `gorm:"not null;default:0"`
}
