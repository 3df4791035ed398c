package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/enums"
	"github.com/omarvaldez/threadline-backend/pkg/types"
)

// Order is the ledger's root aggregate. It is created exactly once, atomically
// with the inventory decrement for its line items, and is never deleted;
// cancellation and refund are terminal statuses, not deletions.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber string    `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number" json:"order_number"`
	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	SubtotalCents int64 `gorm:"column:subtotal_cents;not null" json:"subtotal_cents"`
	TaxCents      int64 `gorm:"column:tax_cents;not null;default:0" json:"tax_cents"`
	ShippingCents int64 `gorm:"column:shipping_cents;not null;default:0" json:"shipping_cents"`
	TotalCents    int64 `gorm:"column:total_cents;not null" json:"total_cents"`

	Status        enums.FulfillmentStatus `gorm:"column:status;not null;default:'pending'" json:"status"`
	PaymentStatus enums.PaymentStatus     `gorm:"column:payment_status;not null;default:'pending'" json:"payment_status"`

	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json" json:"shipping_address"`
	BillingAddress  types.Address       `gorm:"column:billing_address;type:jsonb;serializer:json" json:"billing_address"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null" json:"payment_method"`

	// Gateway correlation data, nullable until the corresponding step runs.
	PaymentIntentID *string `gorm:"column:payment_intent_id" json:"payment_intent_id,omitempty"`
	TransactionID   *string `gorm:"column:transaction_id" json:"transaction_id,omitempty"`
	ReceiptURL      *string `gorm:"column:receipt_url" json:"receipt_url,omitempty"`

	TrackingNumber *string `gorm:"column:tracking_number" json:"tracking_number,omitempty"`
	Notes          *string `gorm:"column:notes" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
