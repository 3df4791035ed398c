package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	"github.com/omarvaldez/threadline-backend/pkg/pagination"
	"github.com/omarvaldez/threadline-backend/pkg/types"
)

// OrderItemInput is one requested line on order creation.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Size      *enums.ProductSize
}

// CreateOrderInput holds the validated payload to place an order.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	Items           []OrderItemInput
	ShippingAddress types.Address
	BillingAddress  types.Address
	PaymentMethod   enums.PaymentMethod
	Notes           *string
}

// ListInput carries pagination for a customer's own orders.
type ListInput struct {
	CustomerID uuid.UUID
	Pagination pagination.Params
}

// AdminListFilters narrows the staff order listing.
type AdminListFilters struct {
	Status        *enums.FulfillmentStatus
	PaymentStatus *enums.PaymentStatus
	CustomerID    *uuid.UUID
}

// AdminListInput carries filters plus pagination for staff listings.
type AdminListInput struct {
	Filters    AdminListFilters
	Pagination pagination.Params
}

// LineItemDTO is one purchased item on an order payload.
type LineItemDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	Size           *string   `json:"size,omitempty"`
	SKU            *string   `json:"sku,omitempty"`
}

// OrderDTO is the order payload returned to clients.
type OrderDTO struct {
	ID              uuid.UUID     `json:"id"`
	OrderNumber     string        `json:"order_number"`
	CustomerID      uuid.UUID     `json:"customer_id"`
	Items           []LineItemDTO `json:"items"`
	SubtotalCents   int64         `json:"subtotal_cents"`
	TaxCents        int64         `json:"tax_cents"`
	ShippingCents   int64         `json:"shipping_cents"`
	TotalCents      int64         `json:"total_cents"`
	Status          string        `json:"status"`
	PaymentStatus   string        `json:"payment_status"`
	ShippingAddress types.Address `json:"shipping_address"`
	BillingAddress  types.Address `json:"billing_address"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentIntentID *string       `json:"payment_intent_id,omitempty"`
	TransactionID   *string       `json:"transaction_id,omitempty"`
	ReceiptURL      *string       `json:"receipt_url,omitempty"`
	TrackingNumber  *string       `json:"tracking_number,omitempty"`
	Notes           *string       `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ListResult pairs a page of orders with its pagination block.
type ListResult struct {
	Orders     []OrderDTO      `json:"orders"`
	Pagination pagination.Page `json:"pagination"`
}

// NewOrderDTO maps an order row (with preloaded items) to its payload.
func NewOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		SubtotalCents:   order.SubtotalCents,
		TaxCents:        order.TaxCents,
		ShippingCents:   order.ShippingCents,
		TotalCents:      order.TotalCents,
		Status:          order.Status.String(),
		PaymentStatus:   order.PaymentStatus.String(),
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		PaymentMethod:   order.PaymentMethod.String(),
		PaymentIntentID: order.PaymentIntentID,
		TransactionID:   order.TransactionID,
		ReceiptURL:      order.ReceiptURL,
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, item := range order.Items {
		var size *string
		if item.Size != nil {
			s := item.Size.String()
			size = &s
		}
		dto.Items = append(dto.Items, LineItemDTO{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			Size:           size,
			SKU:            item.SKU,
		})
	}
	return dto
}
