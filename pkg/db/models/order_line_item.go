package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/enums"
)

// OrderLineItem snapshots one purchased item. Name, price and SKU are captured
// at order time so later catalog edits never rewrite existing orders.
type OrderLineItem struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID      uuid.UUID          `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Name           string             `gorm:"column:name;not null" json:"name"`
	UnitPriceCents int64              `gorm:"column:unit_price_cents;not null" json:"unit_price_cents"`
	Quantity       int                `gorm:"column:quantity;not null" json:"quantity"`
	Size           *enums.ProductSize `gorm:"column:size" json:"size,omitempty"`
	SKU            *string            `gorm:"column:sku" json:"sku,omitempty"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (i *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
