package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/enums"
)

// ProductVariant is one sized stock-keeping unit of a product.
type ProductVariant struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID         `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_variants_product_size" json:"product_id"`
	Size      enums.ProductSize `gorm:"column:size;not null;uniqueIndex:ux_product_variants_product_size" json:"size"`
	Stock     int               `gorm:"column:stock;not null;default:0" json:"stock"`
	SKU       string            `gorm:"column:sku" json:"sku"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (v *ProductVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
