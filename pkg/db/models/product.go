package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/enums"
)

// Product is the canonical catalog listing. Stock lives either on the product
// itself (TotalStock, unsized goods) or on per-size variants; never both.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string                `gorm:"column:name;not null" json:"name"`
	Slug        string                `gorm:"column:slug;uniqueIndex" json:"slug"`
	Description string                `gorm:"column:description;not null" json:"description"`
	Category    enums.ProductCategory `gorm:"column:category;not null" json:"category"`
	PriceCents  int64                 `gorm:"column:price_cents;not null" json:"price_cents"`
	TotalStock  int                   `gorm:"column:total_stock;not null;default:0" json:"total_stock"`
	Brand       *string               `gorm:"column:brand" json:"brand,omitempty"`
	Tags        pq.StringArray        `gorm:"column:tags;type:text[]" json:"tags,omitempty"`
	IsActive    bool                  `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Sales       int                   `gorm:"column:sales;not null;default:0" json:"sales"`
	Variants    []ProductVariant      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Sized reports whether stock is tracked per variant for this listing.
func (p *Product) Sized() bool {
	return len(p.Variants) > 0
}

// VariantFor returns the variant matching the given size, if any.
func (p *Product) VariantFor(size enums.ProductSize) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].Size == size {
			return &p.Variants[i]
		}
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
