package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/pagination"
)

// ProductDTO is the catalog payload returned to clients.
type ProductDTO struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	PriceCents  int64        `json:"price_cents"`
	TotalStock  int          `json:"total_stock"`
	Brand       *string      `json:"brand,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	IsActive    bool         `json:"is_active"`
	Sales       int          `json:"sales"`
	Variants    []VariantDTO `json:"variants,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// VariantDTO is one sized stock entry on a product payload.
type VariantDTO struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
	SKU   string `json:"sku,omitempty"`
}

// ListResult pairs a page of products with its pagination block.
type ListResult struct {
	Products   []ProductDTO    `json:"products"`
	Pagination pagination.Page `json:"pagination"`
}

// NewProductDTO maps a product row (with preloaded variants) to its payload.
func NewProductDTO(product *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:          product.ID,
		Name:        product.Name,
		Slug:        product.Slug,
		Description: product.Description,
		Category:    product.Category.String(),
		PriceCents:  product.PriceCents,
		TotalStock:  product.TotalStock,
		Brand:       product.Brand,
		Tags:        []string(product.Tags),
		IsActive:    product.IsActive,
		Sales:       product.Sales,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	for _, variant := range product.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{
			Size:  variant.Size.String(),
			Stock: variant.Stock,
			SKU:   variant.SKU,
		})
	}
	return dto
}
