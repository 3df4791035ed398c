package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
)

// Demand is one stock requirement: a quantity against either a sized variant
// or the product-level pool when Size is nil.
type Demand struct {
	ProductID uuid.UUID
	Size      *enums.ProductSize
	Quantity  int
}

// ShortageDetail describes why an allocation was refused.
type ShortageDetail struct {
	ProductID uuid.UUID          `json:"product_id"`
	Size      *enums.ProductSize `json:"size,omitempty"`
	Requested int                `json:"requested"`
	Available int                `json:"available"`
}

// Allocator performs guarded stock movements. Decrements are conditional
// UPDATEs so two concurrent orders can never drive stock negative; the loser
// of the race sees zero rows affected and the whole allocation fails.
type Allocator struct {
	db *gorm.DB
}

// NewAllocator builds an allocator on the provided GORM handle.
func NewAllocator(db *gorm.DB) *Allocator {
	return &Allocator{db: db}
}

// WithTx returns an allocator bound to the provided transaction. Allocate
// must run inside the same transaction that persists the order so the
// decrement and the ledger insert commit or roll back together.
func (a *Allocator) WithTx(tx *gorm.DB) *Allocator {
	return &Allocator{db: tx}
}

// Allocate decrements stock for every demand, all or nothing. The first
// shortage aborts with CodeConflict carrying a ShortageDetail; the caller's
// transaction rollback undoes any earlier decrements.
func (a *Allocator) Allocate(ctx context.Context, demands []Demand) error {
	for _, d := range demands {
		if d.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "allocation quantity must be positive")
		}

		var err error
		if d.Size != nil {
			err = a.allocateVariant(ctx, d)
		} else {
			err = a.allocateProduct(ctx, d)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Release returns stock for every demand and backs out the sales counters.
// Increments are unconditional; releasing can never fail a guard.
func (a *Allocator) Release(ctx context.Context, demands []Demand) error {
	for _, d := range demands {
		if d.Quantity <= 0 {
			continue
		}

		if d.Size != nil {
			res := a.db.WithContext(ctx).
				Model(&models.ProductVariant{}).
				Where("product_id = ? AND size = ?", d.ProductID, *d.Size).
				UpdateColumn("stock", gorm.Expr("stock + ?", d.Quantity))
			if res.Error != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: release variant stock")
			}
		}

		res := a.db.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", d.ProductID).
			UpdateColumns(map[string]any{
				"total_stock": gorm.Expr("total_stock + ?", d.Quantity),
				"sales":       gorm.Expr("sales - ?", d.Quantity),
			})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: release product stock")
		}
	}
	return nil
}

func (a *Allocator) allocateVariant(ctx context.Context, d Demand) error {
	res := a.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("product_id = ? AND size = ? AND stock >= ?", d.ProductID, *d.Size, d.Quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", d.Quantity))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: decrement variant stock")
	}
	if res.RowsAffected == 0 {
		return a.variantShortage(ctx, d)
	}

	// Keep the product-level pool and sales counter in sync with the variant.
	res = a.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", d.ProductID).
		UpdateColumns(map[string]any{
			"total_stock": gorm.Expr("total_stock - ?", d.Quantity),
			"sales":       gorm.Expr("sales + ?", d.Quantity),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: sync product stock")
	}
	return nil
}

func (a *Allocator) allocateProduct(ctx context.Context, d Demand) error {
	res := a.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND total_stock >= ?", d.ProductID, d.Quantity).
		UpdateColumns(map[string]any{
			"total_stock": gorm.Expr("total_stock - ?", d.Quantity),
			"sales":       gorm.Expr("sales + ?", d.Quantity),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: decrement product stock")
	}
	if res.RowsAffected == 0 {
		return a.productShortage(ctx, d)
	}
	return nil
}

func (a *Allocator) variantShortage(ctx context.Context, d Demand) error {
	var variant models.ProductVariant
	err := a.db.WithContext(ctx).
		First(&variant, "product_id = ? AND size = ?", d.ProductID, *d.Size).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("size %s is not offered for this product", *d.Size))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variant")
	}

	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
		WithDetails(ShortageDetail{
			ProductID: d.ProductID,
			Size:      d.Size,
			Requested: d.Quantity,
			Available: variant.Stock,
		})
}

func (a *Allocator) productShortage(ctx context.Context, d Demand) error {
	var product models.Product
	err := a.db.WithContext(ctx).First(&product, "id = ?", d.ProductID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}

	return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
		WithDetails(ShortageDetail{
			ProductID: d.ProductID,
			Requested: d.Quantity,
			Available: product.TotalStock,
		})
}
