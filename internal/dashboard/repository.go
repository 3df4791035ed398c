package dashboard

import (
	"context"

	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
)

// Revenue counts toward orders the shop has committed to fulfill.
var revenueStatuses = []enums.FulfillmentStatus{
	enums.FulfillmentStatusProcessing,
	enums.FulfillmentStatusShipped,
	enums.FulfillmentStatusDelivered,
}

// Repository runs the aggregate queries behind the staff dashboard.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CountActiveProducts returns the number of live catalog listings.
func (r *Repository) CountActiveProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ?", true).
		Count(&count).
		Error
	return count, err
}

// CountOrders returns the all-time order count.
func (r *Repository) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Count(&count).
		Error
	return count, err
}

// CountCustomers returns the number of customer accounts.
func (r *Repository) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", enums.UserRoleCustomer).
		Count(&count).
		Error
	return count, err
}

// SumRevenueCents totals order amounts across the revenue-bearing statuses.
func (r *Repository) SumRevenueCents(ctx context.Context) (int64, error) {
	var revenue int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status IN ?", revenueStatuses).
		Select("COALESCE(SUM(total_cents), 0)").
		Scan(&revenue).
		Error
	return revenue, err
}

// RecentOrders returns the newest orders with their line items.
func (r *Repository) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}

// LowStockProducts returns active listings running out of stock, counting a
// sized product as low when any single size is low.
func (r *Repository) LowStockProducts(ctx context.Context, threshold, limit int) ([]models.Product, error) {
	lowVariants := r.db.
		Model(&models.ProductVariant{}).
		Select("product_id").
		Where("stock <= ?", threshold)

	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("is_active = ?", true).
		Where("total_stock <= ? OR id IN (?)", threshold, lowVariants).
		Order("total_stock ASC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}
