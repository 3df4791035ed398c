package dashboard

import (
	"context"
	"fmt"

	"github.com/omarvaldez/threadline-backend/internal/catalog"
	"github.com/omarvaldez/threadline-backend/internal/orders"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
)

const (
	recentOrderLimit  = 10
	lowStockThreshold = 5
	lowStockLimit     = 10
)

// Statistics is the headline counter block on the staff dashboard.
type Statistics struct {
	TotalProducts     int64 `json:"total_products"`
	TotalOrders       int64 `json:"total_orders"`
	TotalCustomers    int64 `json:"total_customers"`
	TotalRevenueCents int64 `json:"total_revenue_cents"`
}

// Summary is the full dashboard payload.
type Summary struct {
	Statistics       Statistics           `json:"statistics"`
	RecentOrders     []orders.OrderDTO    `json:"recent_orders"`
	LowStockProducts []catalog.ProductDTO `json:"low_stock_products"`
}

// Service aggregates storefront activity for staff views.
type Service interface {
	Summary(ctx context.Context) (*Summary, error)
}

type service struct {
	repo *Repository
}

// NewService constructs a dashboard service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dashboard repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Summary(ctx context.Context) (*Summary, error) {
	totalProducts, err := s.repo.CountActiveProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count products")
	}
	totalOrders, err := s.repo.CountOrders(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count orders")
	}
	totalCustomers, err := s.repo.CountCustomers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count customers")
	}
	revenue, err := s.repo.SumRevenueCents(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sum revenue")
	}

	recent, err := s.repo.RecentOrders(ctx, recentOrderLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: recent orders")
	}
	lowStock, err := s.repo.LowStockProducts(ctx, lowStockThreshold, lowStockLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: low stock products")
	}

	summary := &Summary{
		Statistics: Statistics{
			TotalProducts:     totalProducts,
			TotalOrders:       totalOrders,
			TotalCustomers:    totalCustomers,
			TotalRevenueCents: revenue,
		},
		RecentOrders:     make([]orders.OrderDTO, 0, len(recent)),
		LowStockProducts: make([]catalog.ProductDTO, 0, len(lowStock)),
	}
	for i := range recent {
		summary.RecentOrders = append(summary.RecentOrders, *orders.NewOrderDTO(&recent[i]))
	}
	for i := range lowStock {
		summary.LowStockProducts = append(summary.LowStockProducts, *catalog.NewProductDTO(&lowStock[i]))
	}
	return summary, nil
}
