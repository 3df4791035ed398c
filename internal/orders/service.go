package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/internal/inventory"
	"github.com/omarvaldez/threadline-backend/internal/pricing"
	"github.com/omarvaldez/threadline-backend/pkg/config"
	"github.com/omarvaldez/threadline-backend/pkg/db"
	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
	"github.com/omarvaldez/threadline-backend/pkg/logger"
	"github.com/omarvaldez/threadline-backend/pkg/pagination"
)

// Service exposes the order ledger: creation, reads, staff fulfillment
// updates, payment reconciliation writes, and the unpaid-order expiry sweep.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	GetOrderForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*OrderDTO, error)
	ListForCustomer(ctx context.Context, input ListInput) (*ListResult, error)
	ListAdmin(ctx context.Context, input AdminListInput) (*ListResult, error)
	UpdateFulfillment(ctx context.Context, orderID uuid.UUID, to enums.FulfillmentStatus, trackingNumber *string) (*OrderDTO, error)

	OrderForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	ResetForRetry(ctx context.Context, orderID uuid.UUID, intentID string) error
	MarkPaymentSucceeded(ctx context.Context, intentID, transactionID string, receiptURL *string) (*OrderDTO, error)
	MarkPaymentFailed(ctx context.Context, intentID string) (*OrderDTO, error)

	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo      *Repository
	products  productLoader
	allocator *inventory.Allocator
	dbClient  *db.Client
	policy    pricing.Policy
	ordersCfg config.OrdersConfig
	logg      *logger.Logger
}

// NewService constructs an order service instance.
func NewService(
	repo *Repository,
	products productLoader,
	allocator *inventory.Allocator,
	dbClient *db.Client,
	policy pricing.Policy,
	ordersCfg config.OrdersConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if allocator == nil {
		return nil, fmt.Errorf("inventory allocator required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ordersCfg.NumberRetryBudget <= 0 {
		ordersCfg.NumberRetryBudget = 5
	}
	return &service{
		repo:      repo,
		products:  products,
		allocator: allocator,
		dbClient:  dbClient,
		policy:    policy,
		ordersCfg: ordersCfg,
		logg:      logg,
	}, nil
}

// CreateOrder snapshots prices, computes totals, and commits the inventory
// decrement and the ledger insert in one transaction. A shortage on any line
// rolls back the whole order.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}
	if input.ShippingAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if input.BillingAddress.IsZero() {
		input.BillingAddress = input.ShippingAddress
	}

	lineItems, demands, priceLines, err := s.buildLines(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	totals := s.policy.Compute(priceLines)

	order := &models.Order{
		CustomerID:      input.CustomerID,
		Items:           lineItems,
		SubtotalCents:   totals.SubtotalCents,
		TaxCents:        totals.TaxCents,
		ShippingCents:   totals.ShippingCents,
		TotalCents:      totals.TotalCents,
		Status:          enums.FulfillmentStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		PaymentMethod:   input.PaymentMethod,
		Notes:           input.Notes,
	}

	// Each attempt runs in its own transaction. A duplicate order number
	// aborts the transaction, which also rolls the stock decrement back, so
	// the retry starts from a clean slate with a fresh candidate number.
	for attempt := 0; ; attempt++ {
		order.OrderNumber = NewOrderNumber(time.Now().UTC())
		err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.allocator.WithTx(tx).Allocate(ctx, demands); err != nil {
				return err
			}
			if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			return nil
		})
		if err == nil {
			break
		}
		if !db.IsUniqueViolation(err) {
			if pkgerrors.As(err) != nil {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		if attempt+1 >= s.ordersCfg.NumberRetryBudget {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order number retry budget exhausted")
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_cents":  order.TotalCents,
	}), "order created")

	return s.loadDTO(ctx, order.ID)
}

func (s *service) GetOrderForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.OrderForCustomer(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

// OrderForCustomer loads the order and enforces ownership. A foreign order
// reads as not-found so order IDs don't leak across customers.
func (s *service) OrderForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForCustomer(ctx context.Context, input ListInput) (*ListResult, error) {
	rows, total, err := s.repo.ListByCustomer(ctx, input.CustomerID, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return buildListResult(rows, input.Pagination, total), nil
}

func (s *service) ListAdmin(ctx context.Context, input AdminListInput) (*ListResult, error) {
	rows, total, err := s.repo.ListAdmin(ctx, input.Filters, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return buildListResult(rows, input.Pagination, total), nil
}

// UpdateFulfillment applies a staff status change. Cancelling an order whose
// payment is still pending returns its stock to the pool and parks the
// payment as failed, so a straggling gateway webhook for the old intent hits
// the idempotent failure path instead of releasing the stock a second time.
// A failed payment already had its stock released, so cancelling it only
// flips the fulfillment status.
func (s *service) UpdateFulfillment(ctx context.Context, orderID uuid.UUID, to enums.FulfillmentStatus, trackingNumber *string) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := ValidateFulfillmentTransition(order.Status, to); err != nil {
		return nil, err
	}

	releaseStock := to == enums.FulfillmentStatusCancelled &&
		order.PaymentStatus == enums.PaymentStatusPending

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if releaseStock {
			if err := s.allocator.WithTx(tx).Release(ctx, demandsFromItems(order.Items)); err != nil {
				return err
			}
			order.PaymentStatus = enums.PaymentStatusFailed
		}
		order.Status = to
		if trackingNumber != nil {
			order.TrackingNumber = trackingNumber
		}
		if _, err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.loadDTO(ctx, orderID)
}

// AttachPaymentIntent records the gateway intent id on a payment-pending order.
func (s *service) AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s, expected pending", order.PaymentStatus))
	}
	order.PaymentIntentID = &intentID
	if _, err := s.repo.Save(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
	}
	return nil
}

// ResetForRetry moves a failed payment back to pending under a fresh intent,
// re-reserving the stock that the failure released.
func (s *service) ResetForRetry(ctx context.Context, orderID uuid.UUID, intentID string) error {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus != enums.PaymentStatusFailed {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s, only failed payments can be retried", order.PaymentStatus))
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s and can no longer be paid", order.Status))
	}

	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.allocator.WithTx(tx).Allocate(ctx, demandsFromItems(order.Items)); err != nil {
			return err
		}
		order.PaymentStatus = enums.PaymentStatusPending
		order.PaymentIntentID = &intentID
		if _, err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		return nil
	})
}

// MarkPaymentSucceeded settles the order for a gateway intent. Calling it
// again for an already-completed order is a no-op, so webhook redeliveries
// and confirm racing the webhook both converge on the same row.
func (s *service) MarkPaymentSucceeded(ctx context.Context, intentID, transactionID string, receiptURL *string) (*OrderDTO, error) {
	order, err := s.loadByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return NewOrderDTO(order), nil
	}
	if err := ValidatePaymentTransition(order.PaymentStatus, enums.PaymentStatusCompleted); err != nil {
		return nil, err
	}

	order.PaymentStatus = enums.PaymentStatusCompleted
	order.TransactionID = &transactionID
	if receiptURL != nil {
		order.ReceiptURL = receiptURL
	}
	if order.Status == enums.FulfillmentStatusPending {
		order.Status = enums.FulfillmentStatusProcessing
	}

	if _, err := s.repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
	}
	return NewOrderDTO(order), nil
}

// MarkPaymentFailed records a gateway failure and releases the reserved
// stock. Fulfillment stays where it was; the customer can retry with a new
// intent. Idempotent for repeated failure events.
func (s *service) MarkPaymentFailed(ctx context.Context, intentID string) (*OrderDTO, error) {
	order, err := s.loadByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == enums.PaymentStatusFailed {
		return NewOrderDTO(order), nil
	}
	if err := ValidatePaymentTransition(order.PaymentStatus, enums.PaymentStatusFailed); err != nil {
		return nil, err
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.allocator.WithTx(tx).Release(ctx, demandsFromItems(order.Items)); err != nil {
			return err
		}
		order.PaymentStatus = enums.PaymentStatusFailed
		if _, err := s.repo.WithTx(tx).Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update order")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

// ExpirePending cancels unpaid non-COD orders older than the configured
// window and restores their stock. The payment moves to failed alongside the
// cancellation so late gateway events for the stale intent are treated as
// duplicates. Returns the number of orders swept.
func (s *service) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.ordersCfg.PendingExpiry)
	batch := s.ordersCfg.ExpirySweepBatch
	if batch <= 0 {
		batch = 100
	}

	rows, err := s.repo.ListPendingExpired(ctx, cutoff, batch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list expired orders")
	}

	swept := 0
	for i := range rows {
		order := rows[i]
		err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.allocator.WithTx(tx).Release(ctx, demandsFromItems(order.Items)); err != nil {
				return err
			}
			order.Status = enums.FulfillmentStatusCancelled
			order.PaymentStatus = enums.PaymentStatusFailed
			if _, err := s.repo.WithTx(tx).Save(ctx, &order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: cancel expired order")
			}
			return nil
		})
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "order_id", order.ID), "expiring order failed", err)
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *service) buildLines(ctx context.Context, items []OrderItemInput) ([]models.OrderLineItem, []inventory.Demand, []pricing.Line, error) {
	lineItems := make([]models.OrderLineItem, 0, len(items))
	demands := make([]inventory.Demand, 0, len(items))
	priceLines := make([]pricing.Line, 0, len(items))

	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}

		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, nil, pkgerrors.New(pkgerrors.CodeNotFound,
					fmt.Sprintf("product %s not found", item.ProductID))
			}
			return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if !product.IsActive {
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %s is not available", product.Name))
		}

		var sku *string
		if product.Sized() {
			if item.Size == nil {
				return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("product %s requires a size", product.Name))
			}
			variant := product.VariantFor(*item.Size)
			if variant == nil {
				return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("size %s is not offered for %s", *item.Size, product.Name))
			}
			if variant.SKU != "" {
				sku = &variant.SKU
			}
		} else if item.Size != nil {
			return nil, nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %s does not come in sizes", product.Name))
		}

		lineItems = append(lineItems, models.OrderLineItem{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
			Size:           item.Size,
			SKU:            sku,
		})
		demands = append(demands, inventory.Demand{
			ProductID: product.ID,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
		priceLines = append(priceLines, pricing.Line{
			UnitPriceCents: product.PriceCents,
			Quantity:       item.Quantity,
		})
	}
	return lineItems, demands, priceLines, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return order, nil
}

func (s *service) loadByIntent(ctx context.Context, intentID string) (*models.Order, error) {
	order, err := s.repo.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment intent")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order by intent")
	}
	return order, nil
}

func (s *service) loadDTO(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

func buildListResult(rows []models.Order, params pagination.Params, total int64) *ListResult {
	result := &ListResult{
		Orders:     make([]OrderDTO, 0, len(rows)),
		Pagination: pagination.BuildPage(params, total),
	}
	for i := range rows {
		result.Orders = append(result.Orders, *NewOrderDTO(&rows[i]))
	}
	return result
}

func demandsFromItems(items []models.OrderLineItem) []inventory.Demand {
	demands := make([]inventory.Demand, 0, len(items))
	for _, item := range items {
		demands = append(demands, inventory.Demand{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
	}
	return demands
}
