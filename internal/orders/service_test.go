package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/internal/catalog"
	"github.com/omarvaldez/threadline-backend/internal/inventory"
	"github.com/omarvaldez/threadline-backend/internal/pricing"
	"github.com/omarvaldez/threadline-backend/pkg/config"
	"github.com/omarvaldez/threadline-backend/pkg/db"
	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
	"github.com/omarvaldez/threadline-backend/pkg/pagination"
	"github.com/omarvaldez/threadline-backend/pkg/types"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := openTestDB(t)

	policy, err := pricing.PolicyFromConfig(config.PricingConfig{
		TaxRate:                    "0.08",
		FreeShippingThresholdCents: 5000,
		FlatShippingCents:          999,
	})
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}

	svc, err := NewService(
		NewRepository(conn),
		catalog.NewRepository(conn),
		inventory.NewAllocator(conn),
		db.NewWithConn(conn),
		policy,
		config.OrdersConfig{
			PendingExpiry:     24 * time.Hour,
			NumberRetryBudget: 5,
			ExpirySweepBatch:  100,
		},
		testLogger(),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func testAddress() types.Address {
	return types.Address{
		FirstName: "Dana",
		LastName:  "Whitfield",
		Street:    "44 Mercer St",
		City:      "Portland",
		State:     "OR",
		ZipCode:   "97204",
		Country:   "US",
	}
}

func mustCreateTee(t *testing.T, conn *gorm.DB, stockM int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        "Classic Logo Tee",
		Slug:        "classic-logo-tee-" + uuid.NewString(),
		Description: "Soft cotton tee",
		Category:    enums.ProductCategoryTShirts,
		PriceCents:  2000,
		TotalStock:  stockM,
		IsActive:    true,
		Variants: []models.ProductVariant{
			{Size: enums.ProductSizeM, Stock: stockM},
		},
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func mustCreateBelt(t *testing.T, conn *gorm.DB, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        "Leather Belt",
		Slug:        "leather-belt-" + uuid.NewString(),
		Description: "A belt",
		Category:    enums.ProductCategoryAccessories,
		PriceCents:  2500,
		TotalStock:  stock,
		IsActive:    true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func mustPlaceOrder(t *testing.T, svc Service, conn *gorm.DB, customerID uuid.UUID, product *models.Product, qty int, size *enums.ProductSize) *OrderDTO {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:      customerID,
		Items:           []OrderItemInput{{ProductID: product.ID, Quantity: qty, Size: size}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodStripe,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func sizeM() *enums.ProductSize {
	s := enums.ProductSizeM
	return &s
}

func TestCreateOrderComputesTotals(t *testing.T) {
	svc, conn := newTestService(t)
	product := mustCreateTee(t, conn, 10)
	customerID := uuid.New()

	order := mustPlaceOrder(t, svc, conn, customerID, product, 2, sizeM())

	// qty 2 x $20.00 size M: subtotal 4000, tax 320, shipping 999, total 5319.
	if order.SubtotalCents != 4000 || order.TaxCents != 320 ||
		order.ShippingCents != 999 || order.TotalCents != 5319 {
		t.Fatalf("totals = %d/%d/%d/%d", order.SubtotalCents, order.TaxCents,
			order.ShippingCents, order.TotalCents)
	}
	if order.Status != "pending" || order.PaymentStatus != "pending" {
		t.Fatalf("fresh order statuses = %s/%s", order.Status, order.PaymentStatus)
	}
	if !strings.HasPrefix(order.OrderNumber, OrderNumberPrefix) || len(order.OrderNumber) != 10 {
		t.Fatalf("order number %q", order.OrderNumber)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPriceCents != 2000 {
		t.Fatalf("line items %+v", order.Items)
	}
	// Billing defaults to shipping when omitted.
	if order.BillingAddress.IsZero() {
		t.Fatal("billing address should default to shipping")
	}

	var variant models.ProductVariant
	if err := conn.First(&variant, "product_id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if variant.Stock != 8 {
		t.Fatalf("variant stock = %d, want 8", variant.Stock)
	}
}

func TestCreateOrdersInSameSecondGetDistinctNumbers(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 50)
	customerID := uuid.New()

	// Burst of orders inside one clock second. Every creation must succeed
	// and each must land on its own number.
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		order := mustPlaceOrder(t, svc, conn, customerID, belt, 1, nil)
		if seen[order.OrderNumber] {
			t.Fatalf("order number %s issued twice", order.OrderNumber)
		}
		seen[order.OrderNumber] = true
	}
}

func TestCreateOrderShortageRollsBackEverything(t *testing.T) {
	svc, conn := newTestService(t)
	tee := mustCreateTee(t, conn, 10)
	belt := mustCreateBelt(t, conn, 1)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []OrderItemInput{
			{ProductID: tee.ID, Quantity: 2, Size: sizeM()},
			{ProductID: belt.ID, Quantity: 5},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodStripe,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CodeConflict, got %v", err)
	}

	var orderCount int64
	if err := conn.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("orders = %d, want 0 after rollback", orderCount)
	}

	var variant models.ProductVariant
	if err := conn.First(&variant, "product_id = ?", tee.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if variant.Stock != 10 {
		t.Fatalf("tee stock = %d, want 10 after rollback", variant.Stock)
	}
}

func TestCreateOrderRequiresSizeForSizedProducts(t *testing.T) {
	svc, conn := newTestService(t)
	tee := mustCreateTee(t, conn, 5)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		Items:           []OrderItemInput{{ProductID: tee.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodStripe,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected CodeValidation, got %v", err)
	}
}

func TestCreateOrderRejectsInactiveProduct(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 5)
	if err := conn.Model(belt).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:      uuid.New(),
		Items:           []OrderItemInput{{ProductID: belt.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodStripe,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected CodeValidation, got %v", err)
	}
}

func TestOrderOwnershipReadsAsNotFound(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 5)
	owner := uuid.New()
	order := mustPlaceOrder(t, svc, conn, owner, belt, 1, nil)

	if _, err := svc.GetOrderForCustomer(context.Background(), owner, order.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	_, err := svc.GetOrderForCustomer(context.Background(), uuid.New(), order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("foreign read should be not found, got %v", err)
	}
}

func TestMarkPaymentSucceededAdvancesFulfillment(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 5)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 1, nil)

	intentID := "pi_" + uuid.NewString()
	if err := svc.AttachPaymentIntent(context.Background(), order.ID, intentID); err != nil {
		t.Fatalf("attach intent: %v", err)
	}

	receipt := "https://pay.example.com/r/123"
	updated, err := svc.MarkPaymentSucceeded(context.Background(), intentID, "ch_123", &receipt)
	if err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if updated.PaymentStatus != "completed" {
		t.Fatalf("payment = %s, want completed", updated.PaymentStatus)
	}
	if updated.Status != "processing" {
		t.Fatalf("fulfillment = %s, want processing after payment", updated.Status)
	}
	if updated.TransactionID == nil || *updated.TransactionID != "ch_123" {
		t.Fatalf("transaction id %+v", updated.TransactionID)
	}

	// Redelivery of the same success is a no-op.
	again, err := svc.MarkPaymentSucceeded(context.Background(), intentID, "ch_other", nil)
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if *again.TransactionID != "ch_123" {
		t.Fatalf("idempotent call rewrote transaction id to %s", *again.TransactionID)
	}
}

func TestMarkPaymentFailedReleasesStock(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 5)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 2, nil)

	intentID := "pi_" + uuid.NewString()
	if err := svc.AttachPaymentIntent(context.Background(), order.ID, intentID); err != nil {
		t.Fatalf("attach intent: %v", err)
	}

	updated, err := svc.MarkPaymentFailed(context.Background(), intentID)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if updated.PaymentStatus != "failed" {
		t.Fatalf("payment = %s, want failed", updated.PaymentStatus)
	}
	if updated.Status != "pending" {
		t.Fatalf("fulfillment = %s, failure must not touch it", updated.Status)
	}

	var product models.Product
	if err := conn.First(&product, "id = ?", belt.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 5 {
		t.Fatalf("stock = %d, want 5 after release", product.TotalStock)
	}

	// Redelivered failure is a no-op and must not double-release.
	if _, err := svc.MarkPaymentFailed(context.Background(), intentID); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if err := conn.First(&product, "id = ?", belt.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 5 {
		t.Fatalf("stock = %d after redelivery, want 5", product.TotalStock)
	}
}

func TestResetForRetryReallocatesStock(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 3)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 2, nil)

	firstIntent := "pi_" + uuid.NewString()
	if err := svc.AttachPaymentIntent(context.Background(), order.ID, firstIntent); err != nil {
		t.Fatalf("attach intent: %v", err)
	}
	if _, err := svc.MarkPaymentFailed(context.Background(), firstIntent); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	secondIntent := "pi_" + uuid.NewString()
	if err := svc.ResetForRetry(context.Background(), order.ID, secondIntent); err != nil {
		t.Fatalf("reset for retry: %v", err)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment = %s, want pending", reloaded.PaymentStatus)
	}
	if reloaded.PaymentIntentID == nil || *reloaded.PaymentIntentID != secondIntent {
		t.Fatalf("intent id %+v, want the fresh one", reloaded.PaymentIntentID)
	}

	var product models.Product
	if err := conn.First(&product, "id = ?", belt.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 1 {
		t.Fatalf("stock = %d, want 1 after re-reservation", product.TotalStock)
	}
}

func TestUpdateFulfillment(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 5)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 1, nil)

	updated, err := svc.UpdateFulfillment(context.Background(), order.ID, enums.FulfillmentStatusProcessing, nil)
	if err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if updated.Status != "processing" {
		t.Fatalf("status = %s", updated.Status)
	}

	tracking := "1Z999AA10123456784"
	updated, err = svc.UpdateFulfillment(context.Background(), order.ID, enums.FulfillmentStatusShipped, &tracking)
	if err != nil {
		t.Fatalf("to shipped: %v", err)
	}
	if updated.TrackingNumber == nil || *updated.TrackingNumber != tracking {
		t.Fatalf("tracking %+v", updated.TrackingNumber)
	}

	// Skipping backwards is refused and nothing changes.
	_, err = svc.UpdateFulfillment(context.Background(), order.ID, enums.FulfillmentStatusPending, nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected CodeStateConflict, got %v", err)
	}
}

func TestCancelUnpaidOrderReleasesStock(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 5)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 3, nil)

	updated, err := svc.UpdateFulfillment(context.Background(), order.ID, enums.FulfillmentStatusCancelled, nil)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != "cancelled" {
		t.Fatalf("status = %s", updated.Status)
	}
	if updated.PaymentStatus != "failed" {
		t.Fatalf("payment = %s, want failed so late gateway events are duplicates", updated.PaymentStatus)
	}

	var product models.Product
	if err := conn.First(&product, "id = ?", belt.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 5 {
		t.Fatalf("stock = %d, want 5 after cancel", product.TotalStock)
	}
}

func TestCancelThenLateFailureEventReleasesStockOnce(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 3)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 2, nil)

	intentID := "pi_" + uuid.NewString()
	if err := svc.AttachPaymentIntent(context.Background(), order.ID, intentID); err != nil {
		t.Fatalf("attach intent: %v", err)
	}
	if _, err := svc.UpdateFulfillment(context.Background(), order.ID, enums.FulfillmentStatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// The failure event for the dead intent arrives after the cancellation.
	// It must be treated as a redelivery, not release the stock again.
	if _, err := svc.MarkPaymentFailed(context.Background(), intentID); err != nil {
		t.Fatalf("late failure event: %v", err)
	}

	var product models.Product
	if err := conn.First(&product, "id = ?", belt.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 3 {
		t.Fatalf("stock = %d, want 3 released exactly once", product.TotalStock)
	}
}

func TestFailureEventThenCancelReleasesStockOnce(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 3)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 2, nil)

	intentID := "pi_" + uuid.NewString()
	if err := svc.AttachPaymentIntent(context.Background(), order.ID, intentID); err != nil {
		t.Fatalf("attach intent: %v", err)
	}
	if _, err := svc.MarkPaymentFailed(context.Background(), intentID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	// Cancelling after the failure already returned the stock must not
	// return it a second time.
	if _, err := svc.UpdateFulfillment(context.Background(), order.ID, enums.FulfillmentStatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var product models.Product
	if err := conn.First(&product, "id = ?", belt.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 3 {
		t.Fatalf("stock = %d, want 3 released exactly once", product.TotalStock)
	}
}

func TestLateSuccessEventAfterCancelIsRefused(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 3)
	order := mustPlaceOrder(t, svc, conn, uuid.New(), belt, 1, nil)

	intentID := "pi_" + uuid.NewString()
	if err := svc.AttachPaymentIntent(context.Background(), order.ID, intentID); err != nil {
		t.Fatalf("attach intent: %v", err)
	}
	if _, err := svc.UpdateFulfillment(context.Background(), order.ID, enums.FulfillmentStatusCancelled, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.MarkPaymentSucceeded(context.Background(), intentID, "ch_late", nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("a cancelled order must refuse to settle, got %v", err)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusFailed ||
		reloaded.Status != enums.FulfillmentStatusCancelled {
		t.Fatalf("order moved to %s/%s, want cancelled/failed",
			reloaded.Status, reloaded.PaymentStatus)
	}
}

func TestExpirePendingSweepsOnlyStaleStripeOrders(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 10)
	customerID := uuid.New()

	stale := mustPlaceOrder(t, svc, conn, customerID, belt, 2, nil)
	fresh := mustPlaceOrder(t, svc, conn, customerID, belt, 1, nil)

	cod, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID:      customerID,
		Items:           []OrderItemInput{{ProductID: belt.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	if err != nil {
		t.Fatalf("create cod order: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	for _, id := range []uuid.UUID{stale.ID, cod.ID} {
		if err := conn.Model(&models.Order{}).Where("id = ?", id).
			Update("created_at", old).Error; err != nil {
			t.Fatalf("backdate order: %v", err)
		}
	}

	swept, err := svc.ExpirePending(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("expire pending: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want only the stale stripe order", swept)
	}

	assertStatus := func(id uuid.UUID, want enums.FulfillmentStatus, wantPayment enums.PaymentStatus) {
		t.Helper()
		var row models.Order
		if err := conn.First(&row, "id = ?", id).Error; err != nil {
			t.Fatalf("reload order: %v", err)
		}
		if row.Status != want {
			t.Fatalf("order %s status = %s, want %s", id, row.Status, want)
		}
		if row.PaymentStatus != wantPayment {
			t.Fatalf("order %s payment = %s, want %s", id, row.PaymentStatus, wantPayment)
		}
	}
	assertStatus(stale.ID, enums.FulfillmentStatusCancelled, enums.PaymentStatusFailed)
	assertStatus(fresh.ID, enums.FulfillmentStatusPending, enums.PaymentStatusPending)
	assertStatus(cod.ID, enums.FulfillmentStatusPending, enums.PaymentStatusPending)

	// Stock for the swept order came back: 10 - (2+1+1) + 2 = 8.
	var product models.Product
	if err := conn.First(&product, "id = ?", belt.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 8 {
		t.Fatalf("stock = %d, want 8", product.TotalStock)
	}
}

func TestListForCustomerPaginates(t *testing.T) {
	svc, conn := newTestService(t)
	belt := mustCreateBelt(t, conn, 100)
	customerID := uuid.New()
	for i := 0; i < 3; i++ {
		mustPlaceOrder(t, svc, conn, customerID, belt, 1, nil)
	}
	mustPlaceOrder(t, svc, conn, uuid.New(), belt, 1, nil)

	result, err := svc.ListForCustomer(context.Background(), ListInput{
		CustomerID: customerID,
		Pagination: pagination.Params{Page: 1, Limit: 2},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("page size = %d, want 2", len(result.Orders))
	}
	if result.Pagination.TotalItems != 3 {
		t.Fatalf("total = %d, want 3 (own orders only)", result.Pagination.TotalItems)
	}
	if result.Pagination.TotalPages != 2 {
		t.Fatalf("pages = %d, want 2", result.Pagination.TotalPages)
	}
}
