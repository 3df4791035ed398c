package payments

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/internal/catalog"
	"github.com/omarvaldez/threadline-backend/internal/inventory"
	"github.com/omarvaldez/threadline-backend/internal/orders"
	"github.com/omarvaldez/threadline-backend/internal/pricing"
	"github.com/omarvaldez/threadline-backend/pkg/config"
	"github.com/omarvaldez/threadline-backend/pkg/db"
	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
	"github.com/omarvaldez/threadline-backend/pkg/logger"
	"github.com/omarvaldez/threadline-backend/pkg/types"
)

type fakeGateway struct {
	intents    map[string]*stripe.PaymentIntent
	createSeq  int
	nextStatus stripe.PaymentIntentStatus
	receiptURL string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		intents:    map[string]*stripe.PaymentIntent{},
		nextStatus: stripe.PaymentIntentStatusRequiresPaymentMethod,
	}
}

func (f *fakeGateway) CreateIntent(_ context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.createSeq++
	intent := &stripe.PaymentIntent{
		ID:           fmt.Sprintf("pi_fake_%d", f.createSeq),
		ClientSecret: fmt.Sprintf("pi_fake_%d_secret", f.createSeq),
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       f.nextStatus,
	}
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *fakeGateway) GetIntent(_ context.Context, id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	intent, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such intent %s", id)
	}
	return intent, nil
}

func (f *fakeGateway) succeed(id string) {
	intent := f.intents[id]
	intent.Status = stripe.PaymentIntentStatusSucceeded
	intent.LatestCharge = &stripe.Charge{ID: "ch_" + id, ReceiptURL: f.receiptURL}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("extract sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = conn.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Order{},
		&models.OrderLineItem{},
	)
	if err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return conn
}

type fixture struct {
	svc       Service
	ledger    orders.Service
	gateway   *fakeGateway
	conn      *gorm.DB
	customer  uuid.UUID
	productID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := openTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})

	policy, err := pricing.PolicyFromConfig(config.PricingConfig{
		TaxRate:                    "0.08",
		FreeShippingThresholdCents: 5000,
		FlatShippingCents:          999,
	})
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}

	ledger, err := orders.NewService(
		orders.NewRepository(conn),
		catalog.NewRepository(conn),
		inventory.NewAllocator(conn),
		db.NewWithConn(conn),
		policy,
		config.OrdersConfig{PendingExpiry: 24 * time.Hour, NumberRetryBudget: 5},
		logg,
	)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}

	gateway := newFakeGateway()
	svc, err := NewService(ledger, gateway, logg)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	product := &models.Product{
		Name:        "Leather Belt",
		Slug:        "leather-belt-" + uuid.NewString(),
		Description: "A belt",
		Category:    enums.ProductCategoryAccessories,
		PriceCents:  2500,
		TotalStock:  10,
		IsActive:    true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	return &fixture{
		svc:       svc,
		ledger:    ledger,
		gateway:   gateway,
		conn:      conn,
		customer:  uuid.New(),
		productID: product.ID,
	}
}

func (f *fixture) placeOrder(t *testing.T, method enums.PaymentMethod) *orders.OrderDTO {
	t.Helper()
	order, err := f.ledger.CreateOrder(context.Background(), orders.CreateOrderInput{
		CustomerID: f.customer,
		Items:      []orders.OrderItemInput{{ProductID: f.productID, Quantity: 2}},
		ShippingAddress: types.Address{
			FirstName: "Dana", LastName: "Whitfield", Street: "44 Mercer St",
			City: "Portland", State: "OR", ZipCode: "97204", Country: "US",
		},
		PaymentMethod: method,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCreateIntentAttachesToOrder(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodStripe)

	dto, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if dto.AmountCents != order.TotalCents {
		t.Fatalf("amount = %d, want order total %d", dto.AmountCents, order.TotalCents)
	}
	if dto.ClientSecret == "" {
		t.Fatal("missing client secret")
	}

	var row models.Order
	if err := f.conn.First(&row, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if row.PaymentIntentID == nil || *row.PaymentIntentID != dto.IntentID {
		t.Fatalf("intent not attached: %+v", row.PaymentIntentID)
	}
}

func TestCreateIntentReusesPendingIntent(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodStripe)

	first, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("first intent: %v", err)
	}
	second, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("second intent: %v", err)
	}
	if first.IntentID != second.IntentID {
		t.Fatalf("expected reuse, got %s then %s", first.IntentID, second.IntentID)
	}
	if f.gateway.createSeq != 1 {
		t.Fatalf("gateway create calls = %d, want 1", f.gateway.createSeq)
	}
}

func TestCreateIntentRejectsCODOrders(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodCOD)

	_, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected CodeValidation, got %v", err)
	}
}

func TestCreateIntentForeignOrderNotFound(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodStripe)

	_, err := f.svc.CreateIntent(context.Background(), uuid.New(), order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestConfirmSettlesOnGatewaySuccess(t *testing.T) {
	f := newFixture(t)
	f.gateway.receiptURL = "https://pay.example.com/r/abc"
	order := f.placeOrder(t, enums.PaymentMethodStripe)

	intent, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	// Not settled yet: gateway still reports requires_payment_method.
	result, err := f.svc.Confirm(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Order != nil {
		t.Fatalf("unsettled confirm must not mutate the ledger, got %+v", result.Order)
	}

	f.gateway.succeed(intent.IntentID)
	result, err = f.svc.Confirm(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("confirm after success: %v", err)
	}
	if result.Status != string(stripe.PaymentIntentStatusSucceeded) {
		t.Fatalf("status = %s", result.Status)
	}
	if result.Order == nil || result.Order.PaymentStatus != "completed" {
		t.Fatalf("ledger not settled: %+v", result.Order)
	}
	if result.Order.Status != "processing" {
		t.Fatalf("fulfillment = %s, want processing", result.Order.Status)
	}
	if result.Order.ReceiptURL == nil || *result.Order.ReceiptURL != "https://pay.example.com/r/abc" {
		t.Fatalf("receipt %+v", result.Order.ReceiptURL)
	}
}

func TestCreateIntentAfterFailureResetsOrder(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodStripe)

	first, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("first intent: %v", err)
	}
	if _, err := f.ledger.MarkPaymentFailed(context.Background(), first.IntentID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	second, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("retry intent: %v", err)
	}
	if second.IntentID == first.IntentID {
		t.Fatal("retry must mint a fresh intent")
	}

	var row models.Order
	if err := f.conn.First(&row, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if row.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment = %s, want pending after retry", row.PaymentStatus)
	}

	// Stock reserved again for the retried order.
	var product models.Product
	if err := f.conn.First(&product, "id = ?", f.productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.TotalStock != 8 {
		t.Fatalf("stock = %d, want 8", product.TotalStock)
	}
}

func TestConfirmCompletedOrderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodStripe)

	intent, err := f.svc.CreateIntent(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	f.gateway.succeed(intent.IntentID)

	if _, err := f.svc.Confirm(context.Background(), f.customer, order.ID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	result, err := f.svc.Confirm(context.Background(), f.customer, order.ID)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if result.Order == nil || result.Order.PaymentStatus != "completed" {
		t.Fatalf("second confirm result %+v", result.Order)
	}
}

func TestMethodsListsAllChannels(t *testing.T) {
	f := newFixture(t)
	methods := f.svc.Methods()
	if len(methods) != 3 {
		t.Fatalf("methods = %d, want 3", len(methods))
	}
	seen := map[string]bool{}
	for _, m := range methods {
		seen[m.ID] = true
	}
	for _, want := range []string{"stripe", "paypal", "cod"} {
		if !seen[want] {
			t.Fatalf("missing method %s", want)
		}
	}
}
