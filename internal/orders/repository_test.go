package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	"github.com/omarvaldez/threadline-backend/pkg/pagination"
)

func seedOrder(t *testing.T, conn *gorm.DB, customerID uuid.UUID, number int, created time.Time, method enums.PaymentMethod, status enums.FulfillmentStatus, payment enums.PaymentStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     fmt.Sprintf("TL-20260829-%04d", number),
		CustomerID:      customerID,
		SubtotalCents:   3500,
		TaxCents:        280,
		ShippingCents:   500,
		TotalCents:      4280,
		Status:          status,
		PaymentStatus:   payment,
		PaymentMethod:   method,
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func TestRepositoryListByCustomerPagination(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	customer := uuid.New()
	stranger := uuid.New()
	now := time.Now().UTC()

	seedOrder(t, conn, customer, 1, now.Add(-2*time.Hour), enums.PaymentMethodStripe, enums.FulfillmentStatusPending, enums.PaymentStatusPending)
	seedOrder(t, conn, customer, 2, now.Add(-time.Hour), enums.PaymentMethodStripe, enums.FulfillmentStatusProcessing, enums.PaymentStatusCompleted)
	seedOrder(t, conn, customer, 3, now, enums.PaymentMethodCOD, enums.FulfillmentStatusPending, enums.PaymentStatusPending)
	seedOrder(t, conn, stranger, 4, now, enums.PaymentMethodStripe, enums.FulfillmentStatusPending, enums.PaymentStatusPending)

	page, total, err := repo.ListByCustomer(context.Background(), customer, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "TL-20260829-0003", page[0].OrderNumber)
	assert.Equal(t, "TL-20260829-0002", page[1].OrderNumber)

	second, total, err := repo.ListByCustomer(context.Background(), customer, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "TL-20260829-0001", second[0].OrderNumber)
}

func TestRepositoryListAdminFilters(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	customer := uuid.New()
	now := time.Now().UTC()

	seedOrder(t, conn, customer, 1, now.Add(-time.Hour), enums.PaymentMethodStripe, enums.FulfillmentStatusProcessing, enums.PaymentStatusCompleted)
	seedOrder(t, conn, customer, 2, now, enums.PaymentMethodStripe, enums.FulfillmentStatusPending, enums.PaymentStatusPending)
	seedOrder(t, conn, uuid.New(), 3, now, enums.PaymentMethodCOD, enums.FulfillmentStatusProcessing, enums.PaymentStatusCompleted)

	filters := AdminListFilters{
		Status:        ptr(enums.FulfillmentStatusProcessing),
		PaymentStatus: ptr(enums.PaymentStatusCompleted),
		CustomerID:    &customer,
	}
	rows, total, err := repo.ListAdmin(context.Background(), filters, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "TL-20260829-0001", rows[0].OrderNumber)

	rows, total, err = repo.ListAdmin(context.Background(), AdminListFilters{}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, int64(3), total)
}

func TestRepositoryListPendingExpired(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	now := time.Now().UTC()
	cutoff := now.Add(-time.Hour)

	stale := seedOrder(t, conn, uuid.New(), 1, now.Add(-2*time.Hour), enums.PaymentMethodStripe, enums.FulfillmentStatusPending, enums.PaymentStatusPending)
	seedOrder(t, conn, uuid.New(), 2, now.Add(-2*time.Hour), enums.PaymentMethodCOD, enums.FulfillmentStatusPending, enums.PaymentStatusPending)
	seedOrder(t, conn, uuid.New(), 3, now.Add(-2*time.Hour), enums.PaymentMethodStripe, enums.FulfillmentStatusProcessing, enums.PaymentStatusCompleted)
	seedOrder(t, conn, uuid.New(), 4, now.Add(-time.Minute), enums.PaymentMethodStripe, enums.FulfillmentStatusPending, enums.PaymentStatusPending)

	rows, err := repo.ListPendingExpired(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestRepositoryFindByPaymentIntentID(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	order := seedOrder(t, conn, uuid.New(), 1, time.Now().UTC(), enums.PaymentMethodStripe, enums.FulfillmentStatusPending, enums.PaymentStatusPending)
	order.PaymentIntentID = ptr("pi_repo_lookup")
	_, err := repo.Save(context.Background(), order)
	require.NoError(t, err)

	found, err := repo.FindByPaymentIntentID(context.Background(), "pi_repo_lookup")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByPaymentIntentID(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func ptr[T any](v T) *T {
	return &v
}
