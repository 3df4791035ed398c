package orders

import (
	"fmt"

	"github.com/omarvaldez/threadline-backend/pkg/enums"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
)

// The ledger is append-only: rows are never deleted, state only moves along
// these tables. Cancellation and refund are statuses, not row removals.

var fulfillmentTransitions = map[enums.FulfillmentStatus][]enums.FulfillmentStatus{
	enums.FulfillmentStatusPending: {
		enums.FulfillmentStatusProcessing,
		enums.FulfillmentStatusCancelled,
		enums.FulfillmentStatusRefunded,
	},
	enums.FulfillmentStatusProcessing: {
		enums.FulfillmentStatusShipped,
		enums.FulfillmentStatusCancelled,
		enums.FulfillmentStatusRefunded,
	},
	enums.FulfillmentStatusShipped: {
		enums.FulfillmentStatusDelivered,
		enums.FulfillmentStatusCancelled,
		enums.FulfillmentStatusRefunded,
	},
	enums.FulfillmentStatusDelivered: {},
	enums.FulfillmentStatusCancelled: {},
	enums.FulfillmentStatusRefunded:  {},
}

var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending: {
		enums.PaymentStatusCompleted,
		enums.PaymentStatusFailed,
	},
	enums.PaymentStatusCompleted: {
		enums.PaymentStatusRefunded,
	},
	// failed returns to pending only through ResetForRetry on a new intent.
	enums.PaymentStatusFailed:   {},
	enums.PaymentStatusRefunded: {},
}

// ValidateFulfillmentTransition checks a fulfillment status move. Unknown
// statuses are validation errors; known but disallowed moves are state
// conflicts. The stored state is never touched on refusal.
func ValidateFulfillmentTransition(from, to enums.FulfillmentStatus) error {
	if !from.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown fulfillment status %q", from))
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown fulfillment status %q", to))
	}
	for _, allowed := range fulfillmentTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move fulfillment from %s to %s", from, to))
}

// ValidatePaymentTransition checks a payment status move.
func ValidatePaymentTransition(from, to enums.PaymentStatus) error {
	if !from.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payment status %q", from))
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payment status %q", to))
	}
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move payment from %s to %s", from, to))
}
