package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/omarvaldez/threadline-backend/internal/orders"
	"github.com/omarvaldez/threadline-backend/pkg/db/models"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
	"github.com/omarvaldez/threadline-backend/pkg/logger"
)

// IntentDTO carries what the client needs to collect a card payment.
type IntentDTO struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// ConfirmResult reports the gateway-verified outcome of a confirmation.
type ConfirmResult struct {
	Status string           `json:"status"`
	Order  *orders.OrderDTO `json:"order,omitempty"`
}

// MethodDTO describes one offered payment channel.
type MethodDTO struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Online bool   `json:"online"`
}

// Service drives the card payment flow against the gateway. The ledger is
// only ever mutated from gateway-verified state, never from client claims.
type Service interface {
	CreateIntent(ctx context.Context, customerID, orderID uuid.UUID) (*IntentDTO, error)
	Confirm(ctx context.Context, customerID, orderID uuid.UUID) (*ConfirmResult, error)
	Methods() []MethodDTO
}

type orderLedger interface {
	OrderForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	ResetForRetry(ctx context.Context, orderID uuid.UUID, intentID string) error
	MarkPaymentSucceeded(ctx context.Context, intentID, transactionID string, receiptURL *string) (*orders.OrderDTO, error)
}

type service struct {
	ledger  orderLedger
	gateway StripePaymentClient
	logg    *logger.Logger
}

// NewService constructs a payment service instance.
func NewService(ledger orderLedger, gateway StripePaymentClient, logg *logger.Logger) (Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("stripe payment client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{ledger: ledger, gateway: gateway, logg: logg}, nil
}

// CreateIntent issues (or reuses) the gateway intent for an order. A pending
// order with an intent already attached returns the existing intent instead
// of minting a duplicate; a failed payment gets a fresh intent and the order
// is reset for retry.
func (s *service) CreateIntent(ctx context.Context, customerID, orderID uuid.UUID) (*IntentDTO, error) {
	order, err := s.ledger.OrderForCustomer(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodStripe {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment method %s does not use card intents", order.PaymentMethod))
	}

	switch order.PaymentStatus {
	case enums.PaymentStatusPending:
		if order.PaymentIntentID != nil {
			intent, err := s.gateway.GetIntent(ctx, *order.PaymentIntentID, nil)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe: fetch intent")
			}
			return intentDTO(intent), nil
		}
		intent, err := s.createGatewayIntent(ctx, order)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.AttachPaymentIntent(ctx, order.ID, intent.ID); err != nil {
			return nil, err
		}
		return intentDTO(intent), nil

	case enums.PaymentStatusFailed:
		intent, err := s.createGatewayIntent(ctx, order)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.ResetForRetry(ctx, order.ID, intent.ID); err != nil {
			return nil, err
		}
		return intentDTO(intent), nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s and cannot take a new intent", order.PaymentStatus))
	}
}

// Confirm re-fetches the intent from the gateway and settles the ledger only
// if Stripe itself reports success.
func (s *service) Confirm(ctx context.Context, customerID, orderID uuid.UUID) (*ConfirmResult, error) {
	order, err := s.ledger.OrderForCustomer(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment intent")
	}

	params := &stripe.PaymentIntentParams{}
	params.AddExpand("latest_charge")
	intent, err := s.gateway.GetIntent(ctx, *order.PaymentIntentID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe: fetch intent")
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return &ConfirmResult{Status: string(intent.Status)}, nil
	}

	transactionID := intent.ID
	var receiptURL *string
	if intent.LatestCharge != nil {
		transactionID = intent.LatestCharge.ID
		if intent.LatestCharge.ReceiptURL != "" {
			url := intent.LatestCharge.ReceiptURL
			receiptURL = &url
		}
	}

	dto, err := s.ledger.MarkPaymentSucceeded(ctx, intent.ID, transactionID, receiptURL)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Status: string(intent.Status), Order: dto}, nil
}

// Methods lists the payment channels an order can be placed with.
func (s *service) Methods() []MethodDTO {
	return []MethodDTO{
		{ID: enums.PaymentMethodStripe.String(), Label: "Credit or debit card", Online: true},
		{ID: enums.PaymentMethodPaypal.String(), Label: "PayPal", Online: true},
		{ID: enums.PaymentMethodCOD.String(), Label: "Cash on delivery", Online: false},
	}
}

func (s *service) createGatewayIntent(ctx context.Context, order *models.Order) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(order.TotalCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("customer_id", order.CustomerID.String())

	intent, err := s.gateway.CreateIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe: create intent")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID,
		"intent_id": intent.ID,
	}), "payment intent created")
	return intent, nil
}

func intentDTO(intent *stripe.PaymentIntent) *IntentDTO {
	return &IntentDTO{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.Amount,
		Currency:     string(intent.Currency),
	}
}
