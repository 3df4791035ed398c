package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/omarvaldez/threadline-backend/internal/orders"
	pkgerrors "github.com/omarvaldez/threadline-backend/pkg/errors"
	"github.com/omarvaldez/threadline-backend/pkg/logger"
	"github.com/omarvaldez/threadline-backend/pkg/metrics"
)

type orderLedger interface {
	MarkPaymentSucceeded(ctx context.Context, intentID, transactionID string, receiptURL *string) (*orders.OrderDTO, error)
	MarkPaymentFailed(ctx context.Context, intentID string) (*orders.OrderDTO, error)
}

type ServiceParams struct {
	Ledger  orderLedger
	Logger  *logger.Logger
	Metrics *metrics.WebhookMetrics
}

// Service reconciles gateway payment events against the order ledger.
type Service struct {
	ledger  orderLedger
	logg    *logger.Logger
	metrics *metrics.WebhookMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order ledger required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// HandleEvent applies one verified gateway event. Events for unknown intents
// and unrecognized event types are acknowledged without state change so the
// gateway does not retry them forever.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
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

		if _, err := s.ledger.MarkPaymentSucceeded(ctx, intent.ID, transactionID, receiptURL); err != nil {
			return s.acknowledgeSkipped(ctx, event, intent.ID, err)
		}
		s.metrics.IncProcessed(string(event.Type))
		return nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}

		if _, err := s.ledger.MarkPaymentFailed(ctx, intent.ID); err != nil {
			return s.acknowledgeSkipped(ctx, event, intent.ID, err)
		}
		s.metrics.IncProcessed(string(event.Type))
		return nil

	default:
		return nil
	}
}

// acknowledgeSkipped swallows events that can never reconcile: no matching
// order, or a transition the ledger refuses (e.g. a late failure after the
// payment completed). Returning nil acknowledges the delivery so the gateway
// stops retrying; everything else propagates as a retryable failure.
func (s *Service) acknowledgeSkipped(ctx context.Context, event *stripe.Event, intentID string, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	switch typed.Code() {
	case pkgerrors.CodeNotFound:
		s.metrics.IncUnmatched()
	case pkgerrors.CodeStateConflict:
	default:
		return err
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"event_id":  event.ID,
		"intent_id": intentID,
		"reason":    typed.Message(),
	}), fmt.Sprintf("event %s not applied, acknowledged", event.Type))
	return nil
}

func decodeIntent(event *stripe.Event) (*stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return &intent, nil
}
