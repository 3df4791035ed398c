package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/omarvaldez/threadline-backend/pkg/logger"
)

type pendingOrderSweeper interface {
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

// OrderExpiryJobParams configure the stale-order sweep.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Ledger pendingOrderSweeper
}

// NewOrderExpiryJob builds the job that cancels unpaid card orders past the
// pending window and returns their reserved stock to inventory.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		ledger: params.Ledger,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	ledger pendingOrderSweeper
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	swept, err := j.ledger.ExpirePending(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", swept)
	j.logg.Info(logCtx, "order expiry sweep complete")
	return nil
}
