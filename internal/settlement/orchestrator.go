package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
	"github.com/cardhaus/cardhaus-backend/pkg/metrics"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Result summarizes one settlement run. Partial failure is a reportable
// outcome, not a fatal one; callers decide what to do with the error detail.
type Result struct {
	Succeeded      int
	Failed         int
	Skipped        int
	TotalPaidCents int64
}

// Orchestrator fans payouts out to Stripe with bounded concurrency, using the
// transfer ledger as the replay guard.
type Orchestrator struct {
	ledger        Repository
	transfers     StripeTransferClient
	tx            txRunner
	outbox        outboxPublisher
	metrics       *metrics.SettlementMetrics
	logg          *logger.Logger
	maxConcurrent int
}

// NewOrchestrator builds a settlement orchestrator with the required dependencies.
func NewOrchestrator(
	ledger Repository,
	transfers StripeTransferClient,
	tx txRunner,
	outboxSvc outboxPublisher,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
	cfg config.SettlementConfig,
) (*Orchestrator, error) {
	if ledger == nil {
		return nil, fmt.Errorf("transfer ledger required")
	}
	if transfers == nil {
		return nil, fmt.Errorf("stripe transfer client required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	maxConcurrent := cfg.MaxConcurrentTransfers
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		ledger:        ledger,
		transfers:     transfers,
		tx:            tx,
		outbox:        outboxSvc,
		metrics:       settlementMetrics,
		logg:          logg,
		maxConcurrent: maxConcurrent,
	}, nil
}

type transferOutcome struct {
	instruction  Instruction
	skipped      bool
	claimed      bool
	err          error
	infra        bool
	priorFailure bool
	paidCents    int64
}

// Settle executes every payout instruction for the order. Each instruction is
// independent: one failure never stops the others, and replays are absorbed by
// the ledger's unique key. Rejected transfers are recorded as failed ledger
// rows and reported through Result; the returned error carries only
// infrastructure failures (ledger or event writes), which callers should
// escalate so the delivery is retried.
func (o *Orchestrator) Settle(ctx context.Context, set InstructionSet, paymentIntentID string) (Result, error) {
	start := time.Now()
	defer func() {
		o.metrics.ObserveRun("webhook", time.Since(start))
	}()

	outcomes := make([]transferOutcome, len(set.Instructions))
	sem := make(chan struct{}, o.maxConcurrent)
	var wg sync.WaitGroup

	for i, inst := range set.Instructions {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, inst Instruction) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = o.settleOne(ctx, set.OrderID, paymentIntentID, inst)
		}(i, inst)
	}
	wg.Wait()

	var result Result
	var infraErrs error
	var failed []Instruction
	for _, outcome := range outcomes {
		switch {
		case outcome.skipped:
			result.Skipped++
		case outcome.priorFailure:
			// an earlier delivery already recorded and reported this failure
			result.Failed++
		case outcome.err != nil && outcome.infra:
			infraErrs = multierr.Append(infraErrs, outcome.err)
		case outcome.err != nil:
			result.Failed++
			failed = append(failed, outcome.instruction)
			o.metrics.IncTransfer(string(enums.TransferStatusFailed))
		default:
			result.Succeeded++
			result.TotalPaidCents += outcome.paidCents
			if outcome.claimed {
				o.metrics.IncTransfer(string(enums.TransferStatusSucceeded))
			}
		}
	}

	// Infrastructure failures force a redelivery; that run emits the
	// authoritative completion event instead of this one.
	if infraErrs == nil {
		if err := o.emitEvents(ctx, set, paymentIntentID, result, failed); err != nil {
			infraErrs = multierr.Append(infraErrs, err)
		}
	}

	if o.logg != nil {
		fields := map[string]any{
			"order_id":  set.OrderID.String(),
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"skipped":   result.Skipped,
		}
		logCtx := o.logg.WithFields(ctx, fields)
		switch {
		case infraErrs != nil:
			o.logg.Error(logCtx, "settlement interrupted", infraErrs)
		case result.Failed > 0:
			o.logg.Warn(logCtx, "settlement finished with failures")
		default:
			o.logg.Info(logCtx, "settlement finished")
		}
	}

	return result, infraErrs
}

func (o *Orchestrator) settleOne(ctx context.Context, orderID uuid.UUID, paymentIntentID string, inst Instruction) transferOutcome {
	outcome := transferOutcome{instruction: inst}

	if inst.AmountCents <= 0 || inst.StripeAccountID == "" {
		outcome.skipped = true
		return outcome
	}

	sellerID := inst.SellerUserID
	accountID := inst.StripeAccountID
	record := &models.TransferRecord{
		OrderID:         orderID,
		CardID:          inst.CardID,
		SellerUserID:    &sellerID,
		StripeAccountID: &accountID,
		AmountCents:     inst.AmountCents,
		PaymentIntentID: &paymentIntentID,
	}
	claimed, prior, err := o.ledger.Claim(ctx, record)
	if err != nil {
		outcome.err = fmt.Errorf("claim ledger row for card %s: %w", inst.CardID, err)
		outcome.infra = true
		return outcome
	}
	if !claimed {
		switch prior {
		case enums.TransferStatusSucceeded:
			// an earlier delivery already paid this card out
			outcome.paidCents = int64(inst.AmountCents)
			return outcome
		case enums.TransferStatusFailed:
			outcome.priorFailure = true
			return outcome
		case enums.TransferStatusRetained:
			outcome.skipped = true
			return outcome
		}
		// a pending row means a delivery died mid-flight; the transfer
		// idempotency key makes it safe to finish the attempt here
	} else {
		outcome.claimed = true
	}

	params := &stripe.TransferParams{
		Amount:        stripe.Int64(int64(inst.AmountCents)),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		Destination:   stripe.String(inst.StripeAccountID),
		TransferGroup: stripe.String(orderID.String()),
	}
	params.AddMetadata("order_id", orderID.String())
	params.AddMetadata("card_id", inst.CardID.String())
	params.SetIdempotencyKey(fmt.Sprintf("%s:%s", orderID, inst.CardID))

	created, err := o.transfers.CreateTransfer(ctx, params)
	if err != nil {
		if markErr := o.ledger.MarkFailed(ctx, orderID, inst.CardID, err.Error()); markErr != nil {
			err = multierr.Append(err, markErr)
			outcome.infra = true
		}
		outcome.err = fmt.Errorf("transfer for card %s: %w", inst.CardID, err)
		return outcome
	}

	if err := o.ledger.MarkSucceeded(ctx, orderID, inst.CardID, created.ID); err != nil {
		outcome.err = fmt.Errorf("record transfer %s: %w", created.ID, err)
		outcome.infra = true
		return outcome
	}
	outcome.paidCents = int64(inst.AmountCents)
	return outcome
}

func (o *Orchestrator) emitEvents(ctx context.Context, set InstructionSet, paymentIntentID string, result Result, failed []Instruction) error {
	return o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, inst := range failed {
			event := outbox.DomainEvent{
				EventType:     enums.EventTransferFailed,
				AggregateType: enums.AggregateSettlement,
				AggregateID:   set.OrderID,
				Version:       1,
				Data: payloads.TransferFailedEvent{
					OrderID:      set.OrderID,
					CardID:       inst.CardID,
					SellerUserID: inst.SellerUserID,
					AmountCents:  int64(inst.AmountCents),
				},
			}
			if err := o.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return o.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementCompleted,
			AggregateType: enums.AggregateSettlement,
			AggregateID:   set.OrderID,
			Version:       1,
			Data: payloads.SettlementCompletedEvent{
				OrderID:         set.OrderID,
				PaymentIntentID: paymentIntentID,
				TransferCount:   result.Succeeded,
				FailedCount:     result.Failed,
				RetainedCount:   result.Skipped,
				TotalPaidCents:  result.TotalPaidCents,
			},
		})
	})
}
