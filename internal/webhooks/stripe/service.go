package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/internal/cards"
	"github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/internal/settlement"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
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

type orderLifecycle interface {
	MarkPaid(ctx context.Context, input orders.MarkPaidInput) (*models.Order, error)
	MarkStored(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type settler interface {
	Settle(ctx context.Context, set settlement.InstructionSet, paymentIntentID string) (settlement.Result, error)
}

type ServiceParams struct {
	Orders            orderLifecycle
	OrdersRepo        orders.Repository
	CardsRepo         cards.Repository
	Settler           settler
	Outbox            outboxPublisher
	TransactionRunner txRunner
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
}

// Service routes verified Stripe events into the order lifecycle and the
// settlement orchestrator. Handlers are idempotent: the state machine treats
// replays as no-ops and transfer issuance is guarded by the ledger.
type Service struct {
	orders     orderLifecycle
	ordersRepo orders.Repository
	cardsRepo  cards.Repository
	settler    settler
	outbox     outboxPublisher
	txRunner   txRunner
	metrics    *metrics.WebhookMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.CardsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cards repo required")
	}
	if params.Settler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement orchestrator required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		orders:     params.Orders,
		ordersRepo: params.OrdersRepo,
		cardsRepo:  params.CardsRepo,
		settler:    params.Settler,
		outbox:     params.Outbox,
		txRunner:   params.TransactionRunner,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	eventType := string(event.Type)
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration(eventType, time.Since(start))
	}()

	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if decodeErr := json.Unmarshal(event.Data.Raw, &session); decodeErr != nil {
			s.metrics.IncResult(eventType, "failed")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode checkout session event")
		}
		err = s.handleSessionCompleted(ctx, &session)
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if decodeErr := json.Unmarshal(event.Data.Raw, &intent); decodeErr != nil {
			s.metrics.IncResult(eventType, "failed")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode payment intent event")
		}
		err = s.handlePaymentSucceeded(ctx, &intent)
	default:
		s.metrics.IncResult(eventType, "skipped")
		return nil
	}

	if err != nil {
		s.metrics.IncResult(eventType, "failed")
		return err
	}
	s.metrics.IncResult(eventType, "handled")
	return nil
}

// handleSessionCompleted confirms payment against the order the session was
// created for. The shipping-only branch never touches transfers.
func (s *Service) handleSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}

	if raw, ok := session.Metadata[settlement.MetaShippingOrderID]; ok && raw != "" {
		return s.completeShippingOrder(ctx, raw, intentID)
	}
	if raw, ok := session.Metadata[settlement.MetaOrderID]; ok && raw != "" {
		return s.completePurchaseOrder(ctx, raw, session.Metadata, intentID)
	}

	s.warn(ctx, "checkout session carries no order metadata, ignoring")
	return nil
}

func (s *Service) completePurchaseOrder(ctx context.Context, rawOrderID string, meta map[string]string, intentID string) error {
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("unparseable order id %q in session metadata, ignoring", rawOrderID))
		return nil
	}

	order, err := s.orders.MarkPaid(ctx, orders.MarkPaidInput{OrderID: orderID, PaymentIntentID: intentID})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeNotFound {
			s.warn(ctx, fmt.Sprintf("order %s not found for paid session, ignoring", orderID))
			return nil
		}
		return err
	}

	if order.ShippingMethod == enums.ShippingMethodStore {
		// vault purchase: cards stay live-owned until a shipping order completes
		_, err := s.orders.MarkStored(ctx, order.ID)
		return err
	}

	cardIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		cardIDs = append(cardIDs, item.CardID)
	}
	return s.markCardsSold(ctx, order.ID, cardIDs)
}

func (s *Service) completeShippingOrder(ctx context.Context, rawOrderID string, intentID string) error {
	shippingOrderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("unparseable shipping order id %q in session metadata, ignoring", rawOrderID))
		return nil
	}

	order, err := s.orders.MarkPaid(ctx, orders.MarkPaidInput{OrderID: shippingOrderID, PaymentIntentID: intentID})
	if err != nil {
		if coded := pkgerrors.As(err); coded != nil && coded.Code() == pkgerrors.CodeNotFound {
			s.warn(ctx, fmt.Sprintf("shipping order %s not found for paid session, ignoring", shippingOrderID))
			return nil
		}
		return err
	}

	if len(order.RelatedOrderIDs) == 0 {
		return nil
	}
	related, err := s.ordersRepo.FindByIDs(ctx, order.RelatedOrderIDs)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load related orders")
	}
	for _, rel := range related {
		cardIDs := make([]uuid.UUID, 0, len(rel.Items))
		for _, item := range rel.Items {
			cardIDs = append(cardIDs, item.CardID)
		}
		if err := s.markCardsSold(ctx, rel.ID, cardIDs); err != nil {
			return err
		}
	}
	return nil
}

// handlePaymentSucceeded is the authoritative settlement trigger: it rebuilds
// the instruction set from the payment intent's metadata and runs transfers.
func (s *Service) handlePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	if raw := intent.Metadata[settlement.MetaShippingOrderID]; raw != "" {
		// shipping revenue stays on the platform balance, nothing to split
		return nil
	}
	if intent.Metadata[settlement.MetaOrderID] == "" {
		s.warn(ctx, "payment intent carries no order metadata, ignoring")
		return nil
	}

	set, err := settlement.DecodeMetadata(intent.Metadata)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("undecodable settlement metadata on %s, ignoring: %v", intent.ID, err))
		return nil
	}
	if set.Malformed > 0 {
		s.warn(ctx, fmt.Sprintf("%d malformed split tuples on %s", set.Malformed, intent.ID))
	}

	result, err := s.settler.Settle(ctx, set, intent.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "run settlement")
	}
	// Rejected payouts are already on the ledger and reported to operators;
	// acknowledging stops Stripe from redelivering an event that would only
	// replay the same rejection.
	if result.Failed > 0 {
		s.warn(ctx, fmt.Sprintf("%d of %d payouts for %s failed and are held for operator review",
			result.Failed, result.Failed+result.Succeeded, intent.ID))
	}
	return nil
}

// markCardsSold flips cards to sold and records the fact once. Cards already
// sold are left untouched, and a replay that moves nothing emits nothing.
func (s *Service) markCardsSold(ctx context.Context, orderID uuid.UUID, cardIDs []uuid.UUID) error {
	if len(cardIDs) == 0 {
		return nil
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.cardsRepo.WithTx(tx).MarkSold(ctx, cardIDs, time.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cards sold")
		}
		if affected == 0 {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCardsSold,
			AggregateType: enums.AggregateCard,
			AggregateID:   orderID,
			Version:       1,
			Data: payloads.CardsSoldEvent{
				OrderID: orderID,
				CardIDs: cardIDs,
			},
		})
	})
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
