package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// MarkPaidInput carries the payment facts captured from the checkout session.
type MarkPaidInput struct {
	OrderID         uuid.UUID
	PaymentIntentID string
}

// MarkShippedInput is the operator's manual ship action.
type MarkShippedInput struct {
	OrderID        uuid.UUID
	TrackingNumber string
	Carrier        string
}

// Service defines order lifecycle operations and the reads controllers need.
type Service interface {
	MarkPaid(ctx context.Context, input MarkPaidInput) (*models.Order, error)
	MarkStored(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkShipped(ctx context.Context, input MarkShippedInput) (*models.Order, error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListStoredForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

// MarkPaid moves a pending order to paid and snapshots the payment intent.
// Replays against an already-paid order are no-ops.
func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status != enums.OrderStatusPending {
			// webhook replay; nothing to do
			result = order
			return nil
		}

		now := time.Now()
		fields := map[string]any{"paid_at": now}
		if intent := strings.TrimSpace(input.PaymentIntentID); intent != "" {
			fields["stripe_payment_intent_id"] = intent
		}
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPaid, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		order.Status = enums.OrderStatusPaid
		order.PaidAt = &now
		if intent := strings.TrimSpace(input.PaymentIntentID); intent != "" {
			order.StripePaymentIntentID = &intent
		}
		result = order

		eventType := enums.EventOrderPaid
		var data interface{} = payloads.OrderPaidEvent{
			OrderID:        order.ID,
			BuyerUserID:    order.BuyerUserID,
			ShippingMethod: order.ShippingMethod,
			SubtotalCents:  int64(order.SubtotalCents),
			ShippingCents:  int64(order.ShippingCents),
			TotalCents:     int64(order.TotalCents),
			PaidAt:         now,
		}
		if order.Type == enums.OrderTypeShipping {
			eventType = enums.EventShippingOrderPaid
			data = payloads.ShippingOrderPaidEvent{
				ShippingOrderID: order.ID,
				BuyerUserID:     order.BuyerUserID,
				RelatedOrderIDs: order.RelatedOrderIDs,
				ShippingCents:   int64(order.ShippingCents),
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data:          data,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkStored parks a paid vault order until the buyer requests shipment.
func (s *service) MarkStored(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == enums.OrderStatusStored {
			result = order
			return nil
		}
		if !CanTransition(order.Status, enums.OrderStatusStored) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot store order in status %s", order.Status))
		}

		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusStored, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = enums.OrderStatusStored
		result = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStored,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStoredEvent{
				OrderID:     order.ID,
				BuyerUserID: order.BuyerUserID,
				CardCount:   len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkShipped records the operator's manual ship action with carrier details.
func (s *service) MarkShipped(ctx context.Context, input MarkShippedInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.Status == enums.OrderStatusShipped {
			result = order
			return nil
		}
		if !CanTransition(order.Status, enums.OrderStatusShipped) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot ship order in status %s", order.Status))
		}

		now := time.Now()
		fields := map[string]any{"shipped_at": now}
		if tracking := strings.TrimSpace(input.TrackingNumber); tracking != "" {
			fields["tracking_number"] = tracking
		}
		if carrier := strings.TrimSpace(input.Carrier); carrier != "" {
			fields["carrier"] = carrier
		}
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = enums.OrderStatusShipped
		order.ShippedAt = &now
		result = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderShipped,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderShippedEvent{
				OrderID:        order.ID,
				BuyerUserID:    order.BuyerUserID,
				TrackingNumber: strings.TrimSpace(input.TrackingNumber),
				Carrier:        strings.TrimSpace(input.Carrier),
				ShippedAt:      now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerUserID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.FindByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) ListStoredForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	orders, err := s.repo.FindStoredByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stored orders")
	}
	return orders, nil
}

func (s *service) ListAll(ctx context.Context, limit, offset int) ([]models.Order, error) {
	orders, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}
