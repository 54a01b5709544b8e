package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox/idempotency"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox/payloads"
)

const domainNotificationConsumer = "domain-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns order and settlement milestones
// into in-app notifications for buyers, sellers, and operators.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a domain notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order_paid payload: %w", err)
		}
		return c.notifyOrderPaid(ctx, payload)
	case enums.EventOrderStored:
		var payload payloads.OrderStoredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order_stored payload: %w", err)
		}
		return c.notifyOrderStored(ctx, payload)
	case enums.EventOrderShipped:
		var payload payloads.OrderShippedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order_shipped payload: %w", err)
		}
		return c.notifyOrderShipped(ctx, payload)
	case enums.EventShippingOrderPaid:
		var payload payloads.ShippingOrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse shipping_order_paid payload: %w", err)
		}
		return c.notifyShippingOrderPaid(ctx, payload)
	case enums.EventSettlementCompleted:
		var payload payloads.SettlementCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse settlement_completed payload: %w", err)
		}
		return c.notifySettlementCompleted(ctx, payload)
	case enums.EventTransferFailed:
		var payload payloads.TransferFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse transfer_failed payload: %w", err)
		}
		return c.notifyTransferFailed(ctx, payload)
	case enums.EventFundsRetained:
		var payload payloads.FundsRetainedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse funds_retained payload: %w", err)
		}
		return c.notifyFundsRetained(ctx, payload)
	default:
		return nil
	}
}

func (c *Consumer) notifyOrderPaid(ctx context.Context, payload payloads.OrderPaidEvent) error {
	if payload.BuyerUserID == uuid.Nil {
		return fmt.Errorf("buyer user id missing")
	}
	buyerID := payload.BuyerUserID
	return c.repo.Create(ctx, &models.Notification{
		UserID:  &buyerID,
		Type:    enums.NotificationTypeOrderAlert,
		Title:   "Order confirmed",
		Message: fmt.Sprintf("Payment of $%.2f received for order %s.", float64(payload.TotalCents)/100, payload.OrderID),
		Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) notifyOrderStored(ctx context.Context, payload payloads.OrderStoredEvent) error {
	if payload.BuyerUserID == uuid.Nil {
		return fmt.Errorf("buyer user id missing")
	}
	buyerID := payload.BuyerUserID
	return c.repo.Create(ctx, &models.Notification{
		UserID:  &buyerID,
		Type:    enums.NotificationTypeOrderAlert,
		Title:   "Cards stored in your vault",
		Message: fmt.Sprintf("%d cards from order %s are stored and ready to ship whenever you are.", payload.CardCount, payload.OrderID),
		Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) notifyOrderShipped(ctx context.Context, payload payloads.OrderShippedEvent) error {
	if payload.BuyerUserID == uuid.Nil {
		return fmt.Errorf("buyer user id missing")
	}
	buyerID := payload.BuyerUserID
	message := fmt.Sprintf("Order %s is on its way.", payload.OrderID)
	if payload.TrackingNumber != "" {
		message = fmt.Sprintf("Order %s shipped via %s, tracking %s.", payload.OrderID, payload.Carrier, payload.TrackingNumber)
	}
	return c.repo.Create(ctx, &models.Notification{
		UserID:  &buyerID,
		Type:    enums.NotificationTypeShippingUpdate,
		Title:   "Order shipped",
		Message: message,
		Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.OrderID)),
	})
}

func (c *Consumer) notifyShippingOrderPaid(ctx context.Context, payload payloads.ShippingOrderPaidEvent) error {
	if payload.BuyerUserID == uuid.Nil {
		return fmt.Errorf("buyer user id missing")
	}
	buyerID := payload.BuyerUserID
	return c.repo.Create(ctx, &models.Notification{
		UserID:  &buyerID,
		Type:    enums.NotificationTypeShippingUpdate,
		Title:   "Shipment scheduled",
		Message: fmt.Sprintf("Your consolidated shipment covering %d orders is being prepared.", len(payload.RelatedOrderIDs)),
		Link:    stringPtr(fmt.Sprintf("/orders/%s", payload.ShippingOrderID)),
	})
}

// notifySettlementCompleted only alerts operators when a run needs attention.
func (c *Consumer) notifySettlementCompleted(ctx context.Context, payload payloads.SettlementCompletedEvent) error {
	if payload.FailedCount == 0 && payload.RetainedCount == 0 {
		return nil
	}
	return c.repo.Create(ctx, &models.Notification{
		Type:  enums.NotificationTypeSettlementAlert,
		Title: "Settlement run needs review",
		Message: fmt.Sprintf("Order %s settled with %d failed and %d retained transfers (%d succeeded, $%.2f paid out).",
			payload.OrderID, payload.FailedCount, payload.RetainedCount, payload.TransferCount, float64(payload.TotalPaidCents)/100),
		Link: stringPtr(fmt.Sprintf("/admin/orders/%s/transfers", payload.OrderID)),
	})
}

func (c *Consumer) notifyTransferFailed(ctx context.Context, payload payloads.TransferFailedEvent) error {
	admin := models.Notification{
		Type:  enums.NotificationTypeSettlementAlert,
		Title: "Seller payout failed",
		Message: fmt.Sprintf("Transfer of $%.2f to seller %s failed for order %s: %s",
			float64(payload.AmountCents)/100, payload.SellerUserID, payload.OrderID, payload.Reason),
		Link: stringPtr(fmt.Sprintf("/admin/orders/%s/transfers", payload.OrderID)),
	}
	if err := c.repo.Create(ctx, &admin); err != nil {
		return err
	}
	if payload.SellerUserID == uuid.Nil {
		return nil
	}
	sellerID := payload.SellerUserID
	return c.repo.Create(ctx, &models.Notification{
		UserID:  &sellerID,
		Type:    enums.NotificationTypePayoutAlert,
		Title:   "Payout delayed",
		Message: fmt.Sprintf("A payout of $%.2f could not be delivered. Our team is looking into it.", float64(payload.AmountCents)/100),
	})
}

func (c *Consumer) notifyFundsRetained(ctx context.Context, payload payloads.FundsRetainedEvent) error {
	if payload.SellerUserID == uuid.Nil {
		return nil
	}
	sellerID := payload.SellerUserID
	return c.repo.Create(ctx, &models.Notification{
		UserID:  &sellerID,
		Type:    enums.NotificationTypePayoutAlert,
		Title:   "Proceeds on hold",
		Message: fmt.Sprintf("$%.2f from a sale is held until you finish payout onboarding.", float64(payload.AmountCents)/100),
		Link:    stringPtr("/settings/payouts"),
	})
}

func stringPtr(value string) *string {
	return &value
}
