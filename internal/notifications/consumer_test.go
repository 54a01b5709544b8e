package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox/payloads"
)

func marshal(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestConsumer_OrderPaidNotifiesBuyer(t *testing.T) {
	repo := &fakeRepository{}
	consumer := &Consumer{repo: repo}
	buyerID := uuid.New()

	payload := payloads.OrderPaidEvent{
		OrderID:     uuid.New(),
		BuyerUserID: buyerID,
		TotalCents:  2350,
	}
	err := consumer.handleEvent(context.Background(), enums.EventOrderPaid, marshal(t, payload))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	got := repo.created[0]
	if got.UserID == nil || *got.UserID != buyerID {
		t.Fatalf("expected buyer-scoped notification, got %+v", got)
	}
	if got.Type != enums.NotificationTypeOrderAlert {
		t.Fatalf("expected order alert, got %s", got.Type)
	}
}

func TestConsumer_CleanSettlementIsSilent(t *testing.T) {
	repo := &fakeRepository{}
	consumer := &Consumer{repo: repo}

	payload := payloads.SettlementCompletedEvent{
		OrderID:        uuid.New(),
		TransferCount:  4,
		TotalPaidCents: 6800,
	}
	err := consumer.handleEvent(context.Background(), enums.EventSettlementCompleted, marshal(t, payload))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("clean settlement must not notify, got %d rows", len(repo.created))
	}
}

func TestConsumer_FailedSettlementAlertsAdmins(t *testing.T) {
	repo := &fakeRepository{}
	consumer := &Consumer{repo: repo}

	payload := payloads.SettlementCompletedEvent{
		OrderID:       uuid.New(),
		TransferCount: 2,
		FailedCount:   1,
	}
	err := consumer.handleEvent(context.Background(), enums.EventSettlementCompleted, marshal(t, payload))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected admin alert, got %d rows", len(repo.created))
	}
	if repo.created[0].UserID != nil {
		t.Fatalf("admin notifications must not target a user")
	}
	if repo.created[0].Type != enums.NotificationTypeSettlementAlert {
		t.Fatalf("expected settlement alert, got %s", repo.created[0].Type)
	}
}

func TestConsumer_TransferFailedAlertsAdminAndSeller(t *testing.T) {
	repo := &fakeRepository{}
	consumer := &Consumer{repo: repo}
	sellerID := uuid.New()

	payload := payloads.TransferFailedEvent{
		OrderID:      uuid.New(),
		CardID:       uuid.New(),
		SellerUserID: sellerID,
		AmountCents:  1700,
		Reason:       "account closed",
	}
	err := consumer.handleEvent(context.Background(), enums.EventTransferFailed, marshal(t, payload))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(repo.created) != 2 {
		t.Fatalf("expected admin + seller rows, got %d", len(repo.created))
	}
	if repo.created[0].UserID != nil {
		t.Fatalf("first row must be the admin alert")
	}
	if repo.created[1].UserID == nil || *repo.created[1].UserID != sellerID {
		t.Fatalf("second row must target the seller")
	}
	if repo.created[1].Type != enums.NotificationTypePayoutAlert {
		t.Fatalf("expected payout alert, got %s", repo.created[1].Type)
	}
}

func TestConsumer_UnknownEventIsIgnored(t *testing.T) {
	repo := &fakeRepository{}
	consumer := &Consumer{repo: repo}

	err := consumer.handleEvent(context.Background(), enums.OutboxEventType("mystery"), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unknown events must be ignored, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("no rows expected")
	}
}
