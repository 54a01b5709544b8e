package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox/payloads"
)

type ledgerKey struct {
	orderID uuid.UUID
	cardID  uuid.UUID
}

type stubLedger struct {
	mu       sync.Mutex
	records  map[ledgerKey]*models.TransferRecord
	claimErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{records: make(map[ledgerKey]*models.TransferRecord)}
}

func (s *stubLedger) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubLedger) seed(orderID, cardID uuid.UUID, status enums.TransferStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ledgerKey{orderID: orderID, cardID: cardID}] = &models.TransferRecord{
		OrderID: orderID,
		CardID:  cardID,
		Status:  status,
	}
}

func (s *stubLedger) Claim(ctx context.Context, record *models.TransferRecord) (bool, enums.TransferStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, "", s.claimErr
	}
	key := ledgerKey{orderID: record.OrderID, cardID: record.CardID}
	if existing, ok := s.records[key]; ok {
		return false, existing.Status, nil
	}
	record.Status = enums.TransferStatusPending
	s.records[key] = record
	return true, "", nil
}

func (s *stubLedger) MarkSucceeded(ctx context.Context, orderID, cardID uuid.UUID, transferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.records[ledgerKey{orderID: orderID, cardID: cardID}]
	record.Status = enums.TransferStatusSucceeded
	record.StripeTransferID = &transferID
	return nil
}

func (s *stubLedger) MarkFailed(ctx context.Context, orderID, cardID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.records[ledgerKey{orderID: orderID, cardID: cardID}]
	record.Status = enums.TransferStatusFailed
	record.FailureReason = &reason
	return nil
}

func (s *stubLedger) CreateRetained(ctx context.Context, record *models.TransferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Status = enums.TransferStatusRetained
	s.records[ledgerKey{orderID: record.OrderID, cardID: record.CardID}] = record
	return nil
}

func (s *stubLedger) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransferRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TransferRecord
	for key, record := range s.records {
		if key.orderID == orderID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *stubLedger) statusOf(orderID, cardID uuid.UUID) enums.TransferStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[ledgerKey{orderID: orderID, cardID: cardID}]
	if !ok {
		return ""
	}
	return record.Status
}

type stubTransferClient struct {
	mu       sync.Mutex
	calls    int
	failFor  map[string]error
	accounts []string
}

func (s *stubTransferClient) CreateTransfer(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	account := stripe.StringValue(params.Destination)
	s.accounts = append(s.accounts, account)
	if err, ok := s.failFor[account]; ok {
		return nil, err
	}
	return &stripe.Transfer{ID: fmt.Sprintf("tr_%d", s.calls)}, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.DomainEvent
	for _, event := range s.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T, ledger *stubLedger, transfers *stubTransferClient, ob *stubOutbox) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(ledger, transfers, stubTxRunner{}, ob, nil, nil, config.SettlementConfig{MaxConcurrentTransfers: 4})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func TestSettlePaysEverySeller(t *testing.T) {
	ledger := newStubLedger()
	transfers := &stubTransferClient{}
	ob := &stubOutbox{}
	orch := newTestOrchestrator(t, ledger, transfers, ob)

	set := sampleSet(3)
	result, err := orch.Settle(context.Background(), set, "pi_123")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Succeeded != 3 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.TotalPaidCents != 3*1700 {
		t.Fatalf("expected 5100 paid, got %d", result.TotalPaidCents)
	}
	if transfers.calls != 3 {
		t.Fatalf("expected 3 transfer calls, got %d", transfers.calls)
	}
	for _, inst := range set.Instructions {
		if status := ledger.statusOf(set.OrderID, inst.CardID); status != enums.TransferStatusSucceeded {
			t.Fatalf("card %s ledger status %s", inst.CardID, status)
		}
	}
	if events := ob.byType(enums.EventSettlementCompleted); len(events) != 1 {
		t.Fatalf("expected one settlement_completed event, got %d", len(events))
	}
}

func TestSettleReplayIssuesNoDuplicateTransfers(t *testing.T) {
	ledger := newStubLedger()
	transfers := &stubTransferClient{}
	ob := &stubOutbox{}
	orch := newTestOrchestrator(t, ledger, transfers, ob)

	set := sampleSet(2)
	if _, err := orch.Settle(context.Background(), set, "pi_123"); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	result, err := orch.Settle(context.Background(), set, "pi_123")
	if err != nil {
		t.Fatalf("replay settle: %v", err)
	}
	if transfers.calls != 2 {
		t.Fatalf("replay must not issue new transfers, got %d calls", transfers.calls)
	}
	if result.Succeeded != 2 || result.Failed != 0 {
		t.Fatalf("unexpected replay result %+v", result)
	}
}

func TestSettlePartialFailureContinues(t *testing.T) {
	ledger := newStubLedger()
	transfers := &stubTransferClient{
		failFor: map[string]error{"acct_001": errors.New("account cannot receive payouts")},
	}
	ob := &stubOutbox{}
	orch := newTestOrchestrator(t, ledger, transfers, ob)

	set := sampleSet(3)
	result, err := orch.Settle(context.Background(), set, "pi_123")
	if err != nil {
		t.Fatalf("rejected transfers must not surface as an error: %v", err)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.TotalPaidCents != 2*1700 {
		t.Fatalf("rejected payout must not count as paid, got %d", result.TotalPaidCents)
	}
	if transfers.calls != 3 {
		t.Fatalf("all transfers must be attempted, got %d calls", transfers.calls)
	}
	if status := ledger.statusOf(set.OrderID, set.Instructions[1].CardID); status != enums.TransferStatusFailed {
		t.Fatalf("failed card ledger status %s", status)
	}
	if events := ob.byType(enums.EventTransferFailed); len(events) != 1 {
		t.Fatalf("expected one transfer_failed event, got %d", len(events))
	}
	if events := ob.byType(enums.EventSettlementCompleted); len(events) != 1 {
		t.Fatalf("expected one settlement_completed event, got %d", len(events))
	}
}

func TestSettleLedgerErrorEscalates(t *testing.T) {
	ledger := newStubLedger()
	ledger.claimErr = errors.New("connection reset")
	transfers := &stubTransferClient{}
	ob := &stubOutbox{}
	orch := newTestOrchestrator(t, ledger, transfers, ob)

	_, err := orch.Settle(context.Background(), sampleSet(2), "pi_123")
	if err == nil {
		t.Fatalf("ledger failure must surface as an error")
	}
	if len(ob.events) != 0 {
		t.Fatalf("interrupted run must not emit events, got %d", len(ob.events))
	}
}

func TestSettleReplayReportsPriorFailure(t *testing.T) {
	ledger := newStubLedger()
	transfers := &stubTransferClient{}
	ob := &stubOutbox{}
	orch := newTestOrchestrator(t, ledger, transfers, ob)

	set := sampleSet(3)
	ledger.seed(set.OrderID, set.Instructions[1].CardID, enums.TransferStatusFailed)

	result, err := orch.Settle(context.Background(), set, "pi_123")
	if err != nil {
		t.Fatalf("replay settle: %v", err)
	}
	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.TotalPaidCents != 2*1700 {
		t.Fatalf("failed row must not inflate the paid total, got %d", result.TotalPaidCents)
	}
	if transfers.calls != 2 {
		t.Fatalf("failed row must not be retried, got %d calls", transfers.calls)
	}
	if events := ob.byType(enums.EventTransferFailed); len(events) != 0 {
		t.Fatalf("prior failure must not be re-announced, got %d events", len(events))
	}
	completed := ob.byType(enums.EventSettlementCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected one settlement_completed event, got %d", len(completed))
	}
	payload, ok := completed[0].Data.(payloads.SettlementCompletedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", completed[0].Data)
	}
	if payload.TransferCount != 2 || payload.FailedCount != 1 || payload.TotalPaidCents != 2*1700 {
		t.Fatalf("unexpected completion payload %+v", payload)
	}
}

func TestSettleFinishesAbandonedPendingClaim(t *testing.T) {
	ledger := newStubLedger()
	transfers := &stubTransferClient{}
	ob := &stubOutbox{}
	orch := newTestOrchestrator(t, ledger, transfers, ob)

	set := sampleSet(2)
	ledger.seed(set.OrderID, set.Instructions[0].CardID, enums.TransferStatusPending)

	result, err := orch.Settle(context.Background(), set, "pi_123")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Succeeded != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if transfers.calls != 2 {
		t.Fatalf("pending row must be completed, got %d calls", transfers.calls)
	}
	if status := ledger.statusOf(set.OrderID, set.Instructions[0].CardID); status != enums.TransferStatusSucceeded {
		t.Fatalf("resumed card ledger status %s", status)
	}
}

func TestSettleSkipsZeroAndMissingDestinations(t *testing.T) {
	ledger := newStubLedger()
	transfers := &stubTransferClient{}
	ob := &stubOutbox{}
	orch := newTestOrchestrator(t, ledger, transfers, ob)

	set := sampleSet(1)
	set.Instructions = append(set.Instructions,
		Instruction{CardID: uuid.New(), SellerUserID: uuid.New(), StripeAccountID: "", AmountCents: 500},
		Instruction{CardID: uuid.New(), SellerUserID: uuid.New(), StripeAccountID: "acct_x", AmountCents: 0},
	)

	result, err := orch.Settle(context.Background(), set, "pi_123")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.Succeeded != 1 || result.Skipped != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if transfers.calls != 1 {
		t.Fatalf("expected single transfer call, got %d", transfers.calls)
	}
}
