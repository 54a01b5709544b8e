package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/internal/cards"
	"github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/internal/sellers"
	"github.com/cardhaus/cardhaus-backend/internal/settlement"
	"github.com/cardhaus/cardhaus-backend/internal/shipping"
	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubURLs struct{}

func (stubURLs) SuccessURL() string { return "https://cardhaus.test/checkout/success" }
func (stubURLs) CancelURL() string  { return "https://cardhaus.test/checkout/cancel" }

type stubOrdersRepo struct {
	orders     map[uuid.UUID]*models.Order
	sessionIDs map[uuid.UUID]string
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{
		orders:     make(map[uuid.UUID]*models.Order),
		sessionIDs: make(map[uuid.UUID]string),
	}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrdersRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, id := range ids {
		if order, ok := s.orders[id]; ok {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubOrdersRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) FindByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) FindStoredByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, fields map[string]any) error {
	return nil
}

func (s *stubOrdersRepo) SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	s.sessionIDs[id] = sessionID
	return nil
}

type stubCardsRepo struct {
	cards map[uuid.UUID]models.Card
}

func (s *stubCardsRepo) WithTx(tx *gorm.DB) cards.Repository { return s }

func (s *stubCardsRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Card, error) {
	var out []models.Card
	for _, id := range ids {
		if card, ok := s.cards[id]; ok {
			out = append(out, card)
		}
	}
	return out, nil
}

func (s *stubCardsRepo) MarkSold(ctx context.Context, ids []uuid.UUID, soldAt time.Time) (int64, error) {
	return 0, nil
}

type stubSellersRepo struct {
	profiles map[uuid.UUID]models.SellerProfile
}

func (s *stubSellersRepo) WithTx(tx *gorm.DB) sellers.Repository { return s }

func (s *stubSellersRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.SellerProfile, error) {
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &profile, nil
}

func (s *stubSellersRepo) FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.SellerProfile, error) {
	out := make(map[uuid.UUID]models.SellerProfile)
	for _, id := range userIDs {
		if profile, ok := s.profiles[id]; ok {
			out[id] = profile
		}
	}
	return out, nil
}

type stubLedger struct {
	retained []models.TransferRecord
}

func (s *stubLedger) WithTx(tx *gorm.DB) settlement.Repository { return s }

func (s *stubLedger) Claim(ctx context.Context, record *models.TransferRecord) (bool, enums.TransferStatus, error) {
	return true, "", nil
}

func (s *stubLedger) MarkSucceeded(ctx context.Context, orderID, cardID uuid.UUID, transferID string) error {
	return nil
}

func (s *stubLedger) MarkFailed(ctx context.Context, orderID, cardID uuid.UUID, reason string) error {
	return nil
}

func (s *stubLedger) CreateRetained(ctx context.Context, record *models.TransferRecord) error {
	s.retained = append(s.retained, *record)
	return nil
}

func (s *stubLedger) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransferRecord, error) {
	return nil, nil
}

type stubSessionClient struct {
	lastParams *stripe.CheckoutSessionParams
	err        error
}

func (s *stubSessionClient) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.lastParams = params
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func sellerWithAccount(userID uuid.UUID, account string) models.SellerProfile {
	return models.SellerProfile{
		ID:              uuid.New(),
		UserID:          userID,
		DisplayName:     "seller",
		Email:           "seller@cardhaus.test",
		StripeAccountID: &account,
		PayoutsEnabled:  true,
	}
}

func liveCard(sellerID uuid.UUID, priceCents int) models.Card {
	return models.Card{
		ID:           uuid.New(),
		SellerUserID: sellerID,
		ExternalID:   "ext-1",
		Title:        "Test Card",
		PriceCents:   priceCents,
		Status:       enums.CardStatusLive,
	}
}

type fixture struct {
	svc      Service
	orders   *stubOrdersRepo
	cards    *stubCardsRepo
	sellers  *stubSellersRepo
	ledger   *stubLedger
	sessions *stubSessionClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   newStubOrdersRepo(),
		cards:    &stubCardsRepo{cards: map[uuid.UUID]models.Card{}},
		sellers:  &stubSellersRepo{profiles: map[uuid.UUID]models.SellerProfile{}},
		ledger:   &stubLedger{},
		sessions: &stubSessionClient{},
	}
	svc, err := NewService(
		f.orders,
		f.cards,
		f.sellers,
		f.ledger,
		f.sessions,
		stubURLs{},
		shipping.NewCalculator(config.ShippingConfig{FlatRateCents: 350}),
		stubTxRunner{},
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func TestStartCreatesOrderAndSession(t *testing.T) {
	f := newFixture(t)
	sellerID := uuid.New()
	card := liveCard(sellerID, 2000)
	f.cards.cards[card.ID] = card
	f.sellers.profiles[sellerID] = sellerWithAccount(sellerID, "acct_123")

	result, err := f.svc.Start(context.Background(), uuid.New(), StartInput{
		CardIDs:        []uuid.UUID{card.ID},
		ShippingMethod: enums.ShippingMethodShipNow,
		Address:        "1 Main St",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if result.SessionURL == "" {
		t.Fatalf("missing session url")
	}
	if result.Breakdown.TotalCents != 2350 {
		t.Fatalf("expected total 2350, got %d", result.Breakdown.TotalCents)
	}

	order := f.orders.orders[result.OrderID]
	if order == nil || order.Status != enums.OrderStatusPending {
		t.Fatalf("order not created pending: %+v", order)
	}
	if f.orders.sessionIDs[result.OrderID] != "cs_test_1" {
		t.Fatalf("session id not stored")
	}

	meta := f.sessions.lastParams.Metadata
	if meta[settlement.MetaOrderID] != result.OrderID.String() {
		t.Fatalf("metadata order_id missing: %v", meta)
	}
	if meta["card_0_stripe_account"] != "acct_123" || meta["card_0_amount"] != "1700" {
		t.Fatalf("split metadata wrong: %v", meta)
	}
	if pi := f.sessions.lastParams.PaymentIntentData; pi.Metadata[settlement.MetaOrderID] != result.OrderID.String() {
		t.Fatalf("payment intent metadata missing")
	}
	// card + shipping line items
	if got := len(f.sessions.lastParams.LineItems); got != 2 {
		t.Fatalf("expected 2 line items, got %d", got)
	}
	if len(f.ledger.retained) != 0 {
		t.Fatalf("unexpected retained records")
	}
}

func TestStartExcludesIneligibleSellersButStillCharges(t *testing.T) {
	f := newFixture(t)
	eligible := uuid.New()
	ineligible := uuid.New()
	cardA := liveCard(eligible, 2000)
	cardB := liveCard(ineligible, 1000)
	f.cards.cards[cardA.ID] = cardA
	f.cards.cards[cardB.ID] = cardB
	f.sellers.profiles[eligible] = sellerWithAccount(eligible, "acct_ok")
	// ineligible seller has no profile at all

	result, err := f.svc.Start(context.Background(), uuid.New(), StartInput{
		CardIDs:        []uuid.UUID{cardA.ID, cardB.ID},
		ShippingMethod: enums.ShippingMethodStore,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	meta := f.sessions.lastParams.Metadata
	if meta["card_0_stripe_account"] != "acct_ok" {
		t.Fatalf("eligible instruction missing: %v", meta)
	}
	if _, ok := meta["card_1_id"]; ok {
		t.Fatalf("ineligible seller must not appear in instructions: %v", meta)
	}
	// both cards are still charged for; store has no shipping line
	if got := len(f.sessions.lastParams.LineItems); got != 2 {
		t.Fatalf("expected 2 line items, got %d", got)
	}
	if len(f.ledger.retained) != 1 {
		t.Fatalf("expected 1 retained record, got %d", len(f.ledger.retained))
	}
	if f.ledger.retained[0].AmountCents != 850 {
		t.Fatalf("retained amount wrong: %d", f.ledger.retained[0].AmountCents)
	}
	if f.ledger.retained[0].OrderID != result.OrderID {
		t.Fatalf("retained record not linked to order")
	}
}

func TestStartRejectsNonLiveCard(t *testing.T) {
	f := newFixture(t)
	card := liveCard(uuid.New(), 2000)
	card.Status = enums.CardStatusSold
	f.cards.cards[card.ID] = card

	_, err := f.svc.Start(context.Background(), uuid.New(), StartInput{
		CardIDs:        []uuid.UUID{card.ID},
		ShippingMethod: enums.ShippingMethodStore,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestStartRejectsShipNowWithoutAddress(t *testing.T) {
	f := newFixture(t)
	card := liveCard(uuid.New(), 2000)
	f.cards.cards[card.ID] = card

	_, err := f.svc.Start(context.Background(), uuid.New(), StartInput{
		CardIDs:        []uuid.UUID{card.ID},
		ShippingMethod: enums.ShippingMethodShipNow,
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartSessionFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	f.sessions.err = errors.New("stripe down")
	sellerID := uuid.New()
	card := liveCard(sellerID, 2000)
	f.cards.cards[card.ID] = card
	f.sellers.profiles[sellerID] = sellerWithAccount(sellerID, "acct_123")

	_, err := f.svc.Start(context.Background(), uuid.New(), StartInput{
		CardIDs:        []uuid.UUID{card.ID},
		ShippingMethod: enums.ShippingMethodStore,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(f.orders.orders) != 1 {
		t.Fatalf("order row must survive session failure")
	}
	for _, order := range f.orders.orders {
		if order.Status != enums.OrderStatusPending {
			t.Fatalf("order must stay pending, got %s", order.Status)
		}
	}
	if len(f.orders.sessionIDs) != 0 {
		t.Fatalf("no session id should be stored")
	}
}

func TestStartShippingPricesByTier(t *testing.T) {
	f := newFixture(t)
	buyerID := uuid.New()
	var orderIDs []uuid.UUID
	// 7 cards across two stored orders -> standard tier 500
	for _, count := range []int{3, 4} {
		order := &models.Order{
			ID:             uuid.New(),
			BuyerUserID:    buyerID,
			Type:           enums.OrderTypePurchase,
			Status:         enums.OrderStatusStored,
			ShippingMethod: enums.ShippingMethodStore,
		}
		for i := 0; i < count; i++ {
			order.Items = append(order.Items, models.OrderItem{CardID: uuid.New(), PriceCents: 100})
		}
		f.orders.orders[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	result, err := f.svc.StartShipping(context.Background(), buyerID, ShippingInput{
		OrderIDs: orderIDs,
		Speed:    enums.ShippingSpeedStandard,
		Address:  "1 Main St",
	})
	if err != nil {
		t.Fatalf("start shipping: %v", err)
	}
	if result.Breakdown.ShippingCents != 500 {
		t.Fatalf("expected 500 cents shipping, got %d", result.Breakdown.ShippingCents)
	}

	created := f.orders.orders[result.OrderID]
	if created.Type != enums.OrderTypeShipping || created.TotalCents != 500 {
		t.Fatalf("shipping order wrong: %+v", created)
	}
	if len(created.RelatedOrderIDs) != 2 {
		t.Fatalf("related order ids not recorded")
	}

	meta := f.sessions.lastParams.Metadata
	if meta[settlement.MetaShippingOrderID] != result.OrderID.String() {
		t.Fatalf("shipping_order_id metadata missing: %v", meta)
	}
	if _, ok := meta[settlement.MetaOrderID]; ok {
		t.Fatalf("shipping session must not carry order_id splits")
	}
}

func TestStartShippingRejectsUnstoredOrders(t *testing.T) {
	f := newFixture(t)
	buyerID := uuid.New()
	order := &models.Order{
		ID:             uuid.New(),
		BuyerUserID:    buyerID,
		Type:           enums.OrderTypePurchase,
		Status:         enums.OrderStatusPaid,
		ShippingMethod: enums.ShippingMethodStore,
		Items:          []models.OrderItem{{CardID: uuid.New()}},
	}
	f.orders.orders[order.ID] = order

	_, err := f.svc.StartShipping(context.Background(), buyerID, ShippingInput{
		OrderIDs: []uuid.UUID{order.ID},
		Speed:    enums.ShippingSpeedEconomy,
		Address:  "1 Main St",
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestStartShippingRejectsForeignOrders(t *testing.T) {
	f := newFixture(t)
	order := &models.Order{
		ID:             uuid.New(),
		BuyerUserID:    uuid.New(),
		Type:           enums.OrderTypePurchase,
		Status:         enums.OrderStatusStored,
		ShippingMethod: enums.ShippingMethodStore,
		Items:          []models.OrderItem{{CardID: uuid.New()}},
	}
	f.orders.orders[order.ID] = order

	_, err := f.svc.StartShipping(context.Background(), uuid.New(), ShippingInput{
		OrderIDs: []uuid.UUID{order.ID},
		Speed:    enums.ShippingSpeedEconomy,
		Address:  "1 Main St",
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
