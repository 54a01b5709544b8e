package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/cardhaus/cardhaus-backend/internal/cards"
	"github.com/cardhaus/cardhaus-backend/internal/fees"
	"github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/internal/sellers"
	"github.com/cardhaus/cardhaus-backend/internal/settlement"
	"github.com/cardhaus/cardhaus-backend/internal/shipping"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// sessionURLs supplies the hosted-checkout redirect targets.
type sessionURLs interface {
	SuccessURL() string
	CancelURL() string
}

// StartInput is a buyer's purchase checkout request.
type StartInput struct {
	CardIDs        []uuid.UUID
	ShippingMethod enums.ShippingMethod
	ShippingSpeed  *enums.ShippingSpeed
	Address        string
}

// ShippingInput is a buyer's request to ship stored orders together.
type ShippingInput struct {
	OrderIDs []uuid.UUID
	Speed    enums.ShippingSpeed
	Address  string
}

// StartResult carries what the client needs to redirect into Stripe.
type StartResult struct {
	OrderID    uuid.UUID
	SessionURL string
	Breakdown  fees.Breakdown
}

// Service builds orders and Stripe Checkout sessions.
type Service interface {
	Start(ctx context.Context, buyerID uuid.UUID, input StartInput) (*StartResult, error)
	StartShipping(ctx context.Context, buyerID uuid.UUID, input ShippingInput) (*StartResult, error)
}

type service struct {
	orders   orders.Repository
	cards    cards.Repository
	sellers  sellers.Repository
	ledger   settlement.Repository
	sessions StripeSessionClient
	urls     sessionURLs
	shipCalc *shipping.Calculator
	tx       txRunner
	logg     *logger.Logger
}

// NewService builds a checkout service with the required dependencies.
func NewService(
	ordersRepo orders.Repository,
	cardsRepo cards.Repository,
	sellersRepo sellers.Repository,
	ledger settlement.Repository,
	sessions StripeSessionClient,
	urls sessionURLs,
	shipCalc *shipping.Calculator,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cardsRepo == nil {
		return nil, fmt.Errorf("cards repository required")
	}
	if sellersRepo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("transfer ledger required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("stripe session client required")
	}
	if urls == nil {
		return nil, fmt.Errorf("session urls required")
	}
	if shipCalc == nil {
		return nil, fmt.Errorf("shipping calculator required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		orders:   ordersRepo,
		cards:    cardsRepo,
		sellers:  sellersRepo,
		ledger:   ledger,
		sessions: sessions,
		urls:     urls,
		shipCalc: shipCalc,
		tx:       tx,
		logg:     logg,
	}, nil
}

// Start creates a pending purchase order and a Stripe Checkout session for it.
// The order row is committed before the session exists, so a webhook can never
// reference an order we don't know about.
func (s *service) Start(ctx context.Context, buyerID uuid.UUID, input StartInput) (*StartResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.CardIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one card required")
	}
	switch input.ShippingMethod {
	case enums.ShippingMethodShipNow, enums.ShippingMethodStore:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping method must be ship_now or store")
	}
	if input.ShippingMethod == enums.ShippingMethodShipNow && strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}

	loaded, err := s.cards.FindByIDs(ctx, input.CardIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cards")
	}
	byID := make(map[uuid.UUID]models.Card, len(loaded))
	for _, card := range loaded {
		byID[card.ID] = card
	}

	feeItems := make([]fees.Item, 0, len(input.CardIDs))
	sellerIDs := make([]uuid.UUID, 0, len(input.CardIDs))
	for _, cardID := range input.CardIDs {
		card, ok := byID[cardID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("card %s not found", cardID))
		}
		if card.Status != enums.CardStatusLive {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("card %s is not for sale", cardID))
		}
		if card.PriceCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("card %s has no price", cardID))
		}
		feeItems = append(feeItems, fees.Item{CardID: card.ID, PriceCents: card.PriceCents})
		sellerIDs = append(sellerIDs, card.SellerUserID)
	}

	shippingCents := s.shipCalc.CostFor(input.ShippingMethod)
	breakdown := fees.Compute(feeItems, shippingCents)

	profiles, err := s.sellers.FindByUserIDs(ctx, sellerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profiles")
	}

	order := &models.Order{
		BuyerUserID:     buyerID,
		Type:            enums.OrderTypePurchase,
		Status:          enums.OrderStatusPending,
		SubtotalCents:   breakdown.SubtotalCents,
		ShippingCents:   breakdown.ShippingCents,
		TotalCents:      breakdown.TotalCents,
		ShippingMethod:  input.ShippingMethod,
		ShippingSpeed:   input.ShippingSpeed,
		ShippingAddress: strings.TrimSpace(input.Address),
	}
	for _, cardID := range input.CardIDs {
		card := byID[cardID]
		order.Items = append(order.Items, models.OrderItem{
			CardID:     card.ID,
			ExternalID: card.ExternalID,
			Title:      card.Title,
			ImageURL:   card.ImageURL,
			PriceCents: card.PriceCents,
		})
	}

	// Sellers without a payable account are still charged for; their share is
	// retained on the platform balance and surfaced in the settlement report.
	set := settlement.InstructionSet{
		ShippingMethod:   input.ShippingMethod,
		SubtotalCents:    breakdown.SubtotalCents,
		ShippingCents:    breakdown.ShippingCents,
		PlatformFeeCents: breakdown.PlatformFeeCents,
	}
	var retained []models.TransferRecord
	for _, payout := range breakdown.Payouts {
		card := byID[payout.CardID]
		profile, ok := profiles[card.SellerUserID]
		if ok && profile.PayoutEligible() {
			set.Instructions = append(set.Instructions, settlement.Instruction{
				CardID:          card.ID,
				SellerUserID:    card.SellerUserID,
				StripeAccountID: *profile.StripeAccountID,
				AmountCents:     payout.PayoutCents,
			})
			continue
		}
		sellerID := card.SellerUserID
		retained = append(retained, models.TransferRecord{
			CardID:       card.ID,
			SellerUserID: &sellerID,
			AmountCents:  payout.PayoutCents,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		ledger := s.ledger.WithTx(tx)
		for i := range retained {
			retained[i].OrderID = order.ID
			if err := ledger.CreateRetained(ctx, &retained[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record retained funds")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	set.OrderID = order.ID
	meta, err := set.EncodeMetadata()
	if err != nil {
		return nil, err
	}

	params := s.baseSessionParams(meta, order.ID)
	for _, item := range order.Items {
		params.LineItems = append(params.LineItems, lineItem(item.Title, int64(item.PriceCents)))
	}
	if breakdown.ShippingCents > 0 {
		params.LineItems = append(params.LineItems, lineItem("Shipping", int64(breakdown.ShippingCents)))
	}

	created, err := s.sessions.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if err := s.orders.SetSessionID(ctx, order.ID, created.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session id")
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(logCtx, "checkout session created")
	}
	return &StartResult{OrderID: order.ID, SessionURL: created.URL, Breakdown: breakdown}, nil
}

// StartShipping builds a shipping-only order that consolidates stored
// purchases into one shipment, priced by the card-count tier table.
func (s *service) StartShipping(ctx context.Context, buyerID uuid.UUID, input ShippingInput) (*StartResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.OrderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one stored order required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if !input.Speed.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping speed")
	}

	stored, err := s.orders.FindByIDs(ctx, input.OrderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stored orders")
	}
	if len(stored) != len(input.OrderIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more orders not found")
	}

	cardCount := 0
	for _, order := range stored {
		if order.BuyerUserID != buyerID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more orders not found")
		}
		if order.Type != enums.OrderTypePurchase || order.Status != enums.OrderStatusStored {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order %s is not in vault storage", order.ID))
		}
		cardCount += len(order.Items)
	}
	if cardCount == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected orders hold no cards")
	}

	rate, err := shipping.RateFor(cardCount, input.Speed)
	if err != nil {
		return nil, err
	}

	speed := input.Speed
	order := &models.Order{
		BuyerUserID:     buyerID,
		Type:            enums.OrderTypeShipping,
		Status:          enums.OrderStatusPending,
		SubtotalCents:   0,
		ShippingCents:   rate,
		TotalCents:      rate,
		ShippingMethod:  enums.ShippingMethodConsolidated,
		ShippingSpeed:   &speed,
		ShippingAddress: strings.TrimSpace(input.Address),
		RelatedOrderIDs: input.OrderIDs,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	meta := map[string]string{
		settlement.MetaShippingOrderID: order.ID.String(),
		settlement.MetaShippingMethod:  string(enums.ShippingMethodConsolidated),
		settlement.MetaShippingCents:   fmt.Sprintf("%d", rate),
	}
	params := s.baseSessionParams(meta, order.ID)
	label := fmt.Sprintf("Consolidated shipping (%d cards, %s)", cardCount, speed)
	params.LineItems = append(params.LineItems, lineItem(label, int64(rate)))

	created, err := s.sessions.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if err := s.orders.SetSessionID(ctx, order.ID, created.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session id")
	}

	return &StartResult{
		OrderID:    order.ID,
		SessionURL: created.URL,
		Breakdown:  fees.Breakdown{ShippingCents: rate, TotalCents: rate},
	}, nil
}

func (s *service) baseSessionParams(meta map[string]string, orderID uuid.UUID) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.urls.SuccessURL()),
		CancelURL:  stripe.String(s.urls.CancelURL()),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferGroup: stripe.String(orderID.String()),
			Metadata:      make(map[string]string, len(meta)),
		},
	}
	// metadata rides on both the session and the payment intent so either
	// webhook event type can rebuild the instruction set on its own
	for key, value := range meta {
		params.AddMetadata(key, value)
		params.PaymentIntentData.Metadata[key] = value
	}
	return params
}

func lineItem(name string, amountCents int64) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(string(stripe.CurrencyUSD)),
			UnitAmount: stripe.Int64(amountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}
