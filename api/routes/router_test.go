package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	checkoutsvc "github.com/cardhaus/cardhaus-backend/internal/checkout"
	"github.com/cardhaus/cardhaus-backend/internal/fees"
	"github.com/cardhaus/cardhaus-backend/internal/notifications"
	"github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/internal/settlement"
	"github.com/cardhaus/cardhaus-backend/pkg/auth"
	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/db/models"
	"github.com/cardhaus/cardhaus-backend/pkg/enums"
	pkgerrors "github.com/cardhaus/cardhaus-backend/pkg/errors"
)

var routerJWT = config.JWTConfig{
	Secret:            "router-test-secret",
	Issuer:            "cardhaus-test",
	ExpirationMinutes: 15,
}

func testRouter(t *testing.T, ordersSvc orders.Service) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = routerJWT
	return NewRouter(
		cfg,
		nil,
		nil,
		nil,
		&routeCheckoutService{},
		ordersSvc,
		&routeNotificationsService{},
		&routeTransferLedger{},
		nil,
		nil,
		nil,
	)
}

func mintToken(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(routerJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestRouter_HealthLive(t *testing.T) {
	router := testRouter(t, &routeOrdersService{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cardhaus-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestRouter_ShippingQuoteIsPublic(t *testing.T) {
	router := testRouter(t, &routeOrdersService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shipping/quote?count=3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "standard_cents") {
		t.Fatalf("expected quote body, got %s", rec.Body.String())
	}
}

func TestRouter_OrdersRequireAuth(t *testing.T) {
	router := testRouter(t, &routeOrdersService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestRouter_BuyerListsOrders(t *testing.T) {
	buyerID := uuid.New()
	svc := &routeOrdersService{
		listForBuyer: []models.Order{
			{ID: uuid.New(), BuyerUserID: buyerID, Status: enums.OrderStatusPaid},
		},
	}
	router := testRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, buyerID, enums.UserRoleBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.listedBuyer != buyerID {
		t.Fatalf("expected listing scoped to token user, got %s", svc.listedBuyer)
	}
}

func TestRouter_AdminRoutesRejectBuyers(t *testing.T) {
	router := testRouter(t, &routeOrdersService{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, uuid.New(), enums.UserRoleBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer, got %d", rec.Code)
	}
}

func TestRouter_AdminListsOrders(t *testing.T) {
	svc := &routeOrdersService{}
	router := testRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, uuid.New(), enums.UserRoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !svc.listedAll {
		t.Fatalf("expected admin listing to reach the service")
	}
}

func TestRouter_WebhookRejectsUnsignedRequests(t *testing.T) {
	router := testRouter(t, &routeOrdersService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned webhook, got %d", rec.Code)
	}
}

type routeOrdersService struct {
	listForBuyer []models.Order
	listedBuyer  uuid.UUID
	listedAll    bool
}

func (s *routeOrdersService) MarkPaid(ctx context.Context, input orders.MarkPaidInput) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not wired")
}

func (s *routeOrdersService) MarkStored(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not wired")
}

func (s *routeOrdersService) MarkShipped(ctx context.Context, input orders.MarkShippedInput) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not wired")
}

func (s *routeOrdersService) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *routeOrdersService) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	s.listedBuyer = buyerID
	return s.listForBuyer, nil
}

func (s *routeOrdersService) ListStoredForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (s *routeOrdersService) ListAll(ctx context.Context, limit, offset int) ([]models.Order, error) {
	s.listedAll = true
	return nil, nil
}

type routeCheckoutService struct{}

func (s *routeCheckoutService) Start(ctx context.Context, buyerID uuid.UUID, input checkoutsvc.StartInput) (*checkoutsvc.StartResult, error) {
	return &checkoutsvc.StartResult{OrderID: uuid.New(), SessionURL: "https://stripe.test/session", Breakdown: fees.Breakdown{}}, nil
}

func (s *routeCheckoutService) StartShipping(ctx context.Context, buyerID uuid.UUID, input checkoutsvc.ShippingInput) (*checkoutsvc.StartResult, error) {
	return &checkoutsvc.StartResult{OrderID: uuid.New(), SessionURL: "https://stripe.test/session", Breakdown: fees.Breakdown{}}, nil
}

type routeNotificationsService struct{}

func (s *routeNotificationsService) List(ctx context.Context, params notifications.ListParams) ([]models.Notification, error) {
	return nil, nil
}

func (s *routeNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *routeNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type routeTransferLedger struct{}

func (s *routeTransferLedger) WithTx(tx *gorm.DB) settlement.Repository { return s }

func (s *routeTransferLedger) Claim(ctx context.Context, record *models.TransferRecord) (bool, enums.TransferStatus, error) {
	return false, enums.TransferStatusSucceeded, nil
}

func (s *routeTransferLedger) MarkSucceeded(ctx context.Context, orderID, cardID uuid.UUID, transferID string) error {
	return nil
}

func (s *routeTransferLedger) MarkFailed(ctx context.Context, orderID, cardID uuid.UUID, reason string) error {
	return nil
}

func (s *routeTransferLedger) CreateRetained(ctx context.Context, record *models.TransferRecord) error {
	return nil
}

func (s *routeTransferLedger) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransferRecord, error) {
	return nil, nil
}
