package payments

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/redis"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

type stubAPI struct {
	commerce.API

	stripeSession *commerce.StripeSession
	stripeErr     error
	paypalOrder   *commerce.PayPalOrder
	paypalErr     error
	record        *types.PaymentRecord
	cfg           *types.PaymentConfig
	cfgErr        error
}

func (s *stubAPI) CreateStripeSession(ctx context.Context, token string, params commerce.StripeSessionParams) (*commerce.StripeSession, error) {
	if s.stripeErr != nil {
		return nil, s.stripeErr
	}
	return s.stripeSession, nil
}

func (s *stubAPI) CreatePayPalOrder(ctx context.Context, token string, params commerce.PayPalOrderParams) (*commerce.PayPalOrder, error) {
	if s.paypalErr != nil {
		return nil, s.paypalErr
	}
	return s.paypalOrder, nil
}

func (s *stubAPI) GetPaymentByOrder(ctx context.Context, token, orderID string) (*types.PaymentRecord, error) {
	return s.record, nil
}

func (s *stubAPI) GetPaymentConfig(ctx context.Context, token string) (*types.PaymentConfig, error) {
	if s.cfgErr != nil {
		return nil, s.cfgErr
	}
	return s.cfg, nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}}
}

func (m *memStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memStore) SessionKey(sessionID, field string) string {
	return "sfg:checkout_session:" + sessionID + ":" + field
}

func (m *memStore) GuardKey(sessionID, effect string) string {
	return "sfg:guard:" + sessionID + ":" + effect
}

type mintedOrders struct {
	ids []string
	err error
}

func (m *mintedOrders) CreateOrder(ctx context.Context, referenceID, currency, amount string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	id := "PP-" + referenceID
	m.ids = append(m.ids, id)
	return id, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func checkoutCfg() config.CheckoutConfig {
	return config.CheckoutConfig{
		SuccessURL: "https://shop.example/checkout/success",
		CancelURL:  "https://shop.example/checkout/cancel",
		SessionTTL: time.Hour,
		Currency:   "USD",
	}
}

func newTestService(t *testing.T, api commerce.API, minter ProviderOrderMinter, store redis.SessionStore) Service {
	t.Helper()
	svc, err := NewService(api, minter, store, checkoutCfg(),
		config.StripeConfig{PublishableKey: "pk_test_x"},
		config.PayPalConfig{ClientID: "pp-client"},
		nil, testLogger(t))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func sessionInput(method types.PaymentMethod) SessionInput {
	return SessionInput{
		SessionID: "sess-1",
		OrderID:   "order-1",
		Method:    method,
		Amount:    decimal.NewFromFloat(75.98),
	}
}

func TestCreateSessionCardReturnsHostedURL(t *testing.T) {
	api := &stubAPI{stripeSession: &commerce.StripeSession{CheckoutSessionURL: "https://checkout.stripe.com/pay/cs_123"}}
	svc := newTestService(t, api, nil, newMemStore())

	session, err := svc.CreateSession(context.Background(), "tok", sessionInput(types.PaymentMethodCard))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.CheckoutSessionURL != "https://checkout.stripe.com/pay/cs_123" {
		t.Fatalf("unexpected url %q", session.CheckoutSessionURL)
	}
	if session.DirectCreation {
		t.Fatal("card session must never enter direct creation")
	}
}

func TestCreateSessionCardUpstreamFailureHalts(t *testing.T) {
	api := &stubAPI{stripeErr: pkgerrors.New(pkgerrors.CodeUpstream, "commerce api unreachable")}
	svc := newTestService(t, api, nil, newMemStore())

	_, err := svc.CreateSession(context.Background(), "tok", sessionInput(types.PaymentMethodCard))
	if !pkgerrors.Is(err, pkgerrors.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestCreateSessionPayPalHappyPath(t *testing.T) {
	api := &stubAPI{paypalOrder: &commerce.PayPalOrder{PayPalOrderID: "PP-UP-1"}}
	store := newMemStore()
	svc := newTestService(t, api, nil, store)

	session, err := svc.CreateSession(context.Background(), "tok", sessionInput(types.PaymentMethodPayPal))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ProviderOrderID != "PP-UP-1" || session.DirectCreation {
		t.Fatalf("unexpected session %+v", session)
	}
	if len(store.data) != 0 {
		t.Fatal("happy path must not park a direct creation record")
	}
}

func TestCreateSessionPayPalDegradedMintsDirectOrder(t *testing.T) {
	api := &stubAPI{paypalErr: pkgerrors.New(pkgerrors.CodeUpstream, "commerce api unreachable")}
	minter := &mintedOrders{}
	store := newMemStore()
	svc := newTestService(t, api, minter, store)

	session, err := svc.CreateSession(context.Background(), "tok", sessionInput(types.PaymentMethodPayPal))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !session.DirectCreation {
		t.Fatal("expected direct creation flag")
	}
	if session.ProviderOrderID != "PP-order-1" {
		t.Fatalf("unexpected provider order id %q", session.ProviderOrderID)
	}

	record, err := svc.LookupDirect(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LookupDirect: %v", err)
	}
	if record == nil || record.ProviderOrderID != "PP-order-1" || record.OrderID != "order-1" {
		t.Fatalf("unexpected parked record %+v", record)
	}
	if record.Synthesized {
		t.Fatal("order minted against the provider must not be marked synthesized")
	}
}

func TestCreateSessionPayPalDegradedWithoutMinterSynthesizes(t *testing.T) {
	api := &stubAPI{paypalErr: pkgerrors.New(pkgerrors.CodeUpstream, "commerce api unreachable")}
	svc := newTestService(t, api, nil, newMemStore())

	session, err := svc.CreateSession(context.Background(), "tok", sessionInput(types.PaymentMethodPayPal))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !strings.HasPrefix(session.ProviderOrderID, "local-") {
		t.Fatalf("expected synthesized placeholder, got %q", session.ProviderOrderID)
	}

	record, err := svc.LookupDirect(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LookupDirect: %v", err)
	}
	if record == nil || !record.Synthesized {
		t.Fatalf("expected synthesized record, got %+v", record)
	}
}

func TestCreateSessionPayPalProviderErrorDoesNotDegrade(t *testing.T) {
	api := &stubAPI{paypalErr: pkgerrors.New(pkgerrors.CodeProvider, "paypal rejected the order")}
	minter := &mintedOrders{}
	svc := newTestService(t, api, minter, newMemStore())

	_, err := svc.CreateSession(context.Background(), "tok", sessionInput(types.PaymentMethodPayPal))
	if !pkgerrors.Is(err, pkgerrors.CodeProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(minter.ids) != 0 {
		t.Fatal("provider rejection must not trigger direct creation")
	}
}

func TestCreateSessionRejectsUnknownMethod(t *testing.T) {
	svc := newTestService(t, &stubAPI{}, nil, newMemStore())

	input := sessionInput("wire_transfer")
	_, err := svc.CreateSession(context.Background(), "tok", input)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLookupDirectMissingSessionIsNil(t *testing.T) {
	svc := newTestService(t, &stubAPI{}, nil, newMemStore())

	record, err := svc.LookupDirect(context.Background(), "sess-unknown")
	if err != nil {
		t.Fatalf("LookupDirect: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
}

func TestConfigFallsBackWhenUpstreamDown(t *testing.T) {
	api := &stubAPI{cfgErr: pkgerrors.New(pkgerrors.CodeUpstream, "commerce api unreachable")}
	svc := newTestService(t, api, nil, newMemStore())

	cfg, err := svc.Config(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if !cfg.StripeEnabled || cfg.StripePublishableKey != "pk_test_x" {
		t.Fatalf("expected local stripe fallback, got %+v", cfg)
	}
	if !cfg.PayPalEnabled || cfg.PayPalClientID != "pp-client" {
		t.Fatalf("expected local paypal fallback, got %+v", cfg)
	}
	if cfg.Currency != "USD" {
		t.Fatalf("unexpected currency %q", cfg.Currency)
	}
}

func TestConfigPrefersUpstream(t *testing.T) {
	api := &stubAPI{cfg: &types.PaymentConfig{StripeEnabled: true, Currency: "EUR"}}
	svc := newTestService(t, api, nil, newMemStore())

	cfg, err := svc.Config(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg.Currency != "EUR" {
		t.Fatalf("expected upstream config, got %+v", cfg)
	}
}
