package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/metrics"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

var (
	errBaseURLRequired = errors.New("commerce base url is required")
	errLoggerRequired  = errors.New("commerce logger is required")
	errTokenRequired   = pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token required")
)

// API is the upstream surface consumed by the gateway services. The concrete
// Client satisfies it; tests substitute stubs.
type API interface {
	GetCart(ctx context.Context, token string) (*types.Cart, error)
	AddCartItem(ctx context.Context, token string, params AddCartItemParams) (*types.Cart, error)
	UpdateCartItem(ctx context.Context, token, itemID string, params UpdateCartItemParams) (*types.Cart, error)
	RemoveCartItem(ctx context.Context, token, itemID string) (*types.Cart, error)
	ClearCart(ctx context.Context, token string) error
	CreateOrder(ctx context.Context, token string, params CreateOrderParams) (*types.Order, error)
	ListOrders(ctx context.Context, token string, page, limit int) (*OrderList, error)
	GetOrder(ctx context.Context, token, orderID string) (*types.Order, error)
	CancelOrder(ctx context.Context, token, orderID string) (*types.Order, error)
	CreateStripeSession(ctx context.Context, token string, params StripeSessionParams) (*StripeSession, error)
	CreatePayPalOrder(ctx context.Context, token string, params PayPalOrderParams) (*PayPalOrder, error)
	CapturePayPalOrder(ctx context.Context, token string, params CapturePayPalParams) (*types.PaymentRecord, error)
	GetPaymentByOrder(ctx context.Context, token, orderID string) (*types.PaymentRecord, error)
	GetPaymentConfig(ctx context.Context, token string) (*types.PaymentConfig, error)
}

// Client talks to the remote commerce API with centralized auth, logging,
// retry, and error mapping. All durable state lives upstream; the client
// never caches responses.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *logger.Logger
	metrics        *metrics.CheckoutMetrics
	retryAttempts  uint64
	retryBaseDelay time.Duration
}

// NewClient validates the configuration and builds the upstream client.
func NewClient(cfg config.CommerceConfig, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.RetryBaseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:        base,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         logg,
		metrics:        m,
		retryAttempts:  uint64(attempts),
		retryBaseDelay: delay,
	}, nil
}

func (c *Client) GetCart(ctx context.Context, token string) (*types.Cart, error) {
	var cart types.Cart
	if err := c.getWithRetry(ctx, token, "get_cart", "/cart", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) AddCartItem(ctx context.Context, token string, params AddCartItemParams) (*types.Cart, error) {
	var cart types.Cart
	if err := c.do(ctx, token, "add_cart_item", http.MethodPost, "/cart/add", params, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, token, itemID string, params UpdateCartItemParams) (*types.Cart, error) {
	var cart types.Cart
	path := "/cart/item/" + url.PathEscape(itemID)
	if err := c.do(ctx, token, "update_cart_item", http.MethodPatch, path, params, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, token, itemID string) (*types.Cart, error) {
	var cart types.Cart
	path := "/cart/item/" + url.PathEscape(itemID)
	if err := c.do(ctx, token, "remove_cart_item", http.MethodDelete, path, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// ClearCart is idempotent upstream: clearing an already-empty cart succeeds.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, token, "clear_cart", http.MethodDelete, "/cart/clear", nil, nil)
}

func (c *Client) CreateOrder(ctx context.Context, token string, params CreateOrderParams) (*types.Order, error) {
	var order types.Order
	if err := c.do(ctx, token, "create_order", http.MethodPost, "/orders", params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrders(ctx context.Context, token string, page, limit int) (*OrderList, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/orders"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var list OrderList
	if err := c.getWithRetry(ctx, token, "list_orders", path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetOrder(ctx context.Context, token, orderID string) (*types.Order, error) {
	var order types.Order
	path := "/orders/" + url.PathEscape(orderID)
	if err := c.getWithRetry(ctx, token, "get_order", path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CancelOrder(ctx context.Context, token, orderID string) (*types.Order, error) {
	var order types.Order
	path := "/orders/" + url.PathEscape(orderID) + "/cancel"
	if err := c.do(ctx, token, "cancel_order", http.MethodDelete, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreateStripeSession(ctx context.Context, token string, params StripeSessionParams) (*StripeSession, error) {
	var session StripeSession
	if err := c.do(ctx, token, "create_stripe_session", http.MethodPost, "/payments/stripe/session", params, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) CreatePayPalOrder(ctx context.Context, token string, params PayPalOrderParams) (*PayPalOrder, error) {
	var order PayPalOrder
	if err := c.do(ctx, token, "create_paypal_order", http.MethodPost, "/payments/paypal/order", params, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CapturePayPalOrder(ctx context.Context, token string, params CapturePayPalParams) (*types.PaymentRecord, error) {
	var record types.PaymentRecord
	if err := c.do(ctx, token, "capture_paypal_order", http.MethodPost, "/payments/paypal/capture", params, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) GetPaymentByOrder(ctx context.Context, token, orderID string) (*types.PaymentRecord, error) {
	var record types.PaymentRecord
	path := "/payments/order/" + url.PathEscape(orderID)
	if err := c.getWithRetry(ctx, token, "get_payment_by_order", path, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) GetPaymentConfig(ctx context.Context, token string) (*types.PaymentConfig, error) {
	var cfg types.PaymentConfig
	if err := c.getWithRetry(ctx, token, "get_payment_config", "/payments/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getWithRetry wraps read-only calls in capped exponential backoff. Mutating
// calls never retry automatically: the caller owns idempotency for those.
func (c *Client) getWithRetry(ctx context.Context, token, op, path string, body, dest any) error {
	backoff := retry.WithMaxRetries(c.retryAttempts-1, retry.NewExponential(c.retryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, token, op, http.MethodGet, path, body, dest)
		if err == nil {
			return nil
		}
		if typed := pkgerrors.As(err); typed != nil && pkgerrors.MetadataFor(typed.Code()).Retryable {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, token, op, method, path string, body, dest any) error {
	if strings.TrimSpace(token) == "" {
		return errTokenRequired
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log(ctx, "request", op, map[string]any{"method": method, "path": path})
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveUpstream(op, time.Since(start))
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("commerce %s failed", op))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapErrorResponse(ctx, op, resp)
	}

	c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode})
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, fmt.Sprintf("decode commerce %s response", op))
	}
	return nil
}

func (c *Client) mapErrorResponse(ctx context.Context, op string, resp *http.Response) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &payload)

	message := payload.Error.Message
	if message == "" {
		message = payload.Message
	}
	if message == "" {
		message = fmt.Sprintf("commerce %s failed", op)
	}

	code := domainCodeForStatus(resp.StatusCode)
	c.log(ctx, "error", op, map[string]any{
		"status":        resp.StatusCode,
		"upstream_code": payload.Error.Code,
		"error":         message,
	})
	return pkgerrors.New(code, message).WithDetails(map[string]any{
		"operation":       op,
		"upstream_status": resp.StatusCode,
	})
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("commerce %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("commerce %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "card", "cvv", "email", "phone", "authorization"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeUpstream
	}
}
