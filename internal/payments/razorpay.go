package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
)

// GatewayLogger defines the logging contract for gateway operations.
type GatewayLogger func(ctx context.Context, event string, fields map[string]any)

type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayPaymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayClients struct {
	orders   razorpayOrderAPI
	payments razorpayPaymentAPI
}

// RazorpayConfig configures the Razorpay gateway adapter.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	Logger    GatewayLogger
	Clock     func() time.Time
	Clients   *razorpayClients
}

// RazorpayGateway implements the Gateway interface against the Razorpay API.
type RazorpayGateway struct {
	api    razorpayClients
	clock  func() time.Time
	logger GatewayLogger
}

// NewRazorpayGateway constructs a Razorpay-backed Gateway.
func NewRazorpayGateway(cfg RazorpayConfig) (*RazorpayGateway, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if (keyID == "" || keySecret == "") && cfg.Clients == nil {
		return nil, errors.New("razorpay: key id and secret are required")
	}

	var clients razorpayClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		rc := razorpay.NewClient(keyID, keySecret)
		clients = razorpayClients{
			orders:   rc.Order,
			payments: rc.Payment,
		}
	}
	if clients.orders == nil || clients.payments == nil {
		return nil, errors.New("razorpay: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &RazorpayGateway{
		api: clients,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateOrder opens a gateway order for the given amount.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (GatewayOrder, error) {
	if g == nil {
		return GatewayOrder{}, errors.New("razorpay: gateway is nil")
	}
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}
	if req.AmountMinorUnits <= 0 {
		return GatewayOrder{}, errors.New("razorpay: amount must be positive")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}

	data := map[string]interface{}{
		"amount":   req.AmountMinorUnits,
		"currency": currency,
	}
	if receipt := strings.TrimSpace(req.Receipt); receipt != "" {
		data["receipt"] = receipt
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			if key := strings.TrimSpace(k); key != "" {
				notes[key] = v
			}
		}
		data["notes"] = notes
	}

	body, err := g.api.orders.Create(data, nil)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("%w: create order: %v", ErrGatewayUnavailable, err)
	}

	order := GatewayOrder{
		ID:        stringField(body, "id"),
		Amount:    int64Field(body, "amount"),
		Currency:  stringField(body, "currency"),
		Receipt:   stringField(body, "receipt"),
		Status:    normaliseGatewayStatus(stringField(body, "status")),
		CreatedAt: g.clock(),
	}
	if order.ID == "" {
		return GatewayOrder{}, fmt.Errorf("%w: create order: response missing id", ErrGatewayUnavailable)
	}
	if ts := int64Field(body, "created_at"); ts > 0 {
		order.CreatedAt = time.Unix(ts, 0).UTC()
	}

	g.logger(ctx, "payments.razorpay.order.created", map[string]any{
		"gatewayOrderId": order.ID,
		"amount":         order.Amount,
		"currency":       order.Currency,
	})

	return order, nil
}

// FetchPayment retrieves payment details for reconciliation.
func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (GatewayPayment, error) {
	if g == nil {
		return GatewayPayment{}, errors.New("razorpay: gateway is nil")
	}
	if err := ctx.Err(); err != nil {
		return GatewayPayment{}, err
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return GatewayPayment{}, errors.New("razorpay: payment id is required")
	}

	body, err := g.api.payments.Fetch(paymentID, nil, nil)
	if err != nil {
		return GatewayPayment{}, fmt.Errorf("%w: fetch payment: %v", ErrGatewayUnavailable, err)
	}

	return GatewayPayment{
		ID:       stringField(body, "id"),
		OrderID:  stringField(body, "order_id"),
		Status:   normaliseGatewayStatus(stringField(body, "status")),
		Amount:   int64Field(body, "amount"),
		Currency: stringField(body, "currency"),
		Method:   stringField(body, "method"),
		Email:    stringField(body, "email"),
		Contact:  stringField(body, "contact"),
	}, nil
}

func normaliseGatewayStatus(value string) GatewayStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "created", "attempted":
		return GatewayStatusCreated
	case "authorized":
		return GatewayStatusAuthorized
	case "captured", "paid":
		return GatewayStatusCaptured
	case "refunded":
		return GatewayStatusRefunded
	case "failed":
		return GatewayStatusFailed
	default:
		return GatewayStatus(strings.ToLower(strings.TrimSpace(value)))
	}
}

func stringField(body map[string]interface{}, key string) string {
	if body == nil {
		return ""
	}
	if v, ok := body[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func int64Field(body map[string]interface{}, key string) int64 {
	if body == nil {
		return 0
	}
	switch v := body[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
