package payments

import (
	"context"
	"errors"
	"time"
)

// GatewayStatus enumerates the normalised payment states reported by the gateway.
type GatewayStatus string

const (
	// GatewayStatusCreated indicates the gateway order exists but no payment was attempted.
	GatewayStatusCreated GatewayStatus = "created"
	// GatewayStatusAuthorized indicates the payment is authorised but not yet captured.
	GatewayStatusAuthorized GatewayStatus = "authorized"
	// GatewayStatusCaptured indicates the gateway captured the funds.
	GatewayStatusCaptured GatewayStatus = "captured"
	// GatewayStatusFailed indicates the payment attempt failed.
	GatewayStatusFailed GatewayStatus = "failed"
	// GatewayStatusRefunded indicates the funds were returned.
	GatewayStatusRefunded GatewayStatus = "refunded"
)

// ErrGatewayUnavailable wraps transport or API failures from the gateway.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// CreateOrderRequest captures the payload for opening a gateway order.
type CreateOrderRequest struct {
	AmountMinorUnits int64
	Currency         string
	Receipt          string
	Notes            map[string]string
}

// GatewayOrder represents the gateway-side transaction record linked to a
// ServiceOrder via its ID.
type GatewayOrder struct {
	ID        string
	Amount    int64
	Currency  string
	Receipt   string
	Status    GatewayStatus
	CreatedAt time.Time
}

// GatewayPayment normalises gateway payment details for reconciliation.
type GatewayPayment struct {
	ID       string
	OrderID  string
	Status   GatewayStatus
	Amount   int64
	Currency string
	Method   string
	Email    string
	Contact  string
}

// Gateway is the payment provider contract consumed by the checkout service.
// Implementations must be safe for concurrent use.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
}
