package services

import (
	"context"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/repositories"
)

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	EventType   string    `json:"eventType"`
	OrderID     string    `json:"orderId"`
	UserID      string    `json:"userId"`
	ServiceType string    `json:"serviceType"`
	Status      string    `json:"status"`
	Amount      int64     `json:"amountMinorUnits,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// DeliveryDispatcher sends the completion notification for a fulfilled order.
// Failures update deliveryStatus but never block completion.
type DeliveryDispatcher interface {
	Dispatch(ctx context.Context, order domain.ServiceOrder) error
}

// DocumentRenderer produces the PDF artifact for generated documents and
// returns the storage object path it was written to.
type DocumentRenderer interface {
	RenderDraft(ctx context.Context, order domain.ServiceOrder, body string) (string, error)
}

// TemplateLibrary resolves template objects and issues download URLs. The
// owner id scopes order-bound artifacts to their buyer; template objects
// ignore it.
type TemplateLibrary interface {
	ResolveTemplate(documentType domain.DocumentType) (string, error)
	SignedDownloadURL(ctx context.Context, objectPath, ownerID string) (string, time.Time, error)
}

// PaymentVerifier checks a gateway payment signature for an order/payment
// pair. Secret handling is a construction concern, so a mismatch is a plain
// false rather than an error.
type PaymentVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

// OrderStatusTransitionCommand mutates an order's lifecycle status.
type OrderStatusTransitionCommand struct {
	OrderID string
	Status  domain.OrderStatus
	Reason  string
	ActorID string
}

// DownloadCommand authorises a document download for an order owner.
type DownloadCommand struct {
	OrderID string
	UserID  string
}

// DownloadGrant is the result of an authorised download.
type DownloadGrant struct {
	URL           string
	ExpiresAt     time.Time
	DownloadCount int64
}

// OrderService exposes read and lifecycle operations over service orders.
type OrderService interface {
	GetOrder(ctx context.Context, orderID, requesterID string) (domain.ServiceOrder, error)
	ListOrders(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.ServiceOrder], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (domain.ServiceOrder, error)
	RecordDownload(ctx context.Context, cmd DownloadCommand) (DownloadGrant, error)
	PurgeExpired(ctx context.Context) (int, error)
}

// NotaryTransitionCommand advances the notarisation workflow.
type NotaryTransitionCommand struct {
	OrderID  string
	Target   domain.NotaryStatus
	NotaryID string
	Reason   string
	ActorID  string
}

// AttachScanCommand records the notarised artifact location on an order.
type AttachScanCommand struct {
	OrderID     string
	DocumentURL string
	ActorID     string
}

// NotaryService drives the strict notarisation sub-workflow.
type NotaryService interface {
	TransitionNotary(ctx context.Context, cmd NotaryTransitionCommand) (domain.ServiceOrder, error)
	AttachScan(ctx context.Context, cmd AttachScanCommand) (domain.ServiceOrder, error)
}

// NotaryBookingRequest carries the notary specific creation fields.
type NotaryBookingRequest struct {
	Type                 domain.NotaryType
	StampValue           int64
	RequiresRegistration bool
	DocumentDescription  string
	DeliveryAddress      string
	SpecialInstructions  string
}

// PriorityBookingRequest carries the consultation booking fields.
type PriorityBookingRequest struct {
	Phone         string
	PreferredSlot string
	Topic         string
}

// ReviewRequest carries the document review submission fields.
type ReviewRequest struct {
	DocumentURL     string
	TurnaroundHours int
	Notes           string
}

// DraftRequest carries the AI drafted document fields. PriceMinorUnits is
// caller declared; these flows only run after the payment signature passed.
type DraftRequest struct {
	Body            string
	TemplateID      string
	PriceMinorUnits int64
}

// OrderRequest is the common creation payload handed to the factory.
type OrderRequest struct {
	ServiceType  domain.ServiceType
	UserID       string
	UserEmail    string
	ServiceName  string
	DocumentType domain.DocumentType
	Currency     domain.Currency

	// Caller declared price for flows without a server-side schedule
	// (document-download, template-purchase, ai-draft).
	PriceMinorUnits int64

	Notary  *NotaryBookingRequest
	Booking *PriorityBookingRequest
	Review  *ReviewRequest
	Draft   *DraftRequest

	ClientIP  string
	UserAgent string
	Metadata  map[string]any
}

// CheckoutSession is returned after a gateway order has been opened.
type CheckoutSession struct {
	Order          domain.ServiceOrder
	GatewayOrderID string
	Amount         int64
	Currency       string
	GatewayKeyID   string
}

// VerifyPaymentCommand completes the create-then-verify protocol.
type VerifyPaymentCommand struct {
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	UserID           string
}

// CreateVerifiedOrderCommand is the verify-before-create protocol input. The
// signature is checked against the gateway identifiers before any order exists.
type CreateVerifiedOrderCommand struct {
	Request          OrderRequest
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// GatewayWebhookEvent is the parsed gateway webhook payload.
type GatewayWebhookEvent struct {
	EventID          string
	Event            string
	GatewayOrderID   string
	GatewayPaymentID string
	Status           string
	OccurredAt       time.Time
}

// WebhookOutcome reports what the reconciliation did with an event.
type WebhookOutcome struct {
	OrderID   string
	Status    domain.OrderStatus
	Applied   bool
	Duplicate bool
}

// CheckoutService implements the two creation protocols and webhook
// reconciliation.
type CheckoutService interface {
	CreateGatewayOrder(ctx context.Context, req OrderRequest) (CheckoutSession, error)
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (domain.ServiceOrder, error)
	CreateVerifiedOrder(ctx context.Context, cmd CreateVerifiedOrderCommand) (domain.ServiceOrder, error)
	HandleGatewayWebhook(ctx context.Context, event GatewayWebhookEvent) (WebhookOutcome, error)
}
