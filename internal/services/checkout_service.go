package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/payments"
	"github.com/lexserve/api/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventPaymentVerified = "order.payment.verified"
	orderEventPaymentFailed   = "order.payment.failed"

	paymentVerifiedReason = "Payment verified"
	signatureFailedReason = "Invalid payment signature"
)

// gatewayWebhookTargets maps normalised gateway payment states to the order
// status a webhook may apply. Events outside this map are acknowledged but
// never change an order.
var gatewayWebhookTargets = map[payments.GatewayStatus]domain.OrderStatus{
	payments.GatewayStatusCaptured: domain.OrderStatusProcessing,
	payments.GatewayStatusFailed:   domain.OrderStatusFailed,
	payments.GatewayStatusRefunded: domain.OrderStatusRefunded,
}

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Orders       repositories.OrderRepository
	Gateway      payments.Gateway
	Verifier     PaymentVerifier
	Renderer     DocumentRenderer
	Dispatcher   DeliveryDispatcher
	GatewayKeyID string
	Clock        func() time.Time
	IDGenerator  func() string
	Events       OrderEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders       repositories.OrderRepository
	gateway      payments.Gateway
	verifier     PaymentVerifier
	renderer     DocumentRenderer
	dispatcher   DeliveryDispatcher
	gatewayKeyID string
	factory      *orderFactory
	clock        func() time.Time
	events       OrderEventPublisher
	logger       func(context.Context, string, map[string]any)
}

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("checkout service: payment verifier is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	utcClock := func() time.Time {
		return clock().UTC()
	}

	return &checkoutService{
		orders:       deps.Orders,
		gateway:      deps.Gateway,
		verifier:     deps.Verifier,
		renderer:     deps.Renderer,
		dispatcher:   deps.Dispatcher,
		gatewayKeyID: deps.GatewayKeyID,
		factory:      newOrderFactory(utcClock, deps.IDGenerator),
		clock:        utcClock,
		events:       deps.Events,
		logger:       logger,
	}, nil
}

// CreateGatewayOrder opens a gateway order for the requested service and
// persists the pending ServiceOrder bound to it. The caller completes the
// protocol with VerifyPayment.
func (s *checkoutService) CreateGatewayOrder(ctx context.Context, req OrderRequest) (CheckoutSession, error) {
	order, err := s.factory.Build(req)
	if err != nil {
		return CheckoutSession{}, err
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, payments.CreateOrderRequest{
		AmountMinorUnits: order.FinalAmount,
		Currency:         string(order.Currency),
		Receipt:          order.ID,
		Notes: map[string]string{
			"serviceType": string(order.ServiceType),
			"userId":      order.UserID,
		},
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("checkout: create gateway order: %w", err)
	}

	order.Payment.OrderID = gatewayOrder.ID
	if err := s.orders.Insert(ctx, order); err != nil {
		return CheckoutSession{}, mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   orderEventCreated,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ServiceType: string(order.ServiceType),
		Status:      string(order.Status),
		Amount:      order.FinalAmount,
		OccurredAt:  order.CreatedAt,
	})
	s.logger(ctx, "checkout.order.created", map[string]any{
		"order":        order.ID,
		"gatewayOrder": gatewayOrder.ID,
		"amount":       order.FinalAmount,
		"serviceType":  string(order.ServiceType),
	})

	return CheckoutSession{
		Order:          order,
		GatewayOrderID: gatewayOrder.ID,
		Amount:         order.FinalAmount,
		Currency:       string(order.Currency),
		GatewayKeyID:   s.gatewayKeyID,
	}, nil
}

// VerifyPayment completes the create-then-verify protocol. A bad signature
// marks the order failed and returns ErrPaymentSignature; a good one binds the
// payment identifiers and completes the order. Repeating a successful
// verification is a no-op returning the already completed order.
func (s *checkoutService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (domain.ServiceOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	paymentID := strings.TrimSpace(cmd.GatewayPaymentID)
	gatewayOrderID := strings.TrimSpace(cmd.GatewayOrderID)
	if orderID == "" || paymentID == "" || gatewayOrderID == "" {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order, gateway order and payment ids are required", ErrOrderInvalidInput)
	}

	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}
	if requester := strings.TrimSpace(cmd.UserID); requester != "" && current.UserID != requester {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}
	if current.Payment.OrderID != "" && current.Payment.OrderID != gatewayOrderID {
		return domain.ServiceOrder{}, fmt.Errorf("%w: gateway order mismatch for %s", ErrOrderInvalidInput, orderID)
	}

	now := s.clock()
	if !s.verifier.Verify(gatewayOrderID, paymentID, cmd.Signature) {
		s.markSignatureFailure(ctx, orderID, now)
		return domain.ServiceOrder{}, fmt.Errorf("%w: order %s", ErrPaymentSignature, orderID)
	}

	alreadyCompleted := false
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.ServiceOrder) error {
		if order.Payment.PaymentID == paymentID && order.Status == domain.OrderStatusCompleted {
			alreadyCompleted = true
			return nil
		}
		order.Payment.OrderID = gatewayOrderID
		order.Payment.PaymentID = paymentID
		order.Payment.Signature = cmd.Signature
		stamp := now
		order.PaymentAt = &stamp
		order.RecordStatus(domain.OrderStatusCompleted, paymentVerifiedReason, now)
		return nil
	})
	if err != nil {
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}
	if alreadyCompleted {
		return order, nil
	}

	order = s.dispatch(ctx, order)

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   orderEventPaymentVerified,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ServiceType: string(order.ServiceType),
		Status:      string(order.Status),
		Amount:      order.FinalAmount,
		OccurredAt:  now,
	})
	s.logger(ctx, "checkout.payment.verified", map[string]any{
		"order":   order.ID,
		"payment": paymentID,
	})

	return order, nil
}

// CreateVerifiedOrder implements the verify-before-create protocol: the
// signature is checked against the caller supplied gateway identifiers, and
// only on success does an order come into existence, already completed.
// Replays with the same gateway order return the existing order.
func (s *checkoutService) CreateVerifiedOrder(ctx context.Context, cmd CreateVerifiedOrderCommand) (domain.ServiceOrder, error) {
	paymentID := strings.TrimSpace(cmd.GatewayPaymentID)
	gatewayOrderID := strings.TrimSpace(cmd.GatewayOrderID)
	if paymentID == "" || gatewayOrderID == "" {
		return domain.ServiceOrder{}, fmt.Errorf("%w: gateway order and payment ids are required", ErrOrderInvalidInput)
	}

	if !s.verifier.Verify(gatewayOrderID, paymentID, cmd.Signature) {
		s.logger(ctx, "checkout.signature.rejected", map[string]any{
			"gatewayOrder": gatewayOrderID,
			"payment":      paymentID,
		})
		return domain.ServiceOrder{}, fmt.Errorf("%w: gateway order %s", ErrPaymentSignature, gatewayOrderID)
	}

	if existing, err := s.orders.FindByGatewayOrderID(ctx, gatewayOrderID); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}

	order, err := s.factory.Build(cmd.Request)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	now := s.clock()
	order.Payment = domain.PaymentLink{
		OrderID:   gatewayOrderID,
		PaymentID: paymentID,
		Signature: cmd.Signature,
	}
	stamp := now
	order.PaymentAt = &stamp
	order.RecordStatus(domain.OrderStatusCompleted, paymentVerifiedReason, now)

	if cmd.Request.Draft != nil && s.renderer != nil {
		objectPath, renderErr := s.renderer.RenderDraft(ctx, order, cmd.Request.Draft.Body)
		if renderErr != nil {
			return domain.ServiceOrder{}, fmt.Errorf("checkout: render draft: %w", renderErr)
		}
		order.DocumentURL = objectPath
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		// A concurrent replay may have claimed the gateway order first.
		if errors.Is(mapRepositoryError(err), ErrOrderConflict) {
			if existing, findErr := s.orders.FindByGatewayOrderID(ctx, gatewayOrderID); findErr == nil {
				return existing, nil
			}
		}
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}

	order = s.dispatch(ctx, order)

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   orderEventCompleted,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ServiceType: string(order.ServiceType),
		Status:      string(order.Status),
		Amount:      order.FinalAmount,
		OccurredAt:  now,
	})
	s.logger(ctx, "checkout.order.completed", map[string]any{
		"order":        order.ID,
		"gatewayOrder": gatewayOrderID,
		"serviceType":  string(order.ServiceType),
	})

	return order, nil
}

// HandleGatewayWebhook reconciles an asynchronous gateway notification against
// the linked order. A captured payment applies to pending orders and retries
// failed ones back into processing; any other state treats the event as a
// duplicate, so replays cannot rewind completion and completedAt is never
// overwritten.
func (s *checkoutService) HandleGatewayWebhook(ctx context.Context, event GatewayWebhookEvent) (WebhookOutcome, error) {
	gatewayOrderID := strings.TrimSpace(event.GatewayOrderID)
	if gatewayOrderID == "" {
		return WebhookOutcome{}, fmt.Errorf("%w: gateway order id is required", ErrOrderInvalidInput)
	}

	target, relevant := gatewayWebhookTargets[payments.GatewayStatus(event.Status)]

	current, err := s.orders.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return WebhookOutcome{}, mapRepositoryError(err)
	}
	if !relevant {
		s.logger(ctx, "checkout.webhook.ignored", map[string]any{
			"event":        event.Event,
			"gatewayOrder": gatewayOrderID,
			"status":       event.Status,
		})
		return WebhookOutcome{OrderID: current.ID, Status: current.Status, Duplicate: true}, nil
	}

	now := s.clock()
	applied := false
	order, err := s.orders.Mutate(ctx, current.ID, func(order *domain.ServiceOrder) error {
		if paymentID := strings.TrimSpace(event.GatewayPaymentID); paymentID != "" && order.Payment.PaymentID == "" {
			order.Payment.PaymentID = paymentID
		}
		applicable := order.Status == domain.OrderStatusPending
		if target == domain.OrderStatusProcessing && order.Status == domain.OrderStatusFailed {
			// A captured payment retries a signature-failed order; completed
			// and refunded orders stay untouched.
			applicable = true
		}
		if !applicable {
			return nil
		}
		reason := fmt.Sprintf("gateway webhook %s", event.Event)
		order.RecordStatus(target, reason, now)
		if target == domain.OrderStatusProcessing && order.PaymentAt == nil {
			stamp := now
			order.PaymentAt = &stamp
		}
		applied = true
		return nil
	})
	if err != nil {
		return WebhookOutcome{}, mapRepositoryError(err)
	}

	if applied {
		s.publishEvent(ctx, OrderEventMessage{
			EventType:   orderEventStatusChanged,
			OrderID:     order.ID,
			UserID:      order.UserID,
			ServiceType: string(order.ServiceType),
			Status:      string(order.Status),
			OccurredAt:  now,
		})
	}
	s.logger(ctx, "checkout.webhook.processed", map[string]any{
		"event":     event.Event,
		"order":     order.ID,
		"status":    string(order.Status),
		"applied":   applied,
		"duplicate": !applied,
	})

	return WebhookOutcome{
		OrderID:   order.ID,
		Status:    order.Status,
		Applied:   applied,
		Duplicate: !applied,
	}, nil
}

// markSignatureFailure is best effort: the verification error is reported to
// the caller even when the failure record cannot be written.
func (s *checkoutService) markSignatureFailure(ctx context.Context, orderID string, now time.Time) {
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.ServiceOrder) error {
		if order.Status == domain.OrderStatusPending {
			order.RecordStatus(domain.OrderStatusFailed, signatureFailedReason, now)
		}
		return nil
	})
	if err != nil {
		s.logger(ctx, "checkout.signature.mark_failed", map[string]any{
			"order": orderID,
			"error": err.Error(),
		})
		return
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   orderEventPaymentFailed,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ServiceType: string(order.ServiceType),
		Status:      string(order.Status),
		OccurredAt:  now,
	})
}

// dispatch delivers the order artifact and records the outcome on the order.
// Delivery failure marks deliveryStatus failed but never unwinds completion.
func (s *checkoutService) dispatch(ctx context.Context, order domain.ServiceOrder) domain.ServiceOrder {
	if s.dispatcher == nil || order.DeliveryMethod == domain.DeliveryMethodNone {
		return order
	}

	outcome := domain.DeliveryStatusSent
	if err := s.dispatcher.Dispatch(ctx, order); err != nil {
		outcome = domain.DeliveryStatusFailed
		s.logger(ctx, "checkout.delivery.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}

	updated, err := s.orders.Mutate(ctx, order.ID, func(o *domain.ServiceOrder) error {
		o.DeliveryStatus = outcome
		return nil
	})
	if err != nil {
		s.logger(ctx, "checkout.delivery.record_failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		order.DeliveryStatus = outcome
		return order
	}
	return updated
}

func (s *checkoutService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "checkout.event.publish.failed", map[string]any{
			"type":  message.EventType,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}

func isNotFound(err error) bool {
	return errors.Is(mapRepositoryError(err), ErrOrderNotFound)
}
