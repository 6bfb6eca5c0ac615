package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/repositories"
)

const (
	notaryEventStatusChanged = "notary.status.changed"
	notaryEventScanAttached  = "notary.scan.attached"
)

// notaryStateTransitions is the strict notarisation machine. completed and
// rejected are terminal.
var notaryStateTransitions = map[domain.NotaryStatus][]domain.NotaryStatus{
	domain.NotaryStatusPending:    {domain.NotaryStatusAssigned, domain.NotaryStatusRejected},
	domain.NotaryStatusAssigned:   {domain.NotaryStatusInProgress, domain.NotaryStatusRejected},
	domain.NotaryStatusInProgress: {domain.NotaryStatusCompleted, domain.NotaryStatusRejected},
}

// NotaryServiceDeps bundles collaborators required to construct the notary service.
type NotaryServiceDeps struct {
	Orders     repositories.OrderRepository
	Dispatcher DeliveryDispatcher
	Clock      func() time.Time
	Events     OrderEventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type notaryService struct {
	orders     repositories.OrderRepository
	dispatcher DeliveryDispatcher
	clock      func() time.Time
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewNotaryService wires dependencies into a concrete NotaryService implementation.
func NewNotaryService(deps NotaryServiceDeps) (NotaryService, error) {
	if deps.Orders == nil {
		return nil, errors.New("notary service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notaryService{
		orders:     deps.Orders,
		dispatcher: deps.Dispatcher,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

// TransitionNotary advances the notarisation workflow. Completion drives the
// order to completed; rejection drives it to failed with the rejection reason.
func (s *notaryService) TransitionNotary(ctx context.Context, cmd NotaryTransitionCommand) (domain.ServiceOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !validNotaryStatus(cmd.Target) {
		return domain.ServiceOrder{}, fmt.Errorf("%w: unknown notary status %q", ErrOrderInvalidInput, cmd.Target)
	}
	if cmd.Target == domain.NotaryStatusAssigned && strings.TrimSpace(cmd.NotaryID) == "" {
		return domain.ServiceOrder{}, fmt.Errorf("%w: notary id is required for assignment", ErrOrderInvalidInput)
	}

	now := s.clock()
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.ServiceOrder) error {
		if !order.IsNotary() {
			return fmt.Errorf("%w: order %s is not a notary order", ErrOrderInvalidInput, orderID)
		}
		return s.applyNotaryTransition(order, cmd, now)
	})
	if err != nil {
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   notaryEventStatusChanged,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ServiceType: string(order.ServiceType),
		Status:      string(order.Notary.Status),
		OccurredAt:  now,
	})
	s.logger(ctx, "notary.status.changed", map[string]any{
		"order":  order.ID,
		"status": string(order.Notary.Status),
		"actor":  cmd.ActorID,
	})

	return order, nil
}

func (s *notaryService) applyNotaryTransition(order *domain.ServiceOrder, cmd NotaryTransitionCommand, now time.Time) error {
	current := order.Notary.Status
	if !canTransitionNotary(current, cmd.Target) {
		return fmt.Errorf("%w: notary %s to %s", ErrOrderInvalidState, current, cmd.Target)
	}

	order.Notary.Status = cmd.Target
	order.UpdatedAt = now

	switch cmd.Target {
	case domain.NotaryStatusAssigned:
		stamp := now
		order.Notary.AssignedAt = &stamp
		order.Notary.NotaryID = strings.TrimSpace(cmd.NotaryID)
	case domain.NotaryStatusCompleted:
		stamp := now
		order.Notary.CompletedAt = &stamp
		order.RecordStatus(domain.OrderStatusCompleted, "notarisation completed", now)
	case domain.NotaryStatusRejected:
		reason := strings.TrimSpace(cmd.Reason)
		if reason == "" {
			reason = "notarisation rejected"
		}
		order.RecordStatus(domain.OrderStatusFailed, reason, now)
	}
	return nil
}

// AttachScan records the notarised document location and completes the
// workflow. An assigned order is moved through in-progress first so the
// machine's legal paths are preserved.
func (s *notaryService) AttachScan(ctx context.Context, cmd AttachScanCommand) (domain.ServiceOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !domain.ValidDocumentURL(cmd.DocumentURL) {
		return domain.ServiceOrder{}, NewValidationError("documentUrl")
	}

	now := s.clock()
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.ServiceOrder) error {
		if !order.IsNotary() {
			return fmt.Errorf("%w: order %s is not a notary order", ErrOrderInvalidInput, orderID)
		}
		if order.Notary.Status == domain.NotaryStatusAssigned {
			order.Notary.Status = domain.NotaryStatusInProgress
		}
		if !canTransitionNotary(order.Notary.Status, domain.NotaryStatusCompleted) {
			return fmt.Errorf("%w: notary %s to %s", ErrOrderInvalidState, order.Notary.Status, domain.NotaryStatusCompleted)
		}

		order.DocumentURL = strings.TrimSpace(cmd.DocumentURL)
		order.Notary.Status = domain.NotaryStatusCompleted
		stamp := now
		order.Notary.CompletedAt = &stamp
		order.RecordStatus(domain.OrderStatusCompleted, "notarised document attached", now)
		return nil
	})
	if err != nil {
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}

	order = s.dispatch(ctx, order)

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   notaryEventScanAttached,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ServiceType: string(order.ServiceType),
		Status:      string(order.Status),
		OccurredAt:  now,
	})

	return order, nil
}

// dispatch delivers the notarised document and records the outcome on the
// order. Delivery failure marks deliveryStatus failed but never unwinds the
// completed order.
func (s *notaryService) dispatch(ctx context.Context, order domain.ServiceOrder) domain.ServiceOrder {
	if s.dispatcher == nil || order.DeliveryMethod == domain.DeliveryMethodNone {
		return order
	}

	outcome := domain.DeliveryStatusSent
	if err := s.dispatcher.Dispatch(ctx, order); err != nil {
		outcome = domain.DeliveryStatusFailed
		s.logger(ctx, "notary.delivery.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}

	updated, err := s.orders.Mutate(ctx, order.ID, func(o *domain.ServiceOrder) error {
		o.DeliveryStatus = outcome
		return nil
	})
	if err != nil {
		s.logger(ctx, "notary.delivery.record_failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		order.DeliveryStatus = outcome
		return order
	}
	return updated
}

func (s *notaryService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "notary.event.publish.failed", map[string]any{
			"type":  message.EventType,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}

func canTransitionNotary(current, target domain.NotaryStatus) bool {
	next, ok := notaryStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func validNotaryStatus(status domain.NotaryStatus) bool {
	switch status {
	case domain.NotaryStatusPending, domain.NotaryStatusAssigned, domain.NotaryStatusInProgress,
		domain.NotaryStatusCompleted, domain.NotaryStatusRejected:
		return true
	}
	return false
}
