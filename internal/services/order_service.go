package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/repositories"
)

const (
	orderEventStatusChanged = "order.status.changed"
	orderEventCompleted     = "order.completed"
	orderEventDownloaded    = "order.downloaded"
)

// downloadableServices are the service types whose artifact is served to the
// customer after completion.
var downloadableServices = map[domain.ServiceType]bool{
	domain.ServiceTypeDocumentDownload: true,
	domain.ServiceTypeTemplatePurchase: true,
	domain.ServiceTypeAIDraft:          true,
	domain.ServiceTypeDocumentReview:   true,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders         repositories.OrderRepository
	Templates      TemplateLibrary
	Clock          func() time.Time
	Events         OrderEventPublisher
	Logger         func(ctx context.Context, event string, fields map[string]any)
	PurgeBatchSize int
}

type orderService struct {
	orders     repositories.OrderRepository
	templates  TemplateLibrary
	clock      func() time.Time
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
	purgeBatch int
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	purgeBatch := deps.PurgeBatchSize
	if purgeBatch <= 0 {
		purgeBatch = 200
	}

	return &orderService{
		orders:    deps.Orders,
		templates: deps.Templates,
		clock: func() time.Time {
			return clock().UTC()
		},
		events:     deps.Events,
		logger:     logger,
		purgeBatch: purgeBatch,
	}, nil
}

// GetOrder loads an order. A non-empty requesterID restricts the read to the
// order owner; mismatches surface as not-found.
func (s *orderService) GetOrder(ctx context.Context, orderID, requesterID string) (domain.ServiceOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}

	if requesterID = strings.TrimSpace(requesterID); requesterID != "" && order.UserID != requesterID {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.ServiceOrder], error) {
	for _, status := range filter.Status {
		if !validOrderStatus(domain.OrderStatus(status)) {
			return domain.CursorPage[domain.ServiceOrder]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
	}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.ServiceOrder]{}, mapRepositoryError(err)
	}
	return page, nil
}

// TransitionStatus applies a lifecycle transition. The lifecycle layer is
// deliberately permissive: any known status may follow any other, and every
// change appends the prior status to the audit history. The notary workflow
// layers its own strict machine on top.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (domain.ServiceOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !validOrderStatus(cmd.Status) {
		return domain.ServiceOrder{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	now := s.clock()
	var previous domain.OrderStatus
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.ServiceOrder) error {
		previous = order.Status
		order.RecordStatus(cmd.Status, cmd.Reason, now)
		return nil
	})
	if err != nil {
		return domain.ServiceOrder{}, mapRepositoryError(err)
	}

	eventType := orderEventStatusChanged
	if cmd.Status == domain.OrderStatusCompleted {
		eventType = orderEventCompleted
	}
	s.publishEvent(ctx, OrderEventMessage{
		EventType:   eventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ServiceType: string(order.ServiceType),
		Status:      string(order.Status),
		Amount:      order.FinalAmount,
		OccurredAt:  now,
	})
	s.logger(ctx, "order.status.changed", map[string]any{
		"order":    order.ID,
		"previous": string(previous),
		"status":   string(order.Status),
		"actor":    cmd.ActorID,
	})

	return order, nil
}

// RecordDownload authorises a document download. Only completed orders of a
// downloadable service type qualify; the counter is untouched otherwise.
func (s *orderService) RecordDownload(ctx context.Context, cmd DownloadCommand) (DownloadGrant, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return DownloadGrant{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if s.templates == nil {
		return DownloadGrant{}, errors.New("order service: template library not configured")
	}

	order, err := s.GetOrder(ctx, orderID, cmd.UserID)
	if err != nil {
		return DownloadGrant{}, err
	}

	if order.Status != domain.OrderStatusCompleted {
		return DownloadGrant{}, fmt.Errorf("%w: order %s is %s", ErrOrderNotDownloadable, orderID, order.Status)
	}
	if !downloadableServices[order.ServiceType] {
		return DownloadGrant{}, fmt.Errorf("%w: service type %s has no artifact", ErrOrderNotDownloadable, order.ServiceType)
	}

	objectPath := order.DocumentURL
	if objectPath == "" {
		objectPath, err = s.templates.ResolveTemplate(order.DocumentType)
		if err != nil {
			return DownloadGrant{}, err
		}
	}

	url, expires, err := s.templates.SignedDownloadURL(ctx, objectPath, order.UserID)
	if err != nil {
		return DownloadGrant{}, err
	}

	updated, err := s.orders.Mutate(ctx, orderID, func(order *domain.ServiceOrder) error {
		if order.Status != domain.OrderStatusCompleted {
			return fmt.Errorf("%w: order %s is %s", ErrOrderNotDownloadable, orderID, order.Status)
		}
		order.DownloadCount++
		order.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		return DownloadGrant{}, mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:   orderEventDownloaded,
		OrderID:     updated.ID,
		UserID:      updated.UserID,
		ServiceType: string(updated.ServiceType),
		Status:      string(updated.Status),
		OccurredAt:  s.clock(),
	})

	return DownloadGrant{
		URL:           url,
		ExpiresAt:     expires,
		DownloadCount: updated.DownloadCount,
	}, nil
}

// PurgeExpired removes orders past their retention window.
func (s *orderService) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := s.orders.PurgeExpired(ctx, s.clock(), s.purgeBatch)
	if err != nil {
		return removed, mapRepositoryError(err)
	}
	if removed > 0 {
		s.logger(ctx, "order.purge", map[string]any{"removed": removed})
	}
	return removed, nil
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  message.EventType,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusCompleted,
		domain.OrderStatusFailed, domain.OrderStatusRefunded:
		return true
	}
	return false
}
