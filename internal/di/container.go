// Package di assembles repositories, delivery infrastructure, and the
// service layer into a runtime container consumed by cmd/api.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexserve/api/internal/payments"
	"github.com/lexserve/api/internal/platform/config"
	"github.com/lexserve/api/internal/repositories"
	"github.com/lexserve/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders   services.OrderService
	Checkout services.CheckoutService
	Notary   services.NotaryService
}

// ContainerDeps lists the infrastructure the container wires services from.
// Gateway, Verifier, and the order repository are mandatory; the rest degrade
// to no-ops when absent.
type ContainerDeps struct {
	Config     config.Config
	Orders     repositories.OrderRepository
	Health     repositories.HealthRepository
	Gateway    payments.Gateway
	Verifier   services.PaymentVerifier
	Templates  services.TemplateLibrary
	Renderer   services.DocumentRenderer
	Dispatcher services.DeliveryDispatcher
	Events     services.OrderEventPublisher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config   config.Config
	Health   repositories.HealthRepository
	Services Services
}

// NewContainer constructs the runtime dependency graph.
func NewContainer(deps ContainerDeps) (*Container, error) {
	if deps.Orders == nil {
		return nil, errors.New("di: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:         deps.Orders,
		Templates:      deps.Templates,
		Clock:          clock,
		Events:         deps.Events,
		Logger:         eventLogger(logger.Named("orders")),
		PurgeBatchSize: deps.Config.Orders.SweepBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build order service: %w", err)
	}

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:       deps.Orders,
		Gateway:      deps.Gateway,
		Verifier:     deps.Verifier,
		Renderer:     deps.Renderer,
		Dispatcher:   deps.Dispatcher,
		GatewayKeyID: deps.Config.Gateway.KeyID,
		Clock:        clock,
		Events:       deps.Events,
		Logger:       eventLogger(logger.Named("checkout")),
	})
	if err != nil {
		return nil, fmt.Errorf("di: build checkout service: %w", err)
	}

	notarySvc, err := services.NewNotaryService(services.NotaryServiceDeps{
		Orders:     deps.Orders,
		Dispatcher: deps.Dispatcher,
		Clock:      clock,
		Events:     deps.Events,
		Logger:     eventLogger(logger.Named("notary")),
	})
	if err != nil {
		return nil, fmt.Errorf("di: build notary service: %w", err)
	}

	return &Container{
		Config: deps.Config,
		Health: deps.Health,
		Services: Services{
			Orders:   orderSvc,
			Checkout: checkoutSvc,
			Notary:   notarySvc,
		},
	}, nil
}

// eventLogger adapts a zap logger to the service-layer logging contract.
func eventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zFields = append(zFields, zap.Any(key, value))
		}
		logger.Info(event, zFields...)
	}
}
