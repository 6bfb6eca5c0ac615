package repositories

import (
	"context"
	"time"

	"github.com/lexserve/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderListFilter narrows order listings. Zero values mean "no filter".
type OrderListFilter struct {
	UserID      string
	Status      []string
	ServiceType string
	DateRange   domain.RangeQuery[time.Time]
	Pagination  domain.Pagination
	Sort        domain.SortOrder
}

// MutateFunc edits an order loaded inside a transaction. Returning an error
// aborts the mutation without persisting anything.
type MutateFunc func(order *domain.ServiceOrder) error

// OrderRepository persists ServiceOrder records.
//
// Insert and Mutate enforce the global uniqueness of gateway order and payment
// identifiers: binding an identifier that already belongs to a different order
// fails with a conflict error. Mutate runs the supplied function inside a
// transaction, giving callers the read-modify-write discipline required for
// concurrent status transitions and counter increments.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.ServiceOrder) error
	FindByID(ctx context.Context, orderID string) (domain.ServiceOrder, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (domain.ServiceOrder, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.ServiceOrder], error)
	Mutate(ctx context.Context, orderID string, fn MutateFunc) (domain.ServiceOrder, error)
	PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// HealthRepository reports backend connectivity for readiness probes.
type HealthRepository interface {
	CheckReadiness(ctx context.Context) error
}
