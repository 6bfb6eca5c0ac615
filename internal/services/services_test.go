package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/payments"
	"github.com/lexserve/api/internal/repositories"
)

type repoErr struct {
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repoErr) Error() string       { return e.err.Error() }
func (e *repoErr) Unwrap() error       { return e.err }
func (e *repoErr) IsNotFound() bool    { return e.notFound }
func (e *repoErr) IsConflict() bool    { return e.conflict }
func (e *repoErr) IsUnavailable() bool { return e.unavailable }

// memoryOrderRepo mirrors the firestore repository contract, including the
// global uniqueness of gateway identifiers across orders.
type memoryOrderRepo struct {
	mu    sync.Mutex
	store map[string]domain.ServiceOrder
	links map[string]string
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		store: make(map[string]domain.ServiceOrder),
		links: make(map[string]string),
	}
}

func (m *memoryOrderRepo) claimLinks(order domain.ServiceOrder) error {
	for _, id := range []string{order.Payment.OrderID, order.Payment.PaymentID} {
		if id == "" {
			continue
		}
		owner, ok := m.links[id]
		if ok && owner != order.ID {
			return &repoErr{err: fmt.Errorf("link %s owned by %s", id, owner), conflict: true}
		}
		m.links[id] = order.ID
	}
	return nil
}

func (m *memoryOrderRepo) Insert(_ context.Context, order domain.ServiceOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[order.ID]; exists {
		return &repoErr{err: fmt.Errorf("order %s exists", order.ID), conflict: true}
	}
	if err := m.claimLinks(order); err != nil {
		return err
	}
	m.store[order.ID] = order
	return nil
}

func (m *memoryOrderRepo) FindByID(_ context.Context, orderID string) (domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.store[orderID]
	if !ok {
		return domain.ServiceOrder{}, &repoErr{err: fmt.Errorf("order %s missing", orderID), notFound: true}
	}
	return order, nil
}

func (m *memoryOrderRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, order := range m.store {
		if order.Payment.OrderID == gatewayOrderID {
			return order, nil
		}
	}
	return domain.ServiceOrder{}, &repoErr{err: fmt.Errorf("gateway order %s missing", gatewayOrderID), notFound: true}
}

func (m *memoryOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.ServiceOrder], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []domain.ServiceOrder
	for _, order := range m.store {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if filter.ServiceType != "" && string(order.ServiceType) != filter.ServiceType {
			continue
		}
		if len(filter.Status) > 0 {
			matched := false
			for _, status := range filter.Status {
				if string(order.Status) == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		items = append(items, order)
	}
	sort.Slice(items, func(i, j int) bool {
		if filter.Sort == domain.SortAsc {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return domain.CursorPage[domain.ServiceOrder]{Items: items}, nil
}

func (m *memoryOrderRepo) Mutate(_ context.Context, orderID string, fn repositories.MutateFunc) (domain.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.store[orderID]
	if !ok {
		return domain.ServiceOrder{}, &repoErr{err: fmt.Errorf("order %s missing", orderID), notFound: true}
	}
	if err := fn(&order); err != nil {
		return domain.ServiceOrder{}, err
	}
	if err := m.claimLinks(order); err != nil {
		return domain.ServiceOrder{}, err
	}
	m.store[orderID] = order
	return order, nil
}

func (m *memoryOrderRepo) PurgeExpired(_ context.Context, now time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, order := range m.store {
		if removed >= limit {
			break
		}
		if order.ExpiresAt.After(now) {
			continue
		}
		for _, link := range []string{order.Payment.OrderID, order.Payment.PaymentID} {
			delete(m.links, link)
		}
		delete(m.store, id)
		removed++
	}
	return removed, nil
}

type stubGateway struct {
	nextID  string
	err     error
	created []payments.CreateOrderRequest
}

func (g *stubGateway) CreateOrder(_ context.Context, req payments.CreateOrderRequest) (payments.GatewayOrder, error) {
	if g.err != nil {
		return payments.GatewayOrder{}, g.err
	}
	g.created = append(g.created, req)
	id := g.nextID
	if id == "" {
		id = fmt.Sprintf("order_gw_%d", len(g.created))
	}
	return payments.GatewayOrder{
		ID:       id,
		Amount:   req.AmountMinorUnits,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   payments.GatewayStatusCreated,
	}, nil
}

func (g *stubGateway) FetchPayment(_ context.Context, paymentID string) (payments.GatewayPayment, error) {
	return payments.GatewayPayment{ID: paymentID, Status: payments.GatewayStatusCaptured}, nil
}

type stubDispatcher struct {
	err    error
	orders []domain.ServiceOrder
}

func (d *stubDispatcher) Dispatch(_ context.Context, order domain.ServiceOrder) error {
	d.orders = append(d.orders, order)
	return d.err
}

type stubRenderer struct {
	path string
	err  error
}

func (r *stubRenderer) RenderDraft(_ context.Context, order domain.ServiceOrder, _ string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.path != "" {
		return r.path, nil
	}
	return fmt.Sprintf("orders/%s/drafts/draft.pdf", order.ID), nil
}

type stubTemplates struct {
	objectPath string
	url        string
	expiresAt  time.Time
	resolveErr error
	signErr    error
}

func (t *stubTemplates) ResolveTemplate(domain.DocumentType) (string, error) {
	if t.resolveErr != nil {
		return "", t.resolveErr
	}
	return t.objectPath, nil
}

func (t *stubTemplates) SignedDownloadURL(_ context.Context, objectPath, _ string) (string, time.Time, error) {
	if t.signErr != nil {
		return "", time.Time{}, t.signErr
	}
	if t.url != "" {
		return t.url, t.expiresAt, nil
	}
	return "https://storage.example.com/" + objectPath, t.expiresAt, nil
}

type stubPublisher struct {
	err      error
	messages []OrderEventMessage
}

func (p *stubPublisher) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequenceIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

var errBoom = errors.New("boom")
