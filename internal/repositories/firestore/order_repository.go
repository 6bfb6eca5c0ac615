package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lexserve/api/internal/domain"
	pfirestore "github.com/lexserve/api/internal/platform/firestore"
	"github.com/lexserve/api/internal/platform/pagination"
	"github.com/lexserve/api/internal/repositories"
)

const (
	orderCollection = "serviceOrders"
	// paymentLinkCollection tracks gateway identifiers already bound to an
	// order. Document ids are the gateway order/payment ids, so tx.Create
	// doubles as the global uniqueness constraint.
	paymentLinkCollection = "paymentLinks"

	defaultListPageSize = 20
	maxListPageSize     = 100
	purgeBatchLimit     = 200
)

// OrderRepository persists ServiceOrder records in Firestore.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert persists a new order and claims its gateway order id when present.
func (r *OrderRepository) Insert(ctx context.Context, order domain.ServiceOrder) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}

	doc := fromDomainOrder(order)

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		// Claims read the link documents, so they must run before the
		// order write; Firestore forbids reads after writes in a transaction.
		orderRef := client.Collection(orderCollection).Doc(order.ID)
		if err := claimPaymentLinks(tx, client, order.ID, order.Payment, domain.ServiceOrder{}); err != nil {
			return err
		}
		return tx.Create(orderRef, doc)
	})
	return pfirestore.WrapError("serviceorders.insert", err)
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.ServiceOrder, error) {
	if r == nil || r.base == nil {
		return domain.ServiceOrder{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	order := toDomainOrder(doc.Data)
	order.ID = doc.ID
	return order, nil
}

// FindByGatewayOrderID resolves an order through its gateway order id.
func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (domain.ServiceOrder, error) {
	if r == nil || r.base == nil {
		return domain.ServiceOrder{}, errors.New("order repository not initialised")
	}
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return domain.ServiceOrder{}, pfirestore.WrapError("serviceorders.lookup", status.Error(codes.NotFound, "gateway order id is required"))
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("razorpayOrderId", "==", gatewayOrderID).Limit(1)
	})
	if err != nil {
		return domain.ServiceOrder{}, err
	}
	if len(docs) == 0 {
		return domain.ServiceOrder{}, pfirestore.WrapError("serviceorders.lookup", status.Error(codes.NotFound, "order not found for gateway order id"))
	}
	order := toDomainOrder(docs[0].Data)
	order.ID = docs[0].ID
	return order, nil
}

// List returns orders matching the filter, newest first by default.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.ServiceOrder], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.ServiceOrder]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultListPageSize
	case pageSize > maxListPageSize:
		pageSize = maxListPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.ServiceOrder]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", filter.Status[0])
		} else if len(filter.Status) > 1 {
			q = q.Where("status", "in", toAnySlice(filter.Status))
		}
		if svc := strings.TrimSpace(filter.ServiceType); svc != "" {
			q = q.Where("serviceType", "==", svc)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		direction := firestore.Desc
		if filter.Sort == domain.SortAsc {
			direction = firestore.Asc
		}
		q = q.OrderBy("createdAt", direction).OrderBy(firestore.DocumentID, direction)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.ServiceOrder]{}, err
	}

	page := domain.CursorPage[domain.ServiceOrder]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		order := toDomainOrder(doc.Data)
		order.ID = doc.ID
		page.Items = append(page.Items, order)
	}

	if len(docs) > pageSize {
		last := docs[pageSize-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.ServiceOrder]{}, err
		}
		page.NextPageToken = token
	}

	return page, nil
}

// Mutate applies fn to the order inside a transaction and persists the result.
// Newly bound gateway identifiers are claimed atomically; claiming an
// identifier owned by another order aborts with a conflict.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, fn repositories.MutateFunc) (domain.ServiceOrder, error) {
	if r == nil || r.provider == nil {
		return domain.ServiceOrder{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.ServiceOrder{}, errors.New("order id is required")
	}
	if fn == nil {
		return domain.ServiceOrder{}, errors.New("mutate function is required")
	}

	var (
		mutated domain.ServiceOrder
		fnErr   error
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		orderRef := client.Collection(orderCollection).Doc(orderID)
		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}

		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}

		order := toDomainOrder(doc)
		order.ID = orderID
		before := order

		if err := fn(&order); err != nil {
			fnErr = err
			return err
		}
		order.ID = orderID

		if err := claimPaymentLinks(tx, client, orderID, order.Payment, before); err != nil {
			return err
		}
		if err := tx.Set(orderRef, fromDomainOrder(order)); err != nil {
			return err
		}
		mutated = order
		return nil
	})
	if err != nil {
		if fnErr != nil && errors.Is(err, fnErr) {
			return domain.ServiceOrder{}, fnErr
		}
		return domain.ServiceOrder{}, pfirestore.WrapError("serviceorders.mutate", err)
	}
	return mutated, nil
}

// PurgeExpired removes orders whose expiry passed, along with their payment
// link claims. Returns the number of orders removed.
func (r *OrderRepository) PurgeExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("order repository not initialised")
	}
	if limit <= 0 || limit > purgeBatchLimit {
		limit = purgeBatchLimit
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("expiresAt", "<=", now.UTC()).Limit(limit)
	})
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range docs {
		docID := doc.ID
		payment := toDomainOrder(doc.Data).Payment
		err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			if err := tx.Delete(client.Collection(orderCollection).Doc(docID)); err != nil {
				return err
			}
			for _, linkID := range []string{payment.OrderID, payment.PaymentID} {
				if linkID == "" {
					continue
				}
				if err := tx.Delete(client.Collection(paymentLinkCollection).Doc(linkID)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return removed, pfirestore.WrapError("serviceorders.purge", err)
		}
		removed++
	}
	return removed, nil
}

// claimPaymentLinks creates claim documents for gateway ids bound since the
// before snapshot. An existing claim owned by another order aborts the
// transaction with a conflict. All link reads complete before the first link
// write so callers can still issue their own writes afterwards.
func claimPaymentLinks(tx *firestore.Transaction, client *firestore.Client, orderID string, payment domain.PaymentLink, before domain.ServiceOrder) error {
	links := client.Collection(paymentLinkCollection)

	type linkClaim struct {
		ref  *firestore.DocumentRef
		kind string
	}
	var pending []linkClaim

	check := func(linkID, kind, previous string) error {
		linkID = strings.TrimSpace(linkID)
		if linkID == "" || linkID == previous {
			return nil
		}
		ref := links.Doc(linkID)
		snap, err := tx.Get(ref)
		if err == nil {
			owner, _ := snap.DataAt("orderId")
			if owner == orderID {
				return nil
			}
			return status.Errorf(codes.AlreadyExists, "gateway %s %s already bound to another order", kind, linkID)
		}
		if status.Code(err) != codes.NotFound {
			return err
		}
		pending = append(pending, linkClaim{ref: ref, kind: kind})
		return nil
	}

	if err := check(payment.OrderID, "order", before.Payment.OrderID); err != nil {
		return err
	}
	if err := check(payment.PaymentID, "payment", before.Payment.PaymentID); err != nil {
		return err
	}

	for _, c := range pending {
		err := tx.Create(c.ref, map[string]any{
			"orderId":   orderID,
			"kind":      c.kind,
			"claimedAt": firestore.ServerTimestamp,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

// Ensure the concrete type satisfies the repository interface.
var _ repositories.OrderRepository = (*OrderRepository)(nil)

// CollectionName exposes the Firestore collection for migration tooling.
func (r *OrderRepository) CollectionName() string {
	return orderCollection
}
