package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexserve/api/internal/domain"
)

func notaryOrder(id string, at time.Time) domain.ServiceOrder {
	order := baseOrder(id, at)
	order.ServiceType = domain.ServiceTypeNotary
	order.ServiceName = "Affidavit notarisation"
	order.DocumentType = domain.DocumentTypeAffidavit
	order.DeliveryMethod = domain.DeliveryMethodEmail
	order.Notary = &domain.NotaryDetails{
		Type:                domain.NotaryTypeDigital,
		StampValue:          100,
		DocumentDescription: "General affidavit",
		Status:              domain.NotaryStatusPending,
	}
	return order
}

func newTestNotaryService(t *testing.T, repo *memoryOrderRepo, dispatcher DeliveryDispatcher, at time.Time) NotaryService {
	t.Helper()
	svc, err := NewNotaryService(NotaryServiceDeps{
		Orders:     repo,
		Dispatcher: dispatcher,
		Clock:      fixedClock(at),
	})
	if err != nil {
		t.Fatalf("new notary service: %v", err)
	}
	return svc
}

func TestNotaryHappyPathCompletesOrder(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo()
	seedOrder(t, repo, notaryOrder("ord_n1", now))
	svc := newTestNotaryService(t, repo, nil, now)
	ctx := context.Background()

	order, err := svc.TransitionNotary(ctx, NotaryTransitionCommand{
		OrderID: "ord_n1", Target: domain.NotaryStatusAssigned, NotaryID: "notary-7",
	})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if order.Notary.Status != domain.NotaryStatusAssigned {
		t.Fatalf("notary status = %s", order.Notary.Status)
	}
	if order.Notary.AssignedAt == nil || order.Notary.NotaryID != "notary-7" {
		t.Fatalf("assignment not stamped: %+v", order.Notary)
	}

	if _, err := svc.TransitionNotary(ctx, NotaryTransitionCommand{
		OrderID: "ord_n1", Target: domain.NotaryStatusInProgress,
	}); err != nil {
		t.Fatalf("in-progress failed: %v", err)
	}

	order, err = svc.TransitionNotary(ctx, NotaryTransitionCommand{
		OrderID: "ord_n1", Target: domain.NotaryStatusCompleted,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if order.Notary.Status != domain.NotaryStatusCompleted || order.Notary.CompletedAt == nil {
		t.Fatalf("completion not stamped: %+v", order.Notary)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("order status = %s, want completed", order.Status)
	}
	if order.CompletedAt == nil {
		t.Fatal("order completedAt not stamped")
	}
}

func TestNotaryIllegalTransitionsRejected(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	cases := []struct {
		name   string
		from   domain.NotaryStatus
		target domain.NotaryStatus
	}{
		{"pending to completed", domain.NotaryStatusPending, domain.NotaryStatusCompleted},
		{"pending to in-progress", domain.NotaryStatusPending, domain.NotaryStatusInProgress},
		{"assigned to completed", domain.NotaryStatusAssigned, domain.NotaryStatusCompleted},
		{"completed is terminal", domain.NotaryStatusCompleted, domain.NotaryStatusInProgress},
		{"rejected is terminal", domain.NotaryStatusRejected, domain.NotaryStatusAssigned},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryOrderRepo()
			order := notaryOrder("ord_n1", now)
			order.Notary.Status = tc.from
			seedOrder(t, repo, order)
			svc := newTestNotaryService(t, repo, nil, now)

			_, err := svc.TransitionNotary(ctx, NotaryTransitionCommand{
				OrderID: "ord_n1", Target: tc.target, NotaryID: "notary-7",
			})
			if !errors.Is(err, ErrOrderInvalidState) {
				t.Fatalf("expected ErrOrderInvalidState, got %v", err)
			}
		})
	}
}

func TestNotaryAssignmentRequiresNotaryID(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo()
	seedOrder(t, repo, notaryOrder("ord_n1", now))
	svc := newTestNotaryService(t, repo, nil, now)

	_, err := svc.TransitionNotary(context.Background(), NotaryTransitionCommand{
		OrderID: "ord_n1", Target: domain.NotaryStatusAssigned,
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestNotaryRejectionFailsOrderWithReason(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo()
	order := notaryOrder("ord_n1", now)
	order.Notary.Status = domain.NotaryStatusAssigned
	seedOrder(t, repo, order)
	svc := newTestNotaryService(t, repo, nil, now)

	rejected, err := svc.TransitionNotary(context.Background(), NotaryTransitionCommand{
		OrderID: "ord_n1", Target: domain.NotaryStatusRejected, Reason: "illegible stamp paper",
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != domain.OrderStatusFailed {
		t.Fatalf("order status = %s, want failed", rejected.Status)
	}
	if len(rejected.StatusHistory) != 1 || rejected.StatusHistory[0].Reason != "illegible stamp paper" {
		t.Fatalf("unexpected history %+v", rejected.StatusHistory)
	}
}

func TestNotaryRejectsNonNotaryOrder(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo()
	seedOrder(t, repo, baseOrder("ord_dl", now))
	svc := newTestNotaryService(t, repo, nil, now)

	_, err := svc.TransitionNotary(context.Background(), NotaryTransitionCommand{
		OrderID: "ord_dl", Target: domain.NotaryStatusAssigned, NotaryID: "notary-7",
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestAttachScanCompletesAndDispatches(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo()
	order := notaryOrder("ord_n1", now)
	order.Notary.Status = domain.NotaryStatusAssigned
	seedOrder(t, repo, order)
	dispatcher := &stubDispatcher{}
	svc := newTestNotaryService(t, repo, dispatcher, now)

	updated, err := svc.AttachScan(context.Background(), AttachScanCommand{
		OrderID:     "ord_n1",
		DocumentURL: "orders/ord_n1/notary/scan.pdf",
	})
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if updated.DocumentURL != "orders/ord_n1/notary/scan.pdf" {
		t.Fatalf("document url = %q", updated.DocumentURL)
	}
	if updated.Notary.Status != domain.NotaryStatusCompleted || updated.Notary.CompletedAt == nil {
		t.Fatalf("notary not completed: %+v", updated.Notary)
	}
	if updated.Status != domain.OrderStatusCompleted {
		t.Fatalf("order status = %s", updated.Status)
	}
	if len(dispatcher.orders) != 1 || dispatcher.orders[0].ID != "ord_n1" {
		t.Fatalf("delivery not dispatched: %+v", dispatcher.orders)
	}
}

func TestAttachScanRecordsDeliveryOutcome(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("delivered", func(t *testing.T) {
		repo := newMemoryOrderRepo()
		order := notaryOrder("ord_n1", now)
		order.Notary.Status = domain.NotaryStatusAssigned
		seedOrder(t, repo, order)
		svc := newTestNotaryService(t, repo, &stubDispatcher{}, now)

		updated, err := svc.AttachScan(ctx, AttachScanCommand{
			OrderID:     "ord_n1",
			DocumentURL: "orders/ord_n1/notary/scan.pdf",
		})
		if err != nil {
			t.Fatalf("attach failed: %v", err)
		}
		if updated.DeliveryStatus != domain.DeliveryStatusSent {
			t.Fatalf("delivery status = %s, want sent", updated.DeliveryStatus)
		}
	})

	t.Run("dispatch failure", func(t *testing.T) {
		repo := newMemoryOrderRepo()
		order := notaryOrder("ord_n1", now)
		order.Notary.Status = domain.NotaryStatusAssigned
		seedOrder(t, repo, order)
		svc := newTestNotaryService(t, repo, &stubDispatcher{err: errBoom}, now)

		updated, err := svc.AttachScan(ctx, AttachScanCommand{
			OrderID:     "ord_n1",
			DocumentURL: "orders/ord_n1/notary/scan.pdf",
		})
		if err != nil {
			t.Fatalf("attach failed despite delivery error: %v", err)
		}
		if updated.Status != domain.OrderStatusCompleted {
			t.Fatalf("order status = %s, want completed", updated.Status)
		}
		if updated.DeliveryStatus != domain.DeliveryStatusFailed {
			t.Fatalf("delivery status = %s, want failed", updated.DeliveryStatus)
		}

		stored, err := repo.FindByID(ctx, "ord_n1")
		if err != nil {
			t.Fatalf("reload order: %v", err)
		}
		if stored.DeliveryStatus != domain.DeliveryStatusFailed {
			t.Fatalf("persisted delivery status = %s, want failed", stored.DeliveryStatus)
		}
	})
}

func TestAttachScanRejectsTerminalWorkflow(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo()
	order := notaryOrder("ord_n1", now)
	order.Notary.Status = domain.NotaryStatusRejected
	seedOrder(t, repo, order)
	svc := newTestNotaryService(t, repo, nil, now)

	_, err := svc.AttachScan(context.Background(), AttachScanCommand{
		OrderID:     "ord_n1",
		DocumentURL: "orders/ord_n1/notary/scan.pdf",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestAttachScanValidatesDocumentURL(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newMemoryOrderRepo()
	seedOrder(t, repo, notaryOrder("ord_n1", now))
	svc := newTestNotaryService(t, repo, nil, now)

	_, err := svc.AttachScan(context.Background(), AttachScanCommand{
		OrderID:     "ord_n1",
		DocumentURL: "not a url",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
