package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/payments"
)

const testGatewaySecret = "test-gateway-secret"

type checkoutFixture struct {
	svc        CheckoutService
	repo       *memoryOrderRepo
	gateway    *stubGateway
	dispatcher *stubDispatcher
	events     *stubPublisher
}

func newCheckoutFixture(t *testing.T, at time.Time) *checkoutFixture {
	t.Helper()

	verifier, err := payments.NewSignatureVerifier(testGatewaySecret)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	fx := &checkoutFixture{
		repo:       newMemoryOrderRepo(),
		gateway:    &stubGateway{},
		dispatcher: &stubDispatcher{},
		events:     &stubPublisher{},
	}
	fx.svc, err = NewCheckoutService(CheckoutServiceDeps{
		Orders:       fx.repo,
		Gateway:      fx.gateway,
		Verifier:     verifier,
		Renderer:     &stubRenderer{},
		Dispatcher:   fx.dispatcher,
		GatewayKeyID: "rzp_test_key",
		Clock:        fixedClock(at),
		IDGenerator:  sequenceIDs("test"),
		Events:       fx.events,
	})
	if err != nil {
		t.Fatalf("new checkout service: %v", err)
	}
	return fx
}

func signFor(gatewayOrderID, paymentID string) string {
	return payments.Signature(gatewayOrderID, paymentID, testGatewaySecret)
}

func notaryRequest() OrderRequest {
	return OrderRequest{
		ServiceType:  domain.ServiceTypeNotary,
		UserID:       "user-1",
		UserEmail:    "user@example.com",
		DocumentType: domain.DocumentTypeAffidavit,
		Notary: &NotaryBookingRequest{
			Type:                domain.NotaryTypeDigital,
			StampValue:          100,
			DocumentDescription: "General affidavit",
		},
	}
}

func TestCreateGatewayOrderPricesNotaryServerSide(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)

	session, err := fx.svc.CreateGatewayOrder(context.Background(), notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// 39900 base + 100 rupees stamp duty in paise.
	if session.Amount != 49900 {
		t.Fatalf("amount = %d, want 49900", session.Amount)
	}
	if session.GatewayKeyID != "rzp_test_key" {
		t.Fatalf("gateway key = %q", session.GatewayKeyID)
	}
	if session.Order.Status != domain.OrderStatusPending {
		t.Fatalf("order status = %s, want pending", session.Order.Status)
	}
	if session.Order.Payment.OrderID != session.GatewayOrderID {
		t.Fatalf("gateway order not bound: %+v", session.Order.Payment)
	}

	if len(fx.gateway.created) != 1 {
		t.Fatalf("gateway calls = %d", len(fx.gateway.created))
	}
	if fx.gateway.created[0].Receipt != session.Order.ID {
		t.Fatalf("receipt = %q, want order id %q", fx.gateway.created[0].Receipt, session.Order.ID)
	}

	stored, err := fx.repo.FindByID(context.Background(), session.Order.ID)
	if err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if stored.ExpiresAt.Sub(stored.CreatedAt) != domain.OrderRetention {
		t.Fatalf("retention window = %s", stored.ExpiresAt.Sub(stored.CreatedAt))
	}
}

func TestCreateGatewayOrderScheduledPrices(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  OrderRequest
		want int64
	}{
		{
			name: "priority consultation",
			req: OrderRequest{
				ServiceType: domain.ServiceTypeLegalConsultation,
				UserID:      "user-1",
				UserEmail:   "user@example.com",
				Booking: &PriorityBookingRequest{
					Phone:         "9876543210",
					PreferredSlot: "2026-03-04T10:00",
				},
			},
			want: 19800,
		},
		{
			name: "48h review",
			req: OrderRequest{
				ServiceType: domain.ServiceTypeDocumentReview,
				UserID:      "user-1",
				UserEmail:   "user@example.com",
				Review: &ReviewRequest{
					DocumentURL:     "https://uploads.example.com/doc.pdf",
					TurnaroundHours: 48,
				},
			},
			want: 79900,
		},
		{
			name: "physical notary with registration",
			req: OrderRequest{
				ServiceType: domain.ServiceTypeNotary,
				UserID:      "user-1",
				UserEmail:   "user@example.com",
				Notary: &NotaryBookingRequest{
					Type:                 domain.NotaryTypePhysical,
					StampValue:           500,
					RequiresRegistration: true,
					DocumentDescription:  "Sale deed",
					DeliveryAddress:      "42 MG Road, Pune",
				},
			},
			want: 79900 + 50000 + 100000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newCheckoutFixture(t, now)
			session, err := fx.svc.CreateGatewayOrder(context.Background(), tc.req)
			if err != nil {
				t.Fatalf("create failed: %v", err)
			}
			if session.Amount != tc.want {
				t.Fatalf("amount = %d, want %d", session.Amount, tc.want)
			}
		})
	}
}

func TestCreateGatewayOrderRejectsInvalidRequest(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)

	req := notaryRequest()
	req.UserEmail = "not-an-email"
	_, err := fx.svc.CreateGatewayOrder(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(fx.gateway.created) != 0 {
		t.Fatal("gateway order opened for invalid request")
	}
}

func TestCreateGatewayOrderCanonicalisesReviewUpload(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)

	session, err := fx.svc.CreateGatewayOrder(context.Background(), OrderRequest{
		ServiceType: domain.ServiceTypeDocumentReview,
		UserID:      "user-1",
		UserEmail:   "user@example.com",
		Review: &ReviewRequest{
			DocumentURL:     "contract.pdf",
			TurnaroundHours: 48,
		},
	})
	if err != nil {
		t.Fatalf("create review order: %v", err)
	}

	want := "orders/" + session.Order.ID + "/review/contract.pdf"
	if session.Order.DocumentURL != want {
		t.Fatalf("document url = %q, want %q", session.Order.DocumentURL, want)
	}
}

func TestVerifyPaymentCompletesOrder(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order, err := fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
		OrderID:          session.Order.ID,
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        signFor(session.GatewayOrderID, "pay_1"),
		UserID:           "user-1",
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("status = %s, want completed", order.Status)
	}
	if order.Payment.PaymentID != "pay_1" {
		t.Fatalf("payment not bound: %+v", order.Payment)
	}
	if order.PaymentAt == nil || order.CompletedAt == nil {
		t.Fatal("payment or completion timestamp missing")
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Status != domain.OrderStatusPending {
		t.Fatalf("unexpected history %+v", order.StatusHistory)
	}
	if len(fx.dispatcher.orders) != 1 {
		t.Fatalf("dispatch calls = %d", len(fx.dispatcher.orders))
	}
}

func TestVerifyPaymentRejectsBadSignature(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
		OrderID:          session.Order.ID,
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        "forged",
	})
	if !errors.Is(err, ErrPaymentSignature) {
		t.Fatalf("expected ErrPaymentSignature, got %v", err)
	}

	stored, err := fx.repo.FindByID(ctx, session.Order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Status != domain.OrderStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if len(fx.dispatcher.orders) != 0 {
		t.Fatal("delivery dispatched for a failed verification")
	}
}

func TestVerifyPaymentIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	cmd := VerifyPaymentCommand{
		OrderID:          session.Order.ID,
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        signFor(session.GatewayOrderID, "pay_1"),
	}
	first, err := fx.svc.VerifyPayment(ctx, cmd)
	if err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	second, err := fx.svc.VerifyPayment(ctx, cmd)
	if err != nil {
		t.Fatalf("replayed verify failed: %v", err)
	}
	if len(second.StatusHistory) != len(first.StatusHistory) {
		t.Fatalf("history grew on replay: %d -> %d", len(first.StatusHistory), len(second.StatusHistory))
	}
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("completedAt moved on replay")
	}
	if len(fx.dispatcher.orders) != 1 {
		t.Fatalf("dispatch calls = %d, want 1", len(fx.dispatcher.orders))
	}
}

func TestVerifyPaymentEnforcesOwnership(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
		OrderID:          session.Order.ID,
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        signFor(session.GatewayOrderID, "pay_1"),
		UserID:           "intruder",
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCreateVerifiedOrderRejectsBadSignatureWithoutCreating(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)

	_, err := fx.svc.CreateVerifiedOrder(context.Background(), CreateVerifiedOrderCommand{
		Request: OrderRequest{
			ServiceType:     domain.ServiceTypeTemplatePurchase,
			UserID:          "user-1",
			UserEmail:       "user@example.com",
			DocumentType:    domain.DocumentTypeAgreement,
			PriceMinorUnits: 29900,
		},
		GatewayOrderID:   "order_gw_x",
		GatewayPaymentID: "pay_x",
		Signature:        "forged",
	})
	if !errors.Is(err, ErrPaymentSignature) {
		t.Fatalf("expected ErrPaymentSignature, got %v", err)
	}
	if len(fx.repo.store) != 0 {
		t.Fatal("order created despite signature failure")
	}
}

func TestCreateVerifiedOrderCompletesDraftWithArtifact(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)

	order, err := fx.svc.CreateVerifiedOrder(context.Background(), CreateVerifiedOrderCommand{
		Request: OrderRequest{
			ServiceType:     domain.ServiceTypeAIDraft,
			UserID:          "user-1",
			UserEmail:       "user@example.com",
			DocumentType:    domain.DocumentTypeAffidavit,
			PriceMinorUnits: 14900,
			Draft:           &DraftRequest{Body: "I, the deponent, solemnly affirm..."},
		},
		GatewayOrderID:   "order_gw_7",
		GatewayPaymentID: "pay_7",
		Signature:        signFor("order_gw_7", "pay_7"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("status = %s, want completed", order.Status)
	}
	if order.DocumentURL == "" {
		t.Fatal("rendered draft path not bound")
	}
	if order.FinalAmount != 14900 {
		t.Fatalf("amount = %d, want the declared 14900", order.FinalAmount)
	}
	if order.PaymentAt == nil {
		t.Fatal("paymentAt not stamped")
	}
	if len(fx.dispatcher.orders) != 1 {
		t.Fatalf("dispatch calls = %d", len(fx.dispatcher.orders))
	}
}

func TestCreateVerifiedOrderReplayReturnsExisting(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	cmd := CreateVerifiedOrderCommand{
		Request: OrderRequest{
			ServiceType:     domain.ServiceTypeTemplatePurchase,
			UserID:          "user-1",
			UserEmail:       "user@example.com",
			DocumentType:    domain.DocumentTypeAgreement,
			PriceMinorUnits: 29900,
		},
		GatewayOrderID:   "order_gw_9",
		GatewayPaymentID: "pay_9",
		Signature:        signFor("order_gw_9", "pay_9"),
	}
	first, err := fx.svc.CreateVerifiedOrder(ctx, cmd)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := fx.svc.CreateVerifiedOrder(ctx, cmd)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay created a new order: %s vs %s", second.ID, first.ID)
	}
	if len(fx.repo.store) != 1 {
		t.Fatalf("store holds %d orders, want 1", len(fx.repo.store))
	}
}

func TestVerifyPaymentRecordsDeliveryOutcome(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("delivered", func(t *testing.T) {
		fx := newCheckoutFixture(t, now)
		session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		order, err := fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
			OrderID:          session.Order.ID,
			GatewayOrderID:   session.GatewayOrderID,
			GatewayPaymentID: "pay_1",
			Signature:        signFor(session.GatewayOrderID, "pay_1"),
		})
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		if order.DeliveryStatus != domain.DeliveryStatusSent {
			t.Fatalf("delivery status = %s, want sent", order.DeliveryStatus)
		}
	})

	t.Run("dispatch failure", func(t *testing.T) {
		fx := newCheckoutFixture(t, now)
		fx.dispatcher.err = errBoom

		session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		order, err := fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
			OrderID:          session.Order.ID,
			GatewayOrderID:   session.GatewayOrderID,
			GatewayPaymentID: "pay_1",
			Signature:        signFor(session.GatewayOrderID, "pay_1"),
		})
		if err != nil {
			t.Fatalf("verify failed despite delivery error: %v", err)
		}
		if order.Status != domain.OrderStatusCompleted {
			t.Fatalf("status = %s, want completed", order.Status)
		}
		if order.DeliveryStatus != domain.DeliveryStatusFailed {
			t.Fatalf("delivery status = %s, want failed", order.DeliveryStatus)
		}

		stored, err := fx.repo.FindByID(ctx, session.Order.ID)
		if err != nil {
			t.Fatalf("reload order: %v", err)
		}
		if stored.DeliveryStatus != domain.DeliveryStatusFailed {
			t.Fatalf("persisted delivery status = %s, want failed", stored.DeliveryStatus)
		}
	})
}

func TestHandleGatewayWebhookRetriesFailedOrder(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A forged verify marks the order failed.
	_, err = fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
		OrderID:          session.Order.ID,
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        "forged",
	})
	if !errors.Is(err, ErrPaymentSignature) {
		t.Fatalf("expected ErrPaymentSignature, got %v", err)
	}

	outcome, err := fx.svc.HandleGatewayWebhook(ctx, GatewayWebhookEvent{
		Event:            "payment.captured",
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Status:           string(payments.GatewayStatusCaptured),
	})
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if !outcome.Applied {
		t.Fatalf("captured event not applied to failed order: %+v", outcome)
	}
	if outcome.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", outcome.Status)
	}

	stored, err := fx.repo.FindByID(ctx, session.Order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	// Pending and failed both appear in history, each recorded as the prior status.
	if len(stored.StatusHistory) != 2 || stored.StatusHistory[1].Status != domain.OrderStatusFailed {
		t.Fatalf("unexpected history %+v", stored.StatusHistory)
	}
}

func TestHandleGatewayWebhookAppliesCaptureOnce(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	event := GatewayWebhookEvent{
		EventID:          "evt_1",
		Event:            "payment.captured",
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Status:           string(payments.GatewayStatusCaptured),
	}
	outcome, err := fx.svc.HandleGatewayWebhook(ctx, event)
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if !outcome.Applied || outcome.Duplicate {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Status != domain.OrderStatusProcessing {
		t.Fatalf("status = %s, want processing", outcome.Status)
	}

	replay, err := fx.svc.HandleGatewayWebhook(ctx, event)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replay.Applied || !replay.Duplicate {
		t.Fatalf("replay outcome %+v, want duplicate", replay)
	}

	stored, err := fx.repo.FindByID(ctx, session.Order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if len(stored.StatusHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(stored.StatusHistory))
	}
	if stored.Payment.PaymentID != "pay_1" {
		t.Fatalf("payment id not captured: %+v", stored.Payment)
	}
}

func TestHandleGatewayWebhookNeverRewindsCompletedOrder(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	completed, err := fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
		OrderID:          session.Order.ID,
		GatewayOrderID:   session.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        signFor(session.GatewayOrderID, "pay_1"),
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	outcome, err := fx.svc.HandleGatewayWebhook(ctx, GatewayWebhookEvent{
		Event:          "payment.failed",
		GatewayOrderID: session.GatewayOrderID,
		Status:         string(payments.GatewayStatusFailed),
	})
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if outcome.Applied {
		t.Fatal("failed event applied to a completed order")
	}
	if outcome.Status != domain.OrderStatusCompleted {
		t.Fatalf("status = %s, want completed", outcome.Status)
	}

	stored, err := fx.repo.FindByID(ctx, session.Order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !stored.CompletedAt.Equal(*completed.CompletedAt) {
		t.Fatal("completedAt changed after webhook")
	}
}

func TestHandleGatewayWebhookIgnoresIrrelevantEvents(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	outcome, err := fx.svc.HandleGatewayWebhook(ctx, GatewayWebhookEvent{
		Event:          "payment.authorized",
		GatewayOrderID: session.GatewayOrderID,
		Status:         string(payments.GatewayStatusAuthorized),
	})
	if err != nil {
		t.Fatalf("webhook failed: %v", err)
	}
	if outcome.Applied {
		t.Fatal("authorized event changed the order")
	}

	stored, err := fx.repo.FindByID(ctx, session.Order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
}

func TestHandleGatewayWebhookUnknownOrder(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)

	_, err := fx.svc.HandleGatewayWebhook(context.Background(), GatewayWebhookEvent{
		Event:          "payment.captured",
		GatewayOrderID: "order_gw_missing",
		Status:         string(payments.GatewayStatusCaptured),
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestVerifyPaymentRejectsMismatchedGatewayOrder(t *testing.T) {
	now := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	fx := newCheckoutFixture(t, now)
	ctx := context.Background()

	session, err := fx.svc.CreateGatewayOrder(ctx, notaryRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = fx.svc.VerifyPayment(ctx, VerifyPaymentCommand{
		OrderID:          session.Order.ID,
		GatewayOrderID:   "order_gw_other",
		GatewayPaymentID: "pay_1",
		Signature:        signFor("order_gw_other", "pay_1"),
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}
