package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexserve/api/internal/delivery"
	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/repositories"
	"github.com/lexserve/api/internal/services"
)

type stubOrderService struct {
	order    domain.ServiceOrder
	page     domain.CursorPage[domain.ServiceOrder]
	grant    services.DownloadGrant
	err      error
	lastCmd  services.OrderStatusTransitionCommand
	lastFilt repositories.OrderListFilter
}

func (s *stubOrderService) GetOrder(_ context.Context, orderID, requesterID string) (domain.ServiceOrder, error) {
	if s.err != nil {
		return domain.ServiceOrder{}, s.err
	}
	if requesterID != "" && s.order.UserID != requesterID {
		return domain.ServiceOrder{}, fmt.Errorf("%w: order %s", services.ErrOrderNotFound, orderID)
	}
	return s.order, nil
}

func (s *stubOrderService) ListOrders(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.ServiceOrder], error) {
	s.lastFilt = filter
	return s.page, s.err
}

func (s *stubOrderService) TransitionStatus(_ context.Context, cmd services.OrderStatusTransitionCommand) (domain.ServiceOrder, error) {
	s.lastCmd = cmd
	if s.err != nil {
		return domain.ServiceOrder{}, s.err
	}
	return s.order, nil
}

func (s *stubOrderService) RecordDownload(context.Context, services.DownloadCommand) (services.DownloadGrant, error) {
	if s.err != nil {
		return services.DownloadGrant{}, s.err
	}
	return s.grant, nil
}

func (s *stubOrderService) PurgeExpired(context.Context) (int, error) { return 0, s.err }

type stubCheckoutService struct {
	session services.CheckoutSession
	order   domain.ServiceOrder
	outcome services.WebhookOutcome
	err     error
	lastReq services.OrderRequest
}

func (s *stubCheckoutService) CreateGatewayOrder(_ context.Context, req services.OrderRequest) (services.CheckoutSession, error) {
	s.lastReq = req
	if s.err != nil {
		return services.CheckoutSession{}, s.err
	}
	return s.session, nil
}

func (s *stubCheckoutService) VerifyPayment(context.Context, services.VerifyPaymentCommand) (domain.ServiceOrder, error) {
	if s.err != nil {
		return domain.ServiceOrder{}, s.err
	}
	return s.order, nil
}

func (s *stubCheckoutService) CreateVerifiedOrder(_ context.Context, cmd services.CreateVerifiedOrderCommand) (domain.ServiceOrder, error) {
	s.lastReq = cmd.Request
	if s.err != nil {
		return domain.ServiceOrder{}, s.err
	}
	return s.order, nil
}

func (s *stubCheckoutService) HandleGatewayWebhook(context.Context, services.GatewayWebhookEvent) (services.WebhookOutcome, error) {
	if s.err != nil {
		return services.WebhookOutcome{}, s.err
	}
	return s.outcome, nil
}

type stubNotaryService struct {
	order   domain.ServiceOrder
	err     error
	lastCmd services.NotaryTransitionCommand
}

func (s *stubNotaryService) TransitionNotary(_ context.Context, cmd services.NotaryTransitionCommand) (domain.ServiceOrder, error) {
	s.lastCmd = cmd
	if s.err != nil {
		return domain.ServiceOrder{}, s.err
	}
	return s.order, nil
}

func (s *stubNotaryService) AttachScan(context.Context, services.AttachScanCommand) (domain.ServiceOrder, error) {
	if s.err != nil {
		return domain.ServiceOrder{}, s.err
	}
	return s.order, nil
}

func sampleOrder() domain.ServiceOrder {
	created := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return domain.ServiceOrder{
		ID:             "ord_1",
		UserID:         "user-1",
		UserEmail:      "user@example.com",
		ServiceType:    domain.ServiceTypeDocumentDownload,
		ServiceName:    "Rental agreement",
		DocumentType:   domain.DocumentTypeAgreement,
		Price:          19900,
		FinalAmount:    19900,
		Currency:       domain.CurrencyINR,
		Status:         domain.OrderStatusPending,
		DeliveryMethod: domain.DeliveryMethodDownload,
		DeliveryStatus: domain.DeliveryStatusPending,
		Payment:        domain.PaymentLink{OrderID: "order_gw_1"},
		CreatedAt:      created,
		UpdatedAt:      created,
		ExpiresAt:      created.Add(domain.OrderRetention),
	}
}

func authedRequest(method, target string, body any, identity *auth.Identity, params map[string]string) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range params {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

func userIdentity() *auth.Identity {
	return &auth.Identity{UID: "user-1", Email: "user@example.com", Roles: []string{auth.RoleUser}}
}

func adminIdentity() *auth.Identity {
	return &auth.Identity{UID: "admin-1", Email: "admin@example.com", Roles: []string{auth.RoleAdmin}}
}

func TestCreatePaymentOrderConvertsDeclaredPrice(t *testing.T) {
	checkout := &stubCheckoutService{
		session: services.CheckoutSession{
			Order:          sampleOrder(),
			GatewayOrderID: "order_gw_1",
			Amount:         19900,
			Currency:       "INR",
			GatewayKeyID:   "rzp_test_key",
		},
	}
	h := NewPaymentHandlers(nil, checkout, nil)

	req := authedRequest(http.MethodPost, "/payments/orders", map[string]any{
		"price":        199,
		"serviceName":  "Rental agreement",
		"documentType": "agreement",
	}, userIdentity(), nil)
	rr := httptest.NewRecorder()
	h.createOrder(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if checkout.lastReq.PriceMinorUnits != 19900 {
		t.Fatalf("price = %d paise, want 19900", checkout.lastReq.PriceMinorUnits)
	}
	if checkout.lastReq.ServiceType != domain.ServiceTypeDocumentDownload {
		t.Fatalf("service type = %s", checkout.lastReq.ServiceType)
	}

	var body struct {
		RazorpayOrderID string `json:"razorpayOrderId"`
		KeyID           string `json:"keyId"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.RazorpayOrderID != "order_gw_1" || body.KeyID != "rzp_test_key" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCreatePaymentOrderRequiresIdentity(t *testing.T) {
	h := NewPaymentHandlers(nil, &stubCheckoutService{}, nil)
	req := authedRequest(http.MethodPost, "/payments/orders", map[string]any{"price": 199}, nil, nil)
	rr := httptest.NewRecorder()
	h.createOrder(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestVerifyPaymentMapsSignatureFailure(t *testing.T) {
	checkout := &stubCheckoutService{err: services.ErrPaymentSignature}
	h := NewPaymentHandlers(nil, checkout, nil)

	req := authedRequest(http.MethodPost, "/payments/verify", map[string]any{
		"orderId":           "ord_1",
		"razorpayOrderId":   "order_gw_1",
		"razorpayPaymentId": "pay_1",
		"razorpaySignature": "bogus",
	}, userIdentity(), nil)
	rr := httptest.NewRecorder()
	h.verify(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_signature") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestGetOrderOwnershipMiss(t *testing.T) {
	svc := &stubOrderService{order: sampleOrder()}
	h := NewOrderHandlers(nil, svc)

	intruder := &auth.Identity{UID: "intruder", Roles: []string{auth.RoleUser}}
	req := authedRequest(http.MethodGet, "/orders/ord_1", nil, intruder, map[string]string{"orderID": "ord_1"})
	rr := httptest.NewRecorder()
	h.getOrder(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestListOrdersScopedToCaller(t *testing.T) {
	svc := &stubOrderService{page: domain.CursorPage[domain.ServiceOrder]{Items: []domain.ServiceOrder{sampleOrder()}}}
	h := NewOrderHandlers(nil, svc)

	req := authedRequest(http.MethodGet, "/orders?status=completed&page_size=5", nil, userIdentity(), nil)
	rr := httptest.NewRecorder()
	h.listOrders(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if svc.lastFilt.UserID != "user-1" {
		t.Fatalf("filter user = %q, want caller", svc.lastFilt.UserID)
	}
	if svc.lastFilt.Pagination.PageSize != 5 {
		t.Fatalf("page size = %d", svc.lastFilt.Pagination.PageSize)
	}
}

func TestListOrdersRejectsMalformedPageToken(t *testing.T) {
	svc := &stubOrderService{}
	h := NewOrderHandlers(nil, svc)

	req := authedRequest(http.MethodGet, "/orders?page_token=%21%21%21", nil, userIdentity(), nil)
	rr := httptest.NewRecorder()
	h.listOrders(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestDownloadOrderMapsNotDownloadable(t *testing.T) {
	svc := &stubOrderService{err: services.ErrOrderNotDownloadable}
	h := NewOrderHandlers(nil, svc)

	req := authedRequest(http.MethodGet, "/orders/ord_1/download", nil, userIdentity(), map[string]string{"orderID": "ord_1"})
	rr := httptest.NewRecorder()
	h.downloadOrder(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestNotaryStatusUpdateMapsInvalidTransition(t *testing.T) {
	notary := &stubNotaryService{err: services.ErrOrderInvalidState}
	h := NewNotaryHandlers(nil, nil, notary, nil)

	req := authedRequest(http.MethodPost, "/admin/notary/ord_1/status", map[string]any{
		"status": "completed",
	}, adminIdentity(), map[string]string{"orderID": "ord_1"})
	rr := httptest.NewRecorder()
	h.updateStatus(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_transition") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestNotaryStatusUpdatePassesCommand(t *testing.T) {
	order := sampleOrder()
	order.ServiceType = domain.ServiceTypeNotary
	order.Notary = &domain.NotaryDetails{Type: domain.NotaryTypeDigital, Status: domain.NotaryStatusAssigned}
	notary := &stubNotaryService{order: order}
	h := NewNotaryHandlers(nil, nil, notary, nil)

	req := authedRequest(http.MethodPost, "/admin/notary/ord_1/status", map[string]any{
		"status":   "assigned",
		"notaryId": "notary-7",
	}, adminIdentity(), map[string]string{"orderID": "ord_1"})
	rr := httptest.NewRecorder()
	h.updateStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if notary.lastCmd.Target != domain.NotaryStatusAssigned || notary.lastCmd.NotaryID != "notary-7" {
		t.Fatalf("command = %+v", notary.lastCmd)
	}
	if notary.lastCmd.ActorID != "admin-1" {
		t.Fatalf("actor = %q", notary.lastCmd.ActorID)
	}
}

type stubScanUploads struct {
	grant delivery.ScanUploadGrant
	err   error

	lastOrderID     string
	lastFileName    string
	lastContentType string
}

func (s *stubScanUploads) SignedScanUploadURL(_ context.Context, orderID, fileName, contentType string) (delivery.ScanUploadGrant, error) {
	s.lastOrderID = orderID
	s.lastFileName = fileName
	s.lastContentType = contentType
	if s.err != nil {
		return delivery.ScanUploadGrant{}, s.err
	}
	return s.grant, nil
}

func TestNotaryScanUploadURL(t *testing.T) {
	uploads := &stubScanUploads{grant: delivery.ScanUploadGrant{
		ObjectPath: "orders/ord_1/notary/scan.pdf",
		URL:        "https://storage.example.com/upload?sig=abc",
		Method:     "PUT",
		ExpiresAt:  time.Date(2026, 3, 5, 12, 15, 0, 0, time.UTC),
		Headers:    map[string]string{"Content-Type": "application/pdf"},
	}}
	h := NewNotaryHandlers(nil, nil, nil, uploads)

	req := authedRequest(http.MethodPost, "/admin/notary/ord_1/scan/upload-url", map[string]any{
		"fileName":    "scan.pdf",
		"contentType": "application/pdf",
	}, adminIdentity(), map[string]string{"orderID": "ord_1"})
	rr := httptest.NewRecorder()
	h.scanUploadURL(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if uploads.lastOrderID != "ord_1" || uploads.lastFileName != "scan.pdf" || uploads.lastContentType != "application/pdf" {
		t.Fatalf("signer got %q %q %q", uploads.lastOrderID, uploads.lastFileName, uploads.lastContentType)
	}
	if !strings.Contains(rr.Body.String(), "orders/ord_1/notary/scan.pdf") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestNotaryScanUploadURLRejectsSignerError(t *testing.T) {
	uploads := &stubScanUploads{err: errors.New("delivery: scan object path: bad file name")}
	h := NewNotaryHandlers(nil, nil, nil, uploads)

	req := authedRequest(http.MethodPost, "/admin/notary/ord_1/scan/upload-url", map[string]any{
		"fileName":    "../escape.pdf",
		"contentType": "application/pdf",
	}, adminIdentity(), map[string]string{"orderID": "ord_1"})
	rr := httptest.NewRecorder()
	h.scanUploadURL(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	svc := &stubOrderService{order: sampleOrder()}
	h := NewAdminHandlers(nil, svc)

	req := authedRequest(http.MethodPatch, "/admin/orders/ord_1/status", map[string]any{
		"status": "processing",
		"reason": "payment confirmed manually",
	}, adminIdentity(), map[string]string{"orderID": "ord_1"})
	rr := httptest.NewRecorder()
	h.updateOrderStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if svc.lastCmd.Status != domain.OrderStatusProcessing {
		t.Fatalf("command = %+v", svc.lastCmd)
	}
}

func TestRazorpayWebhookOutcome(t *testing.T) {
	checkout := &stubCheckoutService{
		outcome: services.WebhookOutcome{
			OrderID: "ord_1",
			Status:  domain.OrderStatusProcessing,
			Applied: true,
		},
	}
	h := NewWebhookHandlers(checkout)

	payload := map[string]any{
		"event": "payment.captured",
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       "pay_1",
					"order_id": "order_gw_1",
					"status":   "captured",
				},
			},
		},
	}
	req := authedRequest(http.MethodPost, "/webhooks/razorpay", payload, nil, nil)
	rr := httptest.NewRecorder()
	h.razorpay(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var body struct {
		OrderID string `json:"orderId"`
		Applied bool   `json:"applied"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.OrderID != "ord_1" || !body.Applied {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestCreateAIDraftForwardsProof(t *testing.T) {
	order := sampleOrder()
	order.ServiceType = domain.ServiceTypeAIDraft
	order.Status = domain.OrderStatusCompleted
	checkout := &stubCheckoutService{order: order}
	h := NewDocumentHandlers(nil, checkout)

	req := authedRequest(http.MethodPost, "/documents/ai-draft", map[string]any{
		"razorpayOrderId":   "order_gw_2",
		"razorpayPaymentId": "pay_2",
		"razorpaySignature": "sig",
		"documentType":      "affidavit",
		"body":              "I, the deponent...",
		"price":             149,
	}, userIdentity(), nil)
	rr := httptest.NewRecorder()
	h.createAIDraft(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if checkout.lastReq.Draft == nil || checkout.lastReq.Draft.Body == "" {
		t.Fatalf("draft not forwarded: %+v", checkout.lastReq)
	}
	if checkout.lastReq.PriceMinorUnits != 14900 {
		t.Fatalf("price = %d paise", checkout.lastReq.PriceMinorUnits)
	}
}

func TestRouterHealthAndUnknownRoute(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), errorNotFoundCode) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestRouterMountsConfiguredGroups(t *testing.T) {
	svc := &stubOrderService{page: domain.CursorPage[domain.ServiceOrder]{}}
	orderHandlers := NewOrderHandlers(nil, svc)

	router := NewRouter(WithOrderRoutes(orderHandlers.Routes))

	req := authedRequest(http.MethodGet, "/api/v1/orders", nil, userIdentity(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("orders status = %d, body %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", bytes.NewReader(nil))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("unconfigured group status = %d", rr.Code)
	}
}
