package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/platform/httpx"
	"github.com/lexserve/api/internal/services"
)

type createPaymentOrderRequest struct {
	Price        int64  `json:"price"`
	ServiceName  string `json:"serviceName"`
	DocumentType string `json:"documentType"`
	Currency     string `json:"currency"`
}

type verifyPaymentRequest struct {
	OrderID           string `json:"orderId"`
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

// PaymentHandlers serves the create-then-verify checkout protocol.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	limiter  RateLimiter
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(authn *auth.Authenticator, checkout services.CheckoutService, limiter RateLimiter) *PaymentHandlers {
	return &PaymentHandlers{
		authn:    authn,
		checkout: checkout,
		limiter:  limiter,
	}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/orders", h.createOrder)
	r.Post("/verify", h.verify)
}

// createOrder opens a gateway order for a paid template download. Price is
// declared by the caller in whole rupees; the order stays pending until the
// companion /verify call succeeds.
func (h *PaymentHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts", http.StatusTooManyRequests))
		return
	}

	var req createPaymentOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.checkout.CreateGatewayOrder(ctx, services.OrderRequest{
		ServiceType:     domain.ServiceTypeDocumentDownload,
		UserID:          identity.UID,
		UserEmail:       identity.Email,
		ServiceName:     req.ServiceName,
		DocumentType:    domain.DocumentType(strings.TrimSpace(req.DocumentType)),
		Currency:        domain.Currency(strings.ToUpper(strings.TrimSpace(req.Currency))),
		PriceMinorUnits: req.Price * 100,
		ClientIP:        r.RemoteAddr,
		UserAgent:       r.UserAgent(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newCheckoutSessionView(session))
}

func (h *PaymentHandlers) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.checkout.VerifyPayment(ctx, services.VerifyPaymentCommand{
		OrderID:          strings.TrimSpace(req.OrderID),
		GatewayOrderID:   strings.TrimSpace(req.RazorpayOrderID),
		GatewayPaymentID: strings.TrimSpace(req.RazorpayPaymentID),
		Signature:        strings.TrimSpace(req.RazorpaySignature),
		UserID:           identity.UID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderView(order))
}
