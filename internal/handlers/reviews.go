package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/services"
)

type createReviewRequest struct {
	DocumentURL     string `json:"documentUrl"`
	TurnaroundHours int    `json:"turnaroundHours"`
	Notes           string `json:"notes"`
	DocumentType    string `json:"documentType"`
	ServiceName     string `json:"serviceName"`
}

// ReviewHandlers serves human document review submissions.
type ReviewHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	orders   services.OrderService
}

// NewReviewHandlers constructs a new ReviewHandlers instance.
func NewReviewHandlers(authn *auth.Authenticator, checkout services.CheckoutService, orders services.OrderService) *ReviewHandlers {
	return &ReviewHandlers{
		authn:    authn,
		checkout: checkout,
		orders:   orders,
	}
}

// Routes registers the customer-facing /reviews endpoints.
func (h *ReviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.createReview)
	r.Get("/{orderID}", h.getReview)
}

// AdminRoutes registers the staff /admin/reviews endpoints.
func (h *ReviewHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Patch("/reviews/{orderID}/status", h.updateReviewStatus)
}

// createReview opens a gateway order for a document review. The price comes
// from the turnaround schedule, never from the caller.
func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	var req createReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.checkout.CreateGatewayOrder(ctx, services.OrderRequest{
		ServiceType:  domain.ServiceTypeDocumentReview,
		UserID:       identity.UID,
		UserEmail:    identity.Email,
		ServiceName:  req.ServiceName,
		DocumentType: domain.DocumentType(strings.TrimSpace(req.DocumentType)),
		Review: &services.ReviewRequest{
			DocumentURL:     req.DocumentURL,
			TurnaroundHours: req.TurnaroundHours,
			Notes:           req.Notes,
		},
		ClientIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newCheckoutSessionView(session))
}

func (h *ReviewHandlers) getReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")), identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderView(order))
}

func (h *ReviewHandlers) updateReviewStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Status:  domain.OrderStatus(strings.TrimSpace(req.Status)),
		Reason:  req.Reason,
		ActorID: identity.UID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderView(order))
}
