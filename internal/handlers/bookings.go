package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/services"
)

type createPriorityBookingRequest struct {
	Phone         string `json:"phone"`
	PreferredSlot string `json:"preferredSlot"`
	Topic         string `json:"topic"`
	ServiceName   string `json:"serviceName"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// BookingHandlers serves priority consultation bookings.
type BookingHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	orders   services.OrderService
}

// NewBookingHandlers constructs a new BookingHandlers instance.
func NewBookingHandlers(authn *auth.Authenticator, checkout services.CheckoutService, orders services.OrderService) *BookingHandlers {
	return &BookingHandlers{
		authn:    authn,
		checkout: checkout,
		orders:   orders,
	}
}

// Routes registers the customer-facing /bookings endpoints.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/priority", h.createBooking)
	r.Get("/priority/{orderID}", h.getBooking)
}

// AdminRoutes registers the staff /admin/bookings endpoints.
func (h *BookingHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Patch("/bookings/priority/{orderID}", h.updateBookingStatus)
}

func (h *BookingHandlers) createBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	var req createPriorityBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.checkout.CreateGatewayOrder(ctx, services.OrderRequest{
		ServiceType: domain.ServiceTypeLegalConsultation,
		UserID:      identity.UID,
		UserEmail:   identity.Email,
		ServiceName: req.ServiceName,
		Booking: &services.PriorityBookingRequest{
			Phone:         req.Phone,
			PreferredSlot: req.PreferredSlot,
			Topic:         req.Topic,
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

func (h *BookingHandlers) getBooking(w http.ResponseWriter, r *http.Request) {
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

func (h *BookingHandlers) updateBookingStatus(w http.ResponseWriter, r *http.Request) {
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
