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

// AdminHandlers exposes the staff order console: list everything, move any
// order through the lifecycle.
type AdminHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminHandlers {
	return &AdminHandlers{authn: authn, orders: orders}
}

// Routes registers the /admin/orders endpoints. The order console is admin
// only even when the surrounding admin group admits notary staff.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(AdminOnly(h.authn))
		}
		g.Get("/orders", h.listOrders)
		g.Patch("/orders/{orderID}/status", h.updateOrderStatus)
	})
}

// listOrders returns all orders newest first, optionally filtered.
func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	filter, herr := parseListFilter(r)
	if herr != nil {
		httpx.WriteError(ctx, w, *herr)
		return
	}
	if userID := strings.TrimSpace(r.URL.Query().Get("user_id")); userID != "" {
		filter.UserID = userID
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderListView(page))
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
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

// AdminOnly gates a route group behind the admin role.
func AdminOnly(authn *auth.Authenticator) func(http.Handler) http.Handler {
	if authn == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return authn.RequireAuth(auth.RoleAdmin)
}

// StaffOnly gates a route group behind the notary and admin roles.
func StaffOnly(authn *auth.Authenticator) func(http.Handler) http.Handler {
	if authn == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return authn.RequireAuth(auth.RoleNotary, auth.RoleAdmin)
}
