package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexserve/api/internal/platform/httpx"
	"github.com/lexserve/api/internal/services"
)

type razorpayWebhookPayload struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// WebhookHandlers reconciles asynchronous gateway notifications. The route
// group is guarded by the webhook signature middleware, not bearer auth.
type WebhookHandlers struct {
	checkout services.CheckoutService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(checkout services.CheckoutService) *WebhookHandlers {
	return &WebhookHandlers{checkout: checkout}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/razorpay", h.razorpay)
}

func (h *WebhookHandlers) razorpay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload razorpayWebhookPayload
	if !decodeWebhookJSON(w, r, &payload) {
		return
	}

	occurredAt := time.Now().UTC()
	if payload.CreatedAt > 0 {
		occurredAt = time.Unix(payload.CreatedAt, 0).UTC()
	}

	outcome, err := h.checkout.HandleGatewayWebhook(ctx, services.GatewayWebhookEvent{
		EventID:          strings.TrimSpace(r.Header.Get("X-Razorpay-Event-Id")),
		Event:            strings.TrimSpace(payload.Event),
		GatewayOrderID:   strings.TrimSpace(payload.Payload.Payment.Entity.OrderID),
		GatewayPaymentID: strings.TrimSpace(payload.Payload.Payment.Entity.ID),
		Status:           strings.TrimSpace(payload.Payload.Payment.Entity.Status),
		OccurredAt:       occurredAt,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orderId":   outcome.OrderID,
		"status":    string(outcome.Status),
		"applied":   outcome.Applied,
		"duplicate": outcome.Duplicate,
	})
}
