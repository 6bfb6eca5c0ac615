package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexserve/api/internal/delivery"
	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/platform/httpx"
	"github.com/lexserve/api/internal/platform/storage"
	"github.com/lexserve/api/internal/services"
)

type createNotaryBookingRequest struct {
	NotaryType           string `json:"notaryType"`
	StampValue           int64  `json:"stampValue"`
	RequiresRegistration bool   `json:"requiresRegistration"`
	DocumentType         string `json:"documentType"`
	DocumentDescription  string `json:"documentDescription"`
	DeliveryAddress      string `json:"deliveryAddress"`
	SpecialInstructions  string `json:"specialInstructions"`
	ServiceName          string `json:"serviceName"`
}

type notaryStatusRequest struct {
	Status   string `json:"status"`
	NotaryID string `json:"notaryId"`
	Reason   string `json:"reason"`
}

type notaryScanRequest struct {
	DocumentURL string `json:"documentUrl"`
}

type scanUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

// ScanUploadSigner issues signed upload URLs for notary scan objects.
type ScanUploadSigner interface {
	SignedScanUploadURL(ctx context.Context, orderID, fileName, contentType string) (delivery.ScanUploadGrant, error)
}

// NotaryHandlers serves notarisation bookings and the staff workflow.
type NotaryHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
	notary   services.NotaryService
	uploads  ScanUploadSigner
}

// NewNotaryHandlers constructs a new NotaryHandlers instance.
func NewNotaryHandlers(authn *auth.Authenticator, checkout services.CheckoutService, notary services.NotaryService, uploads ScanUploadSigner) *NotaryHandlers {
	return &NotaryHandlers{
		authn:    authn,
		checkout: checkout,
		notary:   notary,
		uploads:  uploads,
	}
}

// Routes registers the customer-facing /notary endpoints.
func (h *NotaryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/bookings", h.createBooking)
}

// AdminRoutes registers the staff /admin/notary endpoints.
func (h *NotaryHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/notary/{orderID}/status", h.updateStatus)
	r.Post("/notary/{orderID}/scan", h.attachScan)
	r.Post("/notary/{orderID}/scan/upload-url", h.scanUploadURL)
}

// createBooking opens a gateway order for a notarisation. Pricing is computed
// server-side from the booking parameters.
func (h *NotaryHandlers) createBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	var req createNotaryBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.checkout.CreateGatewayOrder(ctx, services.OrderRequest{
		ServiceType:  domain.ServiceTypeNotary,
		UserID:       identity.UID,
		UserEmail:    identity.Email,
		ServiceName:  req.ServiceName,
		DocumentType: domain.DocumentType(strings.TrimSpace(req.DocumentType)),
		Notary: &services.NotaryBookingRequest{
			Type:                 domain.NotaryType(strings.TrimSpace(req.NotaryType)),
			StampValue:           req.StampValue,
			RequiresRegistration: req.RequiresRegistration,
			DocumentDescription:  req.DocumentDescription,
			DeliveryAddress:      req.DeliveryAddress,
			SpecialInstructions:  req.SpecialInstructions,
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

func (h *NotaryHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.notary != nil)
	if !ok {
		return
	}

	var req notaryStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.notary.TransitionNotary(ctx, services.NotaryTransitionCommand{
		OrderID:  strings.TrimSpace(chi.URLParam(r, "orderID")),
		Target:   domain.NotaryStatus(strings.TrimSpace(req.Status)),
		NotaryID: strings.TrimSpace(req.NotaryID),
		Reason:   req.Reason,
		ActorID:  identity.UID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderView(order))
}

// scanUploadURL issues a signed PUT URL the notary desk uploads the scan
// through before attaching it.
func (h *NotaryHandlers) scanUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireIdentity(ctx, w, h.uploads != nil); !ok {
		return
	}

	var req scanUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	grant, err := h.uploads.SignedScanUploadURL(ctx,
		strings.TrimSpace(chi.URLParam(r, "orderID")),
		strings.TrimSpace(req.FileName),
		strings.TrimSpace(req.ContentType),
	)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	writeJSON(w, http.StatusCreated, scanUploadView{
		ObjectPath: grant.ObjectPath,
		URL:        grant.URL,
		Method:     grant.Method,
		ExpiresAt:  grant.ExpiresAt.UTC().Format(time.RFC3339),
		Headers:    grant.Headers,
	})
}

type scanUploadView struct {
	ObjectPath string            `json:"objectPath"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	ExpiresAt  string            `json:"expiresAt"`
	Headers    map[string]string `json:"headers,omitempty"`
}

func (h *NotaryHandlers) attachScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.notary != nil)
	if !ok {
		return
	}

	var req notaryScanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	documentURL := strings.TrimSpace(req.DocumentURL)

	// A bare file name refers to an upload in the scans bucket; derive its
	// canonical order-scoped object key.
	if documentURL != "" && !strings.Contains(documentURL, "/") {
		built, err := storage.BuildObjectPath(storage.PurposeNotaryScan, storage.PathParams{
			OrderID:  orderID,
			FileName: documentURL,
		})
		if err != nil {
			writeServiceError(ctx, w, services.NewValidationError("documentUrl"))
			return
		}
		documentURL = built
	}

	order, err := h.notary.AttachScan(ctx, services.AttachScanCommand{
		OrderID:     orderID,
		DocumentURL: documentURL,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderView(order))
}
