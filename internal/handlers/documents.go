package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/services"
)

type gatewayProof struct {
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

type createAIDraftRequest struct {
	gatewayProof
	DocumentType string `json:"documentType"`
	ServiceName  string `json:"serviceName"`
	Body         string `json:"body"`
	Price        int64  `json:"price"`
}

type createInstantDownloadRequest struct {
	gatewayProof
	DocumentType string `json:"documentType"`
	ServiceName  string `json:"serviceName"`
	Price        int64  `json:"price"`
}

type createTemplatePurchaseRequest struct {
	gatewayProof
	DocumentType string `json:"documentType"`
	TemplateID   string `json:"templateId"`
	ServiceName  string `json:"serviceName"`
	Price        int64  `json:"price"`
}

// DocumentHandlers serves the verify-before-create flows: the payment proof
// arrives with the request and no order exists until the signature passes.
type DocumentHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewDocumentHandlers constructs a new DocumentHandlers instance.
func NewDocumentHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *DocumentHandlers {
	return &DocumentHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers the /documents endpoints.
func (h *DocumentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/ai-draft", h.createAIDraft)
	r.Post("/instant", h.createInstantDownload)
}

// TemplateRoutes registers the /templates endpoints.
func (h *DocumentHandlers) TemplateRoutes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/purchase", h.createTemplatePurchase)
}

func (h *DocumentHandlers) createAIDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	var req createAIDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.checkout.CreateVerifiedOrder(ctx, services.CreateVerifiedOrderCommand{
		Request: services.OrderRequest{
			ServiceType:     domain.ServiceTypeAIDraft,
			UserID:          identity.UID,
			UserEmail:       identity.Email,
			ServiceName:     req.ServiceName,
			DocumentType:    domain.DocumentType(strings.TrimSpace(req.DocumentType)),
			PriceMinorUnits: req.Price * 100,
			Draft:           &services.DraftRequest{Body: req.Body, PriceMinorUnits: req.Price * 100},
			ClientIP:        r.RemoteAddr,
			UserAgent:       r.UserAgent(),
		},
		GatewayOrderID:   strings.TrimSpace(req.RazorpayOrderID),
		GatewayPaymentID: strings.TrimSpace(req.RazorpayPaymentID),
		Signature:        strings.TrimSpace(req.RazorpaySignature),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newOrderView(order))
}

func (h *DocumentHandlers) createInstantDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	var req createInstantDownloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.checkout.CreateVerifiedOrder(ctx, services.CreateVerifiedOrderCommand{
		Request: services.OrderRequest{
			ServiceType:     domain.ServiceTypeDocumentDownload,
			UserID:          identity.UID,
			UserEmail:       identity.Email,
			ServiceName:     req.ServiceName,
			DocumentType:    domain.DocumentType(strings.TrimSpace(req.DocumentType)),
			PriceMinorUnits: req.Price * 100,
			ClientIP:        r.RemoteAddr,
			UserAgent:       r.UserAgent(),
		},
		GatewayOrderID:   strings.TrimSpace(req.RazorpayOrderID),
		GatewayPaymentID: strings.TrimSpace(req.RazorpayPaymentID),
		Signature:        strings.TrimSpace(req.RazorpaySignature),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newOrderView(order))
}

func (h *DocumentHandlers) createTemplatePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.checkout != nil)
	if !ok {
		return
	}

	var req createTemplatePurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.checkout.CreateVerifiedOrder(ctx, services.CreateVerifiedOrderCommand{
		Request: services.OrderRequest{
			ServiceType:     domain.ServiceTypeTemplatePurchase,
			UserID:          identity.UID,
			UserEmail:       identity.Email,
			ServiceName:     req.ServiceName,
			DocumentType:    domain.DocumentType(strings.TrimSpace(req.DocumentType)),
			PriceMinorUnits: req.Price * 100,
			Draft:           &services.DraftRequest{TemplateID: req.TemplateID},
			ClientIP:        r.RemoteAddr,
			UserAgent:       r.UserAgent(),
		},
		GatewayOrderID:   strings.TrimSpace(req.RazorpayOrderID),
		GatewayPaymentID: strings.TrimSpace(req.RazorpayPaymentID),
		Signature:        strings.TrimSpace(req.RazorpaySignature),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newOrderView(order))
}
