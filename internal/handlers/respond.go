package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/payments"
	"github.com/lexserve/api/internal/platform/auth"
	"github.com/lexserve/api/internal/platform/httpx"
	"github.com/lexserve/api/internal/platform/pagination"
	"github.com/lexserve/api/internal/platform/storage"
	"github.com/lexserve/api/internal/repositories"
	"github.com/lexserve/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxJSONBodySize      = 64 * 1024
)

// requireIdentity enforces the shared service-available and authenticated
// preconditions of user-facing handlers.
func requireIdentity(ctx context.Context, w http.ResponseWriter, serviceReady bool) (*auth.Identity, bool) {
	if !serviceReady {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	defer body.Close()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

// decodeWebhookJSON is the lenient variant for gateway payloads, which carry
// many fields beyond the ones reconciliation reads.
func decodeWebhookJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

// writeServiceError maps domain errors onto the canonical envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", verr.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"fields": verr.Fields()}))
	case errors.Is(err, services.ErrPaymentSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "payment signature verification failed", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrTemplateNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "the request conflicts with the current order state", http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotDownloadable):
		httpx.WriteError(ctx, w, httpx.NewError("not_downloadable", err.Error(), http.StatusConflict))
	case errors.Is(err, storage.ErrPermissionDenied):
		httpx.WriteError(ctx, w, httpx.NewError("permission_denied", "you do not have access to this artifact", http.StatusForbidden))
	case errors.Is(err, payments.ErrGatewayUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_unavailable", "payment gateway request failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "an unexpected error occurred", http.StatusInternalServerError))
	}
}

func parseListFilter(r *http.Request) (repositories.OrderListFilter, *httpx.Error) {
	query := r.URL.Query()
	filter := repositories.OrderListFilter{
		ServiceType: strings.TrimSpace(query.Get("service_type")),
		Sort:        domain.SortDesc,
	}

	for _, raw := range query["status"] {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				filter.Status = append(filter.Status, status)
			}
		}
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			e := httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest)
			return filter, &e
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			e := httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest)
			return filter, &e
		}
		filter.DateRange.To = &ts
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		e := httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)
		return filter, &e
	}
	filter.Pagination = domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	}

	if sort := strings.TrimSpace(query.Get("sort")); strings.EqualFold(sort, string(domain.SortAsc)) {
		filter.Sort = domain.SortAsc
	}

	return filter, nil
}
