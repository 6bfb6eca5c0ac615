package services

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/storage"
)

const (
	orderIDPrefix          = "ord_"
	defaultDocumentVersion = "1.0"
)

// orderFactory builds unsaved ServiceOrders per service type with server-side
// pricing. Free-text inputs are sanitised before they are stored.
type orderFactory struct {
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	newID     func() string
}

func newOrderFactory(clock func() time.Time, idGen func() string) *orderFactory {
	if clock == nil {
		clock = time.Now
	}
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	return &orderFactory{
		sanitizer: bluemonday.StrictPolicy(),
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
	}
}

// Build dispatches to the per-type constructor for the requested service.
func (f *orderFactory) Build(req OrderRequest) (domain.ServiceOrder, error) {
	base, err := f.newBase(req)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	switch req.ServiceType {
	case domain.ServiceTypeNotary:
		return f.newNotaryBooking(base, req)
	case domain.ServiceTypeLegalConsultation:
		return f.newPriorityBooking(base, req)
	case domain.ServiceTypeDocumentReview:
		return f.newDocumentReview(base, req)
	case domain.ServiceTypeTemplatePurchase:
		return f.newTemplatePurchase(base, req)
	case domain.ServiceTypeAIDraft:
		return f.newAIDraft(base, req)
	case domain.ServiceTypeDocumentDownload:
		return f.newDocumentDownload(base, req)
	default:
		return domain.ServiceOrder{}, NewValidationError("serviceType")
	}
}

func (f *orderFactory) newBase(req OrderRequest) (domain.ServiceOrder, error) {
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "userId")
	}
	if !domain.ValidEmail(req.UserEmail) {
		missing = append(missing, "userEmail")
	}
	if req.DocumentType != "" && !domain.ValidDocumentType(req.DocumentType) {
		missing = append(missing, "documentType")
	}
	if len(missing) > 0 {
		return domain.ServiceOrder{}, NewValidationError(missing...)
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.CurrencyINR
	}
	if !domain.ValidCurrency(currency) {
		return domain.ServiceOrder{}, NewValidationError("currency")
	}

	now := f.clock()
	order := domain.ServiceOrder{
		ID:              orderIDPrefix + f.newID(),
		UserID:          strings.TrimSpace(req.UserID),
		UserEmail:       strings.TrimSpace(req.UserEmail),
		ServiceType:     req.ServiceType,
		ServiceName:     f.clean(req.ServiceName),
		DocumentType:    req.DocumentType,
		Currency:        currency,
		Status:          domain.OrderStatusPending,
		DocumentVersion: defaultDocumentVersion,
		DeliveryStatus:  domain.DeliveryStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(domain.OrderRetention),
	}

	order.Metadata = cloneMap(req.Metadata)
	if ip := strings.TrimSpace(req.ClientIP); ip != "" {
		order.Metadata = ensureMap(order.Metadata)
		order.Metadata["ipAddress"] = ip
	}
	if agent := strings.TrimSpace(req.UserAgent); agent != "" {
		order.Metadata = ensureMap(order.Metadata)
		order.Metadata["userAgent"] = agent
	}

	return order, nil
}

// newNotaryBooking prices notarisation server-side: base fee by notary type,
// stamp duty over the declared stamp value, optional registration fee.
func (f *orderFactory) newNotaryBooking(order domain.ServiceOrder, req OrderRequest) (domain.ServiceOrder, error) {
	if req.Notary == nil {
		return domain.ServiceOrder{}, NewValidationError("notary")
	}

	var missing []string
	notaryType := req.Notary.Type
	if notaryType != domain.NotaryTypeDigital && notaryType != domain.NotaryTypePhysical {
		missing = append(missing, "notary.type")
	}
	if req.Notary.StampValue < 0 {
		missing = append(missing, "notary.stampValue")
	}
	if strings.TrimSpace(req.Notary.DocumentDescription) == "" {
		missing = append(missing, "notary.documentDescription")
	}
	if notaryType == domain.NotaryTypePhysical && strings.TrimSpace(req.Notary.DeliveryAddress) == "" {
		missing = append(missing, "notary.deliveryAddress")
	}
	if len(missing) > 0 {
		return domain.ServiceOrder{}, NewValidationError(missing...)
	}

	registrationFee := int64(0)
	if req.Notary.RequiresRegistration {
		registrationFee = domain.NotaryRegistrationFee
	}

	order.Notary = &domain.NotaryDetails{
		Type:                 notaryType,
		StampValue:           req.Notary.StampValue,
		RequiresRegistration: req.Notary.RequiresRegistration,
		RegistrationFee:      registrationFee,
		DocumentDescription:  f.clean(req.Notary.DocumentDescription),
		DeliveryAddress:      f.clean(req.Notary.DeliveryAddress),
		SpecialInstructions:  f.clean(req.Notary.SpecialInstructions),
		Status:               domain.NotaryStatusPending,
	}

	if notaryType == domain.NotaryTypeDigital {
		order.DeliveryMethod = domain.DeliveryMethodEmail
	} else {
		order.DeliveryMethod = domain.DeliveryMethodCourier
	}

	order.ApplyPricing(domain.NotaryTotal(notaryType, req.Notary.StampValue, req.Notary.RequiresRegistration), 0)
	if order.ServiceName == "" {
		order.ServiceName = fmt.Sprintf("%s notarisation", notaryType)
	}
	return order, nil
}

func (f *orderFactory) newPriorityBooking(order domain.ServiceOrder, req OrderRequest) (domain.ServiceOrder, error) {
	if req.Booking == nil {
		return domain.ServiceOrder{}, NewValidationError("booking")
	}

	var missing []string
	if !domain.ValidPhone(req.Booking.Phone) {
		missing = append(missing, "booking.phone")
	}
	if strings.TrimSpace(req.Booking.PreferredSlot) == "" {
		missing = append(missing, "booking.preferredSlot")
	}
	if len(missing) > 0 {
		return domain.ServiceOrder{}, NewValidationError(missing...)
	}

	order.Metadata = ensureMap(order.Metadata)
	order.Metadata["phone"] = strings.TrimSpace(req.Booking.Phone)
	order.Metadata["preferredSlot"] = strings.TrimSpace(req.Booking.PreferredSlot)
	if topic := f.clean(req.Booking.Topic); topic != "" {
		order.Metadata["topic"] = topic
	}

	order.DeliveryMethod = domain.DeliveryMethodNone
	order.ApplyPricing(domain.PriorityBookingTotal(), 0)
	if order.ServiceName == "" {
		order.ServiceName = "priority legal consultation"
	}
	return order, nil
}

func (f *orderFactory) newDocumentReview(order domain.ServiceOrder, req OrderRequest) (domain.ServiceOrder, error) {
	if req.Review == nil {
		return domain.ServiceOrder{}, NewValidationError("review")
	}

	documentURL := strings.TrimSpace(req.Review.DocumentURL)
	// A bare file name refers to an upload in the scans bucket; derive its
	// canonical order-scoped object key.
	if documentURL != "" && !strings.ContainsAny(documentURL, "/:") {
		built, err := storage.BuildObjectPath(storage.PurposeReviewDoc, storage.PathParams{
			OrderID:  order.ID,
			FileName: documentURL,
		})
		if err != nil {
			return domain.ServiceOrder{}, NewValidationError("review.documentUrl")
		}
		documentURL = built
	}
	if !domain.ValidDocumentURL(documentURL) {
		return domain.ServiceOrder{}, NewValidationError("review.documentUrl")
	}

	order.DocumentURL = documentURL
	order.DeliveryMethod = domain.DeliveryMethodEmail
	order.Metadata = ensureMap(order.Metadata)
	order.Metadata["turnaroundHours"] = req.Review.TurnaroundHours
	if notes := f.clean(req.Review.Notes); notes != "" {
		order.Metadata["notes"] = notes
	}

	order.ApplyPricing(domain.ReviewPrice(req.Review.TurnaroundHours), 0)
	if order.ServiceName == "" {
		order.ServiceName = "document review"
	}
	return order, nil
}

func (f *orderFactory) newTemplatePurchase(order domain.ServiceOrder, req OrderRequest) (domain.ServiceOrder, error) {
	var missing []string
	if req.DocumentType == "" {
		missing = append(missing, "documentType")
	}
	if req.PriceMinorUnits <= 0 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return domain.ServiceOrder{}, NewValidationError(missing...)
	}

	if req.Draft != nil {
		if templateID := f.clean(req.Draft.TemplateID); templateID != "" {
			order.Metadata = ensureMap(order.Metadata)
			order.Metadata["templateId"] = templateID
		}
	}

	order.DeliveryMethod = domain.DeliveryMethodBoth
	order.ApplyPricing(req.PriceMinorUnits, 0)
	if order.ServiceName == "" {
		order.ServiceName = "template purchase"
	}
	return order, nil
}

func (f *orderFactory) newAIDraft(order domain.ServiceOrder, req OrderRequest) (domain.ServiceOrder, error) {
	var missing []string
	if req.Draft == nil || strings.TrimSpace(req.Draft.Body) == "" {
		missing = append(missing, "draft.body")
	}
	if req.PriceMinorUnits <= 0 {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return domain.ServiceOrder{}, NewValidationError(missing...)
	}

	order.Metadata = ensureMap(order.Metadata)
	order.Metadata["draftBody"] = f.clean(req.Draft.Body)

	order.DeliveryMethod = domain.DeliveryMethodBoth
	order.ApplyPricing(req.PriceMinorUnits, 0)
	if order.ServiceName == "" {
		order.ServiceName = "ai drafted document"
	}
	return order, nil
}

func (f *orderFactory) newDocumentDownload(order domain.ServiceOrder, req OrderRequest) (domain.ServiceOrder, error) {
	var missing []string
	if req.DocumentType == "" {
		missing = append(missing, "documentType")
	}
	if req.PriceMinorUnits <= 0 {
		missing = append(missing, "price")
	}
	if strings.TrimSpace(req.ServiceName) == "" {
		missing = append(missing, "serviceName")
	}
	if len(missing) > 0 {
		return domain.ServiceOrder{}, NewValidationError(missing...)
	}

	order.DeliveryMethod = domain.DeliveryMethodDownload
	order.ApplyPricing(req.PriceMinorUnits, 0)
	return order, nil
}

func (f *orderFactory) clean(value string) string {
	return strings.TrimSpace(f.sanitizer.Sanitize(value))
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}
