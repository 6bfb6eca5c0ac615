package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ServiceType enumerates the purchasable legal services.
type ServiceType string

const (
	// ServiceTypeDocumentDownload covers paid template downloads unlocked after payment.
	ServiceTypeDocumentDownload ServiceType = "document-download"
	// ServiceTypeLegalConsultation covers consultation bookings, including priority slots.
	ServiceTypeLegalConsultation ServiceType = "legal-consultation"
	// ServiceTypeDocumentReview covers human review of an uploaded document.
	ServiceTypeDocumentReview ServiceType = "document-review"
	// ServiceTypeNotary covers digital and physical notarisation requests.
	ServiceTypeNotary ServiceType = "notary"
	// ServiceTypeTemplatePurchase covers one-off purchases from the template store.
	ServiceTypeTemplatePurchase ServiceType = "template-purchase"
	// ServiceTypeAIDraft covers AI-drafted affidavits and generated PDFs.
	ServiceTypeAIDraft ServiceType = "ai-draft"
	// ServiceTypeOther is the catch-all bucket for ad-hoc services.
	ServiceTypeOther ServiceType = "other"
)

// DocumentType enumerates the legal document categories handled by the service.
type DocumentType string

const (
	DocumentTypeAgreement             DocumentType = "agreement"
	DocumentTypeAffidavit             DocumentType = "affidavit"
	DocumentTypeComplaint             DocumentType = "complaint"
	DocumentTypeContract              DocumentType = "contract"
	DocumentTypeGeneralAffidavit      DocumentType = "general_affidavit"
	DocumentTypePowerOfAttorney       DocumentType = "power_of_attorney"
	DocumentTypeEducationGapAffidavit DocumentType = "education_gap_affidavit"
	DocumentTypeIndemnityBond         DocumentType = "indemnity_bond"
	DocumentTypeLegalHeirCertificate  DocumentType = "legal_heir_certificate"
	DocumentTypeCourtEvidence         DocumentType = "court_evidence_affidavit"
	DocumentTypeOther                 DocumentType = "other"
)

// OrderStatus captures the payment-driven lifecycle of a service order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing indicates payment was captured and fulfillment is underway.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted indicates the order is fully delivered.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusFailed indicates payment or fulfillment failed.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusRefunded indicates the payment has been returned to the customer.
	OrderStatusRefunded OrderStatus = "refunded"
)

// NotaryStatus tracks the human notarisation workflow independently of payment.
type NotaryStatus string

const (
	NotaryStatusPending    NotaryStatus = "pending"
	NotaryStatusAssigned   NotaryStatus = "assigned"
	NotaryStatusInProgress NotaryStatus = "in-progress"
	NotaryStatusCompleted  NotaryStatus = "completed"
	NotaryStatusRejected   NotaryStatus = "rejected"
)

// NotaryType distinguishes e-notarisation from physical stamping.
type NotaryType string

const (
	NotaryTypeDigital  NotaryType = "digital"
	NotaryTypePhysical NotaryType = "physical"
)

// DeliveryMethod enumerates how the finished artifact reaches the customer.
type DeliveryMethod string

const (
	DeliveryMethodDownload DeliveryMethod = "download"
	DeliveryMethodEmail    DeliveryMethod = "email"
	DeliveryMethodCourier  DeliveryMethod = "courier"
	DeliveryMethodBoth     DeliveryMethod = "both"
	DeliveryMethodNone     DeliveryMethod = "none"
)

// DeliveryStatus tracks the outbound delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Currency enumerates the supported settlement currencies.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// StatusChange is one entry of the append-only status audit trail. Status holds
// the status the order was in *before* the transition was applied.
type StatusChange struct {
	Status    OrderStatus
	ChangedAt time.Time
	Reason    string
}

// PaymentLink holds the gateway identifiers bound to an order. OrderID and
// PaymentID are globally unique across all orders when present.
type PaymentLink struct {
	OrderID   string
	PaymentID string
	Signature string
}

// NotaryDetails groups the fields that only exist on notary orders.
type NotaryDetails struct {
	Type                 NotaryType
	StampValue           int64
	RequiresRegistration bool
	RegistrationFee      int64
	DocumentDescription  string
	DeliveryAddress      string
	SpecialInstructions  string
	Status               NotaryStatus
	AssignedAt           *time.Time
	CompletedAt          *time.Time
	NotaryID             string
}

// ServiceOrder is the single persisted entity of the order store. All amounts
// are in currency minor units (paise for INR).
type ServiceOrder struct {
	ID        string
	UserID    string
	UserEmail string

	ServiceType  ServiceType
	ServiceName  string
	DocumentType DocumentType

	Price           int64
	DiscountApplied int64
	FinalAmount     int64
	Currency        Currency

	Status        OrderStatus
	StatusHistory []StatusChange

	DocumentURL     string
	DocumentVersion string
	DownloadCount   int64

	DeliveryMethod DeliveryMethod
	DeliveryStatus DeliveryStatus

	Payment PaymentLink
	Notary  *NotaryDetails

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaymentAt   *time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time

	Metadata map[string]any
}

// OrderRetention is how long an order stays queryable before the expiry sweep
// may remove it.
const OrderRetention = 30 * 24 * time.Hour

// ApplyPricing sets price and discount and recomputes FinalAmount. FinalAmount
// is never written independently of its inputs.
func (o *ServiceOrder) ApplyPricing(price, discount int64) {
	o.Price = price
	o.DiscountApplied = discount
	o.FinalAmount = price - discount
}

// RecordStatus appends the current status to the history and applies the new
// one. CompletedAt is stamped on the first completion only.
func (o *ServiceOrder) RecordStatus(next OrderStatus, reason string, now time.Time) {
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		Status:    o.Status,
		ChangedAt: now,
		Reason:    reason,
	})
	o.Status = next
	o.UpdatedAt = now
	if next == OrderStatusCompleted && o.CompletedAt == nil {
		stamp := now
		o.CompletedAt = &stamp
	}
}

// IsNotary reports whether the order carries the notary sub-workflow.
func (o *ServiceOrder) IsNotary() bool {
	return o.ServiceType == ServiceTypeNotary && o.Notary != nil
}

var (
	emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// ValidEmail reports whether the value matches the accepted local@domain.tld shape.
func ValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// ValidPhone reports whether the value is a ten digit Indian mobile number.
func ValidPhone(value string) bool {
	return phonePattern.MatchString(strings.TrimSpace(value))
}

// ValidDocumentURL accepts absolute http(s) URLs, gs:// references, and
// object paths under the known storage prefixes.
func ValidDocumentURL(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if strings.HasPrefix(value, "/") || strings.HasPrefix(value, "gs://") ||
		strings.HasPrefix(value, "orders/") || strings.HasPrefix(value, "templates/") {
		return !strings.ContainsAny(value, " \t\r\n")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// ValidServiceType reports whether the value is one of the known service types.
func ValidServiceType(value ServiceType) bool {
	switch value {
	case ServiceTypeDocumentDownload, ServiceTypeLegalConsultation, ServiceTypeDocumentReview,
		ServiceTypeNotary, ServiceTypeTemplatePurchase, ServiceTypeAIDraft, ServiceTypeOther:
		return true
	}
	return false
}

// ValidDocumentType reports whether the value is one of the known document categories.
func ValidDocumentType(value DocumentType) bool {
	switch value {
	case DocumentTypeAgreement, DocumentTypeAffidavit, DocumentTypeComplaint, DocumentTypeContract,
		DocumentTypeGeneralAffidavit, DocumentTypePowerOfAttorney, DocumentTypeEducationGapAffidavit,
		DocumentTypeIndemnityBond, DocumentTypeLegalHeirCertificate, DocumentTypeCourtEvidence,
		DocumentTypeOther:
		return true
	}
	return false
}

// ValidCurrency reports whether the value is a supported settlement currency.
func ValidCurrency(value Currency) bool {
	switch value {
	case CurrencyINR, CurrencyUSD, CurrencyEUR:
		return true
	}
	return false
}
