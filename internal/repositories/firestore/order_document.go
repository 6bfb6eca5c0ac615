package firestore

import (
	"time"

	"github.com/lexserve/api/internal/domain"
)

// orderDocument mirrors the Firestore layout of a service order. Amounts are
// stored in currency minor units.
type orderDocument struct {
	UserID    string `firestore:"userId"`
	UserEmail string `firestore:"userEmail"`

	ServiceType  string `firestore:"serviceType"`
	ServiceName  string `firestore:"serviceName,omitempty"`
	DocumentType string `firestore:"documentType,omitempty"`

	Price           int64  `firestore:"price"`
	DiscountApplied int64  `firestore:"discountApplied"`
	FinalAmount     int64  `firestore:"finalAmount"`
	Currency        string `firestore:"currency"`

	Status        string                 `firestore:"status"`
	StatusHistory []statusChangeDocument `firestore:"statusHistory"`

	DocumentURL     string `firestore:"documentUrl,omitempty"`
	DocumentVersion string `firestore:"documentVersion,omitempty"`
	DownloadCount   int64  `firestore:"downloadCount"`

	DeliveryMethod string `firestore:"deliveryMethod,omitempty"`
	DeliveryStatus string `firestore:"deliveryStatus,omitempty"`

	RazorpayOrderID   string `firestore:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string `firestore:"razorpayPaymentId,omitempty"`
	RazorpaySignature string `firestore:"razorpaySignature,omitempty"`

	Notary *notaryDocument `firestore:"notaryDetails,omitempty"`

	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	PaymentAt   *time.Time `firestore:"paymentAt,omitempty"`
	CompletedAt *time.Time `firestore:"completedAt,omitempty"`
	ExpiresAt   time.Time  `firestore:"expiresAt"`

	Metadata map[string]any `firestore:"metadata,omitempty"`
}

type statusChangeDocument struct {
	Status    string    `firestore:"status"`
	ChangedAt time.Time `firestore:"changedAt"`
	Reason    string    `firestore:"reason,omitempty"`
}

type notaryDocument struct {
	Type                 string     `firestore:"notaryType"`
	StampValue           int64      `firestore:"stampValue"`
	RequiresRegistration bool       `firestore:"requiresRegistration"`
	RegistrationFee      int64      `firestore:"registrationFee"`
	DocumentDescription  string     `firestore:"documentDescription,omitempty"`
	DeliveryAddress      string     `firestore:"deliveryAddress,omitempty"`
	SpecialInstructions  string     `firestore:"specialInstructions,omitempty"`
	Status               string     `firestore:"status"`
	AssignedAt           *time.Time `firestore:"assignedAt,omitempty"`
	CompletedAt          *time.Time `firestore:"completedAt,omitempty"`
	NotaryID             string     `firestore:"notaryId,omitempty"`
}

func fromDomainOrder(order domain.ServiceOrder) orderDocument {
	doc := orderDocument{
		UserID:            order.UserID,
		UserEmail:         order.UserEmail,
		ServiceType:       string(order.ServiceType),
		ServiceName:       order.ServiceName,
		DocumentType:      string(order.DocumentType),
		Price:             order.Price,
		DiscountApplied:   order.DiscountApplied,
		FinalAmount:       order.FinalAmount,
		Currency:          string(order.Currency),
		Status:            string(order.Status),
		DocumentURL:       order.DocumentURL,
		DocumentVersion:   order.DocumentVersion,
		DownloadCount:     order.DownloadCount,
		DeliveryMethod:    string(order.DeliveryMethod),
		DeliveryStatus:    string(order.DeliveryStatus),
		RazorpayOrderID:   order.Payment.OrderID,
		RazorpayPaymentID: order.Payment.PaymentID,
		RazorpaySignature: order.Payment.Signature,
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
		PaymentAt:         utcPtr(order.PaymentAt),
		CompletedAt:       utcPtr(order.CompletedAt),
		ExpiresAt:         order.ExpiresAt.UTC(),
		Metadata:          order.Metadata,
	}

	if len(order.StatusHistory) > 0 {
		doc.StatusHistory = make([]statusChangeDocument, 0, len(order.StatusHistory))
		for _, change := range order.StatusHistory {
			doc.StatusHistory = append(doc.StatusHistory, statusChangeDocument{
				Status:    string(change.Status),
				ChangedAt: change.ChangedAt.UTC(),
				Reason:    change.Reason,
			})
		}
	}

	if order.Notary != nil {
		doc.Notary = &notaryDocument{
			Type:                 string(order.Notary.Type),
			StampValue:           order.Notary.StampValue,
			RequiresRegistration: order.Notary.RequiresRegistration,
			RegistrationFee:      order.Notary.RegistrationFee,
			DocumentDescription:  order.Notary.DocumentDescription,
			DeliveryAddress:      order.Notary.DeliveryAddress,
			SpecialInstructions:  order.Notary.SpecialInstructions,
			Status:               string(order.Notary.Status),
			AssignedAt:           utcPtr(order.Notary.AssignedAt),
			CompletedAt:          utcPtr(order.Notary.CompletedAt),
			NotaryID:             order.Notary.NotaryID,
		}
	}

	return doc
}

func toDomainOrder(doc orderDocument) domain.ServiceOrder {
	order := domain.ServiceOrder{
		UserID:          doc.UserID,
		UserEmail:       doc.UserEmail,
		ServiceType:     domain.ServiceType(doc.ServiceType),
		ServiceName:     doc.ServiceName,
		DocumentType:    domain.DocumentType(doc.DocumentType),
		Price:           doc.Price,
		DiscountApplied: doc.DiscountApplied,
		FinalAmount:     doc.FinalAmount,
		Currency:        domain.Currency(doc.Currency),
		Status:          domain.OrderStatus(doc.Status),
		DocumentURL:     doc.DocumentURL,
		DocumentVersion: doc.DocumentVersion,
		DownloadCount:   doc.DownloadCount,
		DeliveryMethod:  domain.DeliveryMethod(doc.DeliveryMethod),
		DeliveryStatus:  domain.DeliveryStatus(doc.DeliveryStatus),
		Payment: domain.PaymentLink{
			OrderID:   doc.RazorpayOrderID,
			PaymentID: doc.RazorpayPaymentID,
			Signature: doc.RazorpaySignature,
		},
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		PaymentAt:   doc.PaymentAt,
		CompletedAt: doc.CompletedAt,
		ExpiresAt:   doc.ExpiresAt,
		Metadata:    doc.Metadata,
	}

	if len(doc.StatusHistory) > 0 {
		order.StatusHistory = make([]domain.StatusChange, 0, len(doc.StatusHistory))
		for _, change := range doc.StatusHistory {
			order.StatusHistory = append(order.StatusHistory, domain.StatusChange{
				Status:    domain.OrderStatus(change.Status),
				ChangedAt: change.ChangedAt,
				Reason:    change.Reason,
			})
		}
	}

	if doc.Notary != nil {
		order.Notary = &domain.NotaryDetails{
			Type:                 domain.NotaryType(doc.Notary.Type),
			StampValue:           doc.Notary.StampValue,
			RequiresRegistration: doc.Notary.RequiresRegistration,
			RegistrationFee:      doc.Notary.RegistrationFee,
			DocumentDescription:  doc.Notary.DocumentDescription,
			DeliveryAddress:      doc.Notary.DeliveryAddress,
			SpecialInstructions:  doc.Notary.SpecialInstructions,
			Status:               domain.NotaryStatus(doc.Notary.Status),
			AssignedAt:           doc.Notary.AssignedAt,
			CompletedAt:          doc.Notary.CompletedAt,
			NotaryID:             doc.Notary.NotaryID,
		}
	}

	return order
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	stamp := value.UTC()
	return &stamp
}
