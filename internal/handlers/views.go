package handlers

import (
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/services"
)

type statusChangeView struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
	Reason    string    `json:"reason,omitempty"`
}

type notaryView struct {
	Type                 string     `json:"notaryType"`
	StampValue           int64      `json:"stampValue"`
	RequiresRegistration bool       `json:"requiresRegistration"`
	RegistrationFee      int64      `json:"registrationFee"`
	DocumentDescription  string     `json:"documentDescription,omitempty"`
	DeliveryAddress      string     `json:"deliveryAddress,omitempty"`
	SpecialInstructions  string     `json:"specialInstructions,omitempty"`
	Status               string     `json:"status"`
	AssignedAt           *time.Time `json:"assignedAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	NotaryID             string     `json:"notaryId,omitempty"`
}

type orderView struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	UserEmail       string             `json:"userEmail"`
	ServiceType     string             `json:"serviceType"`
	ServiceName     string             `json:"serviceName,omitempty"`
	DocumentType    string             `json:"documentType,omitempty"`
	Price           int64              `json:"price"`
	DiscountApplied int64              `json:"discountApplied"`
	FinalAmount     int64              `json:"finalAmount"`
	Currency        string             `json:"currency"`
	Status          string             `json:"status"`
	StatusHistory   []statusChangeView `json:"statusHistory"`
	DocumentURL     string             `json:"documentUrl,omitempty"`
	DocumentVersion string             `json:"documentVersion,omitempty"`
	DownloadCount   int64              `json:"downloadCount"`
	DeliveryMethod  string             `json:"deliveryMethod"`
	DeliveryStatus  string             `json:"deliveryStatus"`
	RazorpayOrderID string             `json:"razorpayOrderId,omitempty"`
	Notary          *notaryView        `json:"notaryDetails,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	PaymentAt       *time.Time         `json:"paymentAt,omitempty"`
	CompletedAt     *time.Time         `json:"completedAt,omitempty"`
	ExpiresAt       time.Time          `json:"expiresAt"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
}

type orderListView struct {
	Orders        []orderView `json:"orders"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

type checkoutSessionView struct {
	Order           orderView `json:"order"`
	RazorpayOrderID string    `json:"razorpayOrderId"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	KeyID           string    `json:"keyId"`
}

type downloadGrantView struct {
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expiresAt"`
	DownloadCount int64     `json:"downloadCount"`
}

func newOrderView(order domain.ServiceOrder) orderView {
	view := orderView{
		ID:              order.ID,
		UserID:          order.UserID,
		UserEmail:       order.UserEmail,
		ServiceType:     string(order.ServiceType),
		ServiceName:     order.ServiceName,
		DocumentType:    string(order.DocumentType),
		Price:           order.Price,
		DiscountApplied: order.DiscountApplied,
		FinalAmount:     order.FinalAmount,
		Currency:        string(order.Currency),
		Status:          string(order.Status),
		StatusHistory:   make([]statusChangeView, 0, len(order.StatusHistory)),
		DocumentURL:     order.DocumentURL,
		DocumentVersion: order.DocumentVersion,
		DownloadCount:   order.DownloadCount,
		DeliveryMethod:  string(order.DeliveryMethod),
		DeliveryStatus:  string(order.DeliveryStatus),
		RazorpayOrderID: order.Payment.OrderID,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
		PaymentAt:       order.PaymentAt,
		CompletedAt:     order.CompletedAt,
		ExpiresAt:       order.ExpiresAt,
		Metadata:        order.Metadata,
	}
	for _, change := range order.StatusHistory {
		view.StatusHistory = append(view.StatusHistory, statusChangeView{
			Status:    string(change.Status),
			ChangedAt: change.ChangedAt,
			Reason:    change.Reason,
		})
	}
	if order.Notary != nil {
		view.Notary = &notaryView{
			Type:                 string(order.Notary.Type),
			StampValue:           order.Notary.StampValue,
			RequiresRegistration: order.Notary.RequiresRegistration,
			RegistrationFee:      order.Notary.RegistrationFee,
			DocumentDescription:  order.Notary.DocumentDescription,
			DeliveryAddress:      order.Notary.DeliveryAddress,
			SpecialInstructions:  order.Notary.SpecialInstructions,
			Status:               string(order.Notary.Status),
			AssignedAt:           order.Notary.AssignedAt,
			CompletedAt:          order.Notary.CompletedAt,
			NotaryID:             order.Notary.NotaryID,
		}
	}
	return view
}

func newOrderListView(page domain.CursorPage[domain.ServiceOrder]) orderListView {
	view := orderListView{
		Orders:        make([]orderView, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		view.Orders = append(view.Orders, newOrderView(order))
	}
	return view
}

func newCheckoutSessionView(session services.CheckoutSession) checkoutSessionView {
	return checkoutSessionView{
		Order:           newOrderView(session.Order),
		RazorpayOrderID: session.GatewayOrderID,
		Amount:          session.Amount,
		Currency:        session.Currency,
		KeyID:           session.GatewayKeyID,
	}
}
