package http

import (
	"net/http"

	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

// InvoiceHandler handles invoice-related HTTP requests
type InvoiceHandler interface {
	// Admin endpoints
	Create(w http.ResponseWriter, r *http.Request)
	ListBySubscription(w http.ResponseWriter, r *http.Request)

	// Public, authorized by the signed link token
	ViewPaymentLink(w http.ResponseWriter, r *http.Request)
}

type invoiceHandlerImpl struct {
	invoiceService invoice.InvoiceService
	currency       string
}

func NewInvoiceHandler(invoiceService invoice.InvoiceService, currency string) InvoiceHandler {
	return &invoiceHandlerImpl{
		invoiceService: invoiceService,
		currency:       currency,
	}
}

type createInvoiceRequest struct {
	SendEmail *bool `json:"send_email"`
}

// Create issues an invoice outside the billing schedule. The customer is
// emailed unless send_email is false.
// POST /api/v1/admin/subscriptions/{id}/invoices - Admin
func (h *invoiceHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	subscriptionID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req createInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sendEmail := req.SendEmail == nil || *req.SendEmail

	inv, err := h.invoiceService.CreateFromSubscription(r.Context(), subscriptionID, sendEmail)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.Created(w, "Invoice created", inv)
}

// ListBySubscription returns a subscription's invoices, newest first
// GET /api/v1/admin/subscriptions/{id}/invoices - Admin
func (h *invoiceHandlerImpl) ListBySubscription(w http.ResponseWriter, r *http.Request) {
	subscriptionID, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	invoices, err := h.invoiceService.ListBySubscription(r.Context(), subscriptionID)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMeta(w, invoices, &response.Meta{TotalItems: int64(len(invoices))})
}

// ViewPaymentLink shows the invoice a payment link points at
// GET /api/v1/pay/{invoiceID}?token=... - Public
func (h *invoiceHandlerImpl) ViewPaymentLink(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := idParam(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.invoiceService.VerifyPaymentLink(r.Context(), invoiceID, r.URL.Query().Get("token"))
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.Success(w, invoice.PaymentView{
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.Amount.StringFixed(2),
		Currency:      h.currency,
		Status:        inv.Status,
	})
}
