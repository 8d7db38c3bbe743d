package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sitepass/subscription-whitelist/internal/domain/invoice"
	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

// HookHandler receives platform callbacks. Both hooks are safe to retry.
type HookHandler interface {
	PurchaseCompleted(w http.ResponseWriter, r *http.Request)
	PaymentConfirmed(w http.ResponseWriter, r *http.Request)
}

type hookHandlerImpl struct {
	subscriptionService subscription.SubscriptionService
	invoiceService      invoice.InvoiceService
}

func NewHookHandler(subscriptionService subscription.SubscriptionService, invoiceService invoice.InvoiceService) HookHandler {
	return &hookHandlerImpl{
		subscriptionService: subscriptionService,
		invoiceService:      invoiceService,
	}
}

// PurchaseCompleted creates the subscription for a completed order, once
// POST /api/v1/hooks/purchase-completed - Callback token
func (h *hookHandlerImpl) PurchaseCompleted(w http.ResponseWriter, r *http.Request) {
	var evt subscription.PurchaseEvent
	if !decodeJSON(w, r, &evt) {
		return
	}

	result, err := h.subscriptionService.HandlePurchaseCompleted(r.Context(), evt)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	if result.AlreadyProcessed {
		response.SuccessWithMessage(w, "Order already processed", result)
		return
	}
	response.Created(w, "Subscription created", result)
}

// PaymentConfirmed marks an invoice paid. A repeated confirmation answers
// 200 without side effects.
// POST /api/v1/hooks/payment-confirmed - Callback token
func (h *hookHandlerImpl) PaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	var req invoice.MarkPaidRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := h.invoiceService.MarkAsPaid(r.Context(), req)
	if errors.Is(err, invoice.ErrInvoiceAlreadyPaid) {
		slog.InfoContext(r.Context(), "duplicate payment confirmation", "invoice_id", req.InvoiceID)
		response.SuccessWithMessage(w, "Invoice already paid", map[string]any{
			"invoice_id":   req.InvoiceID,
			"already_paid": true,
		})
		return
	}
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMessage(w, "Invoice marked as paid", inv)
}
