package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/subscription"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

// SubscriptionHandler handles subscription-related HTTP requests
type SubscriptionHandler interface {
	// Admin endpoints
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Pause(w http.ResponseWriter, r *http.Request)
	Activate(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)

	// Authenticated endpoints
	GetMySubscription(w http.ResponseWriter, r *http.Request)
}

type subscriptionHandlerImpl struct {
	subscriptionService subscription.SubscriptionService
	clock               func() time.Time
}

func NewSubscriptionHandler(subscriptionService subscription.SubscriptionService, clock func() time.Time) SubscriptionHandler {
	if clock == nil {
		clock = time.Now
	}
	return &subscriptionHandlerImpl{
		subscriptionService: subscriptionService,
		clock:               clock,
	}
}

// Create creates a subscription for an existing user
// POST /api/v1/admin/subscriptions - Admin
func (h *subscriptionHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req subscription.CreateSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.subscriptionService.Create(r.Context(), req)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.Created(w, "Subscription created", sub)
}

// List returns subscriptions, optionally filtered by user_id and status
// GET /api/v1/admin/subscriptions - Admin
func (h *subscriptionHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	filter := subscription.ListFilter{
		Limit:  getIntQueryParam(r, "limit", 50),
		Offset: getIntQueryParam(r, "offset", 0),
	}
	if v := r.URL.Query().Get("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(w, "user_id must be an integer", nil)
			return
		}
		filter.UserID = &userID
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := subscription.Status(v)
		if !status.Valid() {
			response.BadRequest(w, "status must be one of active, paused, cancelled", nil)
			return
		}
		filter.Status = &status
	}

	subs, err := h.subscriptionService.List(r.Context(), filter)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMeta(w, subs, &response.Meta{Limit: filter.Limit, TotalItems: int64(len(subs))})
}

// Get retrieves one subscription
// GET /api/v1/admin/subscriptions/{id} - Admin
func (h *subscriptionHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Get(r.Context(), id)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.Success(w, sub)
}

// Pause suspends billing and access
// POST /api/v1/admin/subscriptions/{id}/pause - Admin
func (h *subscriptionHandlerImpl) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Pause(r.Context(), id)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMessage(w, "Subscription paused", sub)
}

// Activate resumes a paused subscription. URLs expired while paused must be
// submitted again.
// POST /api/v1/admin/subscriptions/{id}/activate - Admin
func (h *subscriptionHandlerImpl) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Activate(r.Context(), id)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMessage(w, "Subscription activated", sub)
}

// Delete removes a subscription with its invoices and URLs
// DELETE /api/v1/admin/subscriptions/{id} - Admin
func (h *subscriptionHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req subscription.DeleteSubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = id

	result, err := h.subscriptionService.Delete(r.Context(), req)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMessage(w, "Subscription deleted", result)
}

// GetMySubscription returns the caller's live subscription
// GET /api/v1/me/subscription - Authenticated
func (h *subscriptionHandlerImpl) GetMySubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.GetActiveForUser(r.Context(), userID, h.clock())
	if err != nil {
		response.HandleError(w, r, err)
		return
	}
	if sub == nil {
		response.SuccessWithMessage(w, "No active subscription", nil)
		return
	}

	response.Success(w, sub)
}
