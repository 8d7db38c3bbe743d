package http

import (
	"net/http"
	"time"

	"github.com/sitepass/subscription-whitelist/internal/domain/whitelist"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/response"
)

// WhitelistHandler handles URL submissions and whitelist administration
type WhitelistHandler interface {
	// Authenticated endpoints
	SubmitURL(w http.ResponseWriter, r *http.Request)
	ListMyURLs(w http.ResponseWriter, r *http.Request)

	// Admin endpoints
	RemoveURL(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Show(w http.ResponseWriter, r *http.Request)
}

type whitelistHandlerImpl struct {
	reconciler whitelist.Reconciler
	clock      func() time.Time
}

func NewWhitelistHandler(reconciler whitelist.Reconciler, clock func() time.Time) WhitelistHandler {
	if clock == nil {
		clock = time.Now
	}
	return &whitelistHandlerImpl{
		reconciler: reconciler,
		clock:      clock,
	}
}

type submitURLRequest struct {
	SubscriptionID int64  `json:"subscription_id"`
	URL            string `json:"url"`
}

// SubmitURL registers or replaces the caller's site URL
// POST /api/v1/me/url - Authenticated
func (h *whitelistHandlerImpl) SubmitURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req submitURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SubscriptionID <= 0 {
		response.ValidationError(w, map[string]string{"subscription_id": "subscription_id is required"})
		return
	}

	res := h.reconciler.Submit(r.Context(), userID, req.SubscriptionID, req.URL, h.clock())
	if !res.Success {
		response.HandleError(w, r, res.Err)
		return
	}

	response.SuccessWithMessage(w, res.Message, res)
}

// ListMyURLs returns every URL row the caller has submitted
// GET /api/v1/me/urls - Authenticated
func (h *whitelistHandlerImpl) ListMyURLs(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	urls, err := h.reconciler.ListForUser(r.Context(), userID)
	if err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.Success(w, urls)
}

// RemoveURL marks a URL removed and takes it off the whitelist
// DELETE /api/v1/admin/urls/{id} - Admin
func (h *whitelistHandlerImpl) RemoveURL(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.reconciler.RemoveURL(r.Context(), id, h.clock()); err != nil {
		response.HandleError(w, r, err)
		return
	}

	response.SuccessWithMessage(w, "URL removed", map[string]int64{"id": id})
}

// Refresh rebuilds the managed part of the whitelist
// POST /api/v1/admin/whitelist/refresh - Admin
func (h *whitelistHandlerImpl) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.reconciler.ReconcileFull(r.Context(), h.clock()); err != nil {
		response.HandleError(w, r, err)
		return
	}
	h.Show(w, r)
}

// Show returns the whitelist as currently stored
// GET /api/v1/admin/whitelist - Admin
func (h *whitelistHandlerImpl) Show(w http.ResponseWriter, r *http.Request) {
	lines, err := h.reconciler.Whitelist(r.Context())
	if err != nil {
		response.HandleError(w, r, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}

	response.SuccessWithMeta(w, lines, &response.Meta{TotalItems: int64(len(lines))})
}
