package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/service"
)

const defaultSlotRangeDays = 7

// ContributionHandler serves contributions, access checks and one-to-one slots.
type ContributionHandler struct {
	contributions *service.ContributionService
	purchases     *service.PurchaseService
	slots         *service.SlotService
}

func NewContributionHandler(contributions *service.ContributionService, purchases *service.PurchaseService, slots *service.SlotService) *ContributionHandler {
	return &ContributionHandler{contributions: contributions, purchases: purchases, slots: slots}
}

// Create handles POST /api/contributions.
func (h *ContributionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateContributionRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	c, err := h.contributions.Create(r.Context(), userID, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, c)
}

// Get handles GET /api/contributions/{id}.
func (h *ContributionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.contributions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, c)
}

// Access handles GET /api/contributions/{id}/access.
func (h *ContributionHandler) Access(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	resp, err := h.purchases.ResolveAccess(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// SetSchedule handles PUT /api/contributions/{id}/schedule.
func (h *ContributionHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var schedule domain.Schedule
	if err := DecodeJSON(r, &schedule); err != nil {
		Error(w, err)
		return
	}

	c, err := h.slots.SetSchedule(r.Context(), userID, chi.URLParam(r, "id"), &schedule)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, c)
}

// ListSlots handles GET /api/contributions/{id}/slots?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *ContributionHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	from := time.Now()
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			Error(w, domain.ErrBadRequest("from must be a date (YYYY-MM-DD)"))
			return
		}
		from = t
	}
	to := from.AddDate(0, 0, defaultSlotRangeDays-1)
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			Error(w, domain.ErrBadRequest("to must be a date (YYYY-MM-DD)"))
			return
		}
		to = t
	}

	slots, err := h.slots.ListSlots(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, slots)
}

// Book handles POST /api/contributions/{id}/slots/book.
func (h *ContributionHandler) Book(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req domain.BookSlotRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	booked, err := h.slots.Book(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, booked)
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
