package handler

import (
	"net/http"

	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/service"
)

type PaidTierHandler struct {
	svc *service.PaidTierService
}

func NewPaidTierHandler(svc *service.PaidTierService) *PaidTierHandler {
	return &PaidTierHandler{svc: svc}
}

// Current handles GET /api/paid-tier.
func (h *PaidTierHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	sub, err := h.svc.Current(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}

	if sub == nil {
		JSON(w, http.StatusOK, map[string]interface{}{"plan": domain.GetPaidTierPlan("").ID, "status": "none"})
		return
	}

	JSON(w, http.StatusOK, sub)
}

// Grant handles POST /api/admin/paid-tier.
func (h *PaidTierHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req domain.GrantPaidTierRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	sub, err := h.svc.Grant(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, sub)
}
