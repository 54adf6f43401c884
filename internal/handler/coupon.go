package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cohere/backend/internal/domain"
	"github.com/cohere/backend/internal/service"
)

type CouponHandler struct {
	svc *service.CouponService
}

func NewCouponHandler(svc *service.CouponService) *CouponHandler {
	return &CouponHandler{svc: svc}
}

// Validate handles POST /api/coupons/validate.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req domain.ValidateCouponRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.svc.Validate(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// List handles GET /api/coupons.
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	coupons, err := h.svc.List(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, coupons)
}

// Create handles POST /api/coupons.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateCouponRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	coupon, err := h.svc.Create(r.Context(), userID, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, coupon)
}

// Update handles PATCH /api/coupons/{id}.
func (h *CouponHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req domain.UpdateCouponRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	coupon, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, coupon)
}

// Delete handles DELETE /api/coupons/{id}.
func (h *CouponHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
