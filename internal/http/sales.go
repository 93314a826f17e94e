package http

import (
	"net/http"
	"strings"

	"pharmapos/internal/service"
	"pharmapos/internal/store"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListSales(r.Context(), store.SaleFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		From:   span.from,
		To:     span.to,
		Limit:  page.limit,
		Offset: page.offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req service.SaleInput
	if !h.decode(w, r, &req) {
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (h *Handler) VoidSale(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.VoidInput
	if !h.decodeOptional(w, r, &req) {
		return
	}
	sale, err := h.svc.VoidSale(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}
