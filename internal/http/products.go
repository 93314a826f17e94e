package http

import (
	"net/http"
	"strings"

	"pharmapos/internal/service"
	"pharmapos/internal/store"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := parsePage(r, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	categoryID, err := parseOptionalID(query.Get("category_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeInactive, err := parseOptionalBool(query.Get("include_inactive"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.ProductFilter{
		Search:          strings.TrimSpace(query.Get("search")),
		CategoryID:      categoryID,
		IncludeInactive: includeInactive,
		Limit:           page.limit,
		Offset:          page.offset,
	}
	lowStock, err := parseOptionalBool(query.Get("low_stock"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if lowStock {
		threshold, err := parseOptionalInt64(query.Get("threshold"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if threshold == nil {
			fallback := h.lowStockDefault
			threshold = &fallback
		}
		filter.LowStock = threshold
	}

	items, err := h.svc.ListProducts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) GetProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProductByBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductInput
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) PatchProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.ProductPatch
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteProduct removes a product, or deactivates it when stock history
// still references it.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deactivated, err := h.svc.DeleteProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": !deactivated, "deactivated": deactivated})
}

func (h *Handler) ListStockMovements(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := parsePage(r, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.svc.ListStockMovements(r.Context(), id, page.limit, page.offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items), "total": total})
}

func (h *Handler) ListPackageUnits(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListPackageUnits(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) CreatePackageUnit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.PackageUnitInput
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreatePackageUnit(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) PatchPackageUnit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.PackageUnitPatch
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdatePackageUnit(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeletePackageUnit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeletePackageUnit(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
