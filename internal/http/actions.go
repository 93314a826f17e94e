package http

import (
	"net/http"
)

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListActions(r.Context(), page.limit, page.offset, r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) CountActions(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.CountActions(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}
