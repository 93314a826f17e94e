package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pharmapos/internal/domain"
	"pharmapos/internal/report"
	"pharmapos/internal/service"
	"pharmapos/internal/store"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
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
	items, err := h.svc.ListPurchaseOrders(r.Context(), store.PurchaseOrderFilter{
		Status:   strings.TrimSpace(query.Get("status")),
		Supplier: strings.TrimSpace(query.Get("supplier")),
		From:     span.from,
		To:       span.to,
		Limit:    page.limit,
		Offset:   page.offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	po, err := h.svc.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

func (h *Handler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req service.PurchaseOrderInput
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) PatchPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.PurchaseOrderPatch
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdatePurchaseOrder(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeletePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeletePurchaseOrder(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition runs one purchase order status change named by the id in the
// path.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, change func(context.Context, int64) (domain.PurchaseOrder, error)) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	po, err := change(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

func (h *Handler) OrderPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.OrderPurchaseOrder)
}

func (h *Handler) ReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.ReceivePurchaseOrder)
}

func (h *Handler) CancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.CancelPurchaseOrder)
}

func (h *Handler) PayPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.PaymentInput
	if !h.decode(w, r, &req) {
		return
	}
	po, err := h.svc.PayPurchaseOrder(r.Context(), id, req.PaymentMethod)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, po)
}

func (h *Handler) PurchaseOrderPDF(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	po, err := h.svc.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, r, "application/pdf", fmt.Sprintf("%s.pdf", po.Number), func(out io.Writer) error {
		return report.PurchaseOrderPDF(out, po, h.storeName)
	})
}
