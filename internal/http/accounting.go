package http

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"pharmapos/internal/excel"
	"pharmapos/internal/service"
	"pharmapos/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := parseOptionalBool(r.URL.Query().Get("include_inactive"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListAccounts(r.Context(), includeInactive)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req service.AccountInput
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreateAccount(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) PatchAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req service.AccountPatch
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateAccount(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asOf, err := parseOptionalEnd(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	balance, err := h.svc.AccountBalance(r.Context(), id, asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) AccountLedger(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lines, err := h.svc.AccountLedger(r.Context(), id, span.from, span.to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, lines)
}

func parseGroupID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid transaction group id")
	}
	return id, nil
}

func (h *Handler) ListTransactionGroups(w http.ResponseWriter, r *http.Request) {
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
	accountID, err := parseOptionalID(query.Get("account_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListTransactionGroups(r.Context(), store.TransactionGroupFilter{
		SourceType: strings.TrimSpace(query.Get("source_type")),
		AccountID:  accountID,
		From:       span.from,
		To:         span.to,
		Limit:      page.limit,
		Offset:     page.offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, items)
}

func (h *Handler) GetTransactionGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := h.svc.GetTransactionGroup(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *Handler) CreateTransactionGroup(w http.ResponseWriter, r *http.Request) {
	var req service.ManualGroupInput
	if !h.decode(w, r, &req) {
		return
	}
	posted, err := h.svc.PostManualGroup(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, posted)
}

type reverseRequest struct {
	Description string `json:"description" validate:"omitempty,max=500"`
}

func (h *Handler) ReverseTransactionGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req reverseRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	reversal, err := h.svc.ReverseGroup(r.Context(), id, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reversal)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseOptionalEnd(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tb, err := h.svc.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

func (h *Handler) ExportTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseOptionalEnd(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tb, err := h.svc.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, r, xlsxMIME, "trial-balance.xlsx", func(out io.Writer) error {
		return excel.WriteTrialBalance(out, tb)
	})
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	span, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	statement, err := h.svc.IncomeStatement(r.Context(), span.from, span.to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statement)
}

func (h *Handler) IntegrityCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.integrity.Check(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
