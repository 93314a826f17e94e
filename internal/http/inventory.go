package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"pharmapos/internal/excel"
	"pharmapos/internal/service"

	"go.uber.org/zap"
)

func (h *Handler) InventorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.InventorySummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := parseOptionalInt64(r.URL.Query().Get("threshold"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.svc.LowStock(r.Context(), threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeList(w, rows)
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req service.AdjustmentInput
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// uploadedFile returns the "file" part of a multipart request. The caller
// closes it.
func uploadedFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, nil, errors.New("failed to parse multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New("file field is required")
	}
	return file, header, nil
}

func (h *Handler) ImportProductsExcel(w http.ResponseWriter, r *http.Request) {
	file, header, err := uploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	rows, err := excel.ParseProductRows(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.ImportProducts(r.Context(), rows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("products imported",
		zap.String("file_name", header.Filename),
		zap.Int("rows", result.TotalRows),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":  header.Filename,
		"total_rows": result.TotalRows,
		"created":    result.Created,
		"updated":    result.Updated,
	})
}

func (h *Handler) ImportPrices(w http.ResponseWriter, r *http.Request) {
	file, header, err := uploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer file.Close()

	threshold := 0.0
	if raw := strings.TrimSpace(r.FormValue("threshold")); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 {
			writeError(w, http.StatusBadRequest, "threshold must be a percentage")
			return
		}
	}

	rows, err := excel.ParsePriceRows(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.ImportPrices(r.Context(), rows, threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("prices imported",
		zap.String("file_name", header.Filename),
		zap.Int("rows", result.TotalRows),
		zap.Int("updated", result.UpdatedProducts),
		zap.Int("unmatched", result.UnmatchedCount),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name": header.Filename,
		"result":    result,
	})
}

func (h *Handler) ExportInventory(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.InventoryProducts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeFile(w, r, xlsxMIME, "inventory.xlsx", func(out io.Writer) error {
		return excel.WriteInventory(out, products)
	})
}
