// Package http exposes the service over a JSON REST API under /api/v1.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"pharmapos/internal/accounting"
	"pharmapos/internal/jobs"
	"pharmapos/internal/service"
	"pharmapos/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	maxUploadSize = 32 << 20
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Options struct {
	Logger          *zap.Logger
	StoreName       string
	LowStockDefault int64
	// Integrity runs on-demand checks. When nil a job without an observer
	// is built over the service.
	Integrity *jobs.IntegrityJob
}

type Handler struct {
	svc             *service.Service
	logger          *zap.Logger
	validate        *validator.Validate
	storeName       string
	lowStockDefault int64
	integrity       *jobs.IntegrityJob
}

func NewHandler(svc *service.Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	integrity := opts.Integrity
	if integrity == nil {
		integrity = jobs.NewIntegrityJob(svc, logger, nil)
	}
	return &Handler{
		svc:             svc,
		logger:          logger,
		validate:        newValidator(),
		storeName:       opts.StoreName,
		lowStockDefault: opts.LowStockDefault,
		integrity:       integrity,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Health(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type listResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: payload})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &errorBody{Message: message, Details: details}})
}

// writeFile sends a generated document. Rendering goes to a buffer first so
// a failure still yields a JSON error.
func (h *Handler) writeFile(w http.ResponseWriter, r *http.Request, contentType, fileName string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		h.fail(w, r, fmt.Errorf("render %s: %w", fileName, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case accounting.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail maps a service error to a response. Unexpected errors are logged and
// their text is not sent to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into out and validates its tags. It writes the
// error response itself and reports whether the handler may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return h.check(w, out)
}

// decodeOptional is decode for endpoints whose body may be empty.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := decodeJSON(r, out); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return h.check(w, out)
}

func (h *Handler) check(w http.ResponseWriter, out any) bool {
	err := h.validate.Struct(out)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, describeFieldError(fe))
	}
	writeError(w, http.StatusBadRequest, "validation failed", details...)
	return false
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s long", field, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

var errEmptyBody = errors.New("request body is empty")

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return fmt.Errorf("invalid JSON body: %s has the wrong type", typeErr.Field)
		}
		if strings.HasPrefix(err.Error(), "json: unknown field ") {
			return fmt.Errorf("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: "))
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

func parseOptionalInt64(raw string) (*int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer: %s", raw)
	}
	return &parsed, nil
}

func parseOptionalID(raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid id value: %s", raw)
	}
	return &id, nil
}

func parseOptionalBool(raw string) (bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid boolean: %s", raw)
	}
	return parsed, nil
}

const dateLayout = "2006-01-02"

func parseOptionalTime(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		utc := parsed.UTC()
		return &utc, nil
	}
	if parsed, err := time.Parse(dateLayout, value); err == nil {
		return &parsed, nil
	}
	return nil, fmt.Errorf("invalid time: %s", raw)
}

// parseOptionalEnd is parseOptionalTime for inclusive upper bounds: a bare
// date covers the whole day.
func parseOptionalEnd(raw string) (*time.Time, error) {
	parsed, err := parseOptionalTime(raw)
	if err != nil || parsed == nil {
		return parsed, err
	}
	if _, dateErr := time.Parse(dateLayout, strings.TrimSpace(raw)); dateErr == nil {
		end := parsed.Add(24*time.Hour - time.Nanosecond)
		return &end, nil
	}
	return parsed, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

type pageParams struct {
	limit  int
	offset int
}

func parsePage(r *http.Request, defaultLimit int) (pageParams, error) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), defaultLimit)
	if err != nil {
		return pageParams{}, fmt.Errorf("limit: %w", err)
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		return pageParams{}, fmt.Errorf("offset: %w", err)
	}
	return pageParams{limit: limit, offset: offset}, nil
}

type dateRange struct {
	from *time.Time
	to   *time.Time
}

func parseRange(r *http.Request) (dateRange, error) {
	query := r.URL.Query()
	from, err := parseOptionalTime(query.Get("from"))
	if err != nil {
		return dateRange{}, fmt.Errorf("from: %w", err)
	}
	to, err := parseOptionalEnd(query.Get("to"))
	if err != nil {
		return dateRange{}, fmt.Errorf("to: %w", err)
	}
	return dateRange{from: from, to: to}, nil
}
