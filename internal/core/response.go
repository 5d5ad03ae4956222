// AngelaMos | 2026
// response.go

package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// ResponseContext is attached to every envelope so clients can correlate
// responses with server-side logs.
type ResponseContext struct {
	RequestID string `json:"request_id"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

type PaginationMeta struct {
	Mode      string `json:"mode"`
	Page      int    `json:"page"`
	Size      int    `json:"size"`
	Total     int    `json:"total"`
	PageCount int    `json:"page_count"`
	HasPrev   bool   `json:"has_prev"`
	HasNext   bool   `json:"has_next"`
}

type SuccessEnvelope struct {
	Success bool            `json:"success"`
	Data    any             `json:"data"`
	Meta    *PaginationMeta `json:"meta"`
	Context ResponseContext `json:"context"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Success bool            `json:"success"`
	Error   ErrorBody       `json:"error"`
	Context ResponseContext `json:"context"`
}

func OK(w http.ResponseWriter, r *http.Request, data any) {
	writeSuccess(w, r, http.StatusOK, data, nil)
}

func Created(w http.ResponseWriter, r *http.Request, data any) {
	writeSuccess(w, r, http.StatusCreated, data, nil)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Paginated writes a page of items with normalized pagination meta. Page is
// 1-based; size is clamped by the caller's params normalization, so the meta
// here only derives the page count and prev/next flags.
func Paginated(
	w http.ResponseWriter,
	r *http.Request,
	items any,
	page, size, total int,
) {
	pageCount := 1
	if size > 0 {
		pageCount = (total + size - 1) / size
		if pageCount < 1 {
			pageCount = 1
		}
	}

	meta := &PaginationMeta{
		Mode:      "page",
		Page:      page,
		Size:      size,
		Total:     total,
		PageCount: pageCount,
		HasPrev:   page > 1,
		HasNext:   page < pageCount,
	}

	writeSuccess(w, r, http.StatusOK, items, meta)
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	JSONError(w, r, ValidationError(message, nil))
}

func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	JSONError(w, r, UnauthorizedError(message))
}

func Forbidden(w http.ResponseWriter, r *http.Request, message string) {
	JSONError(w, r, ForbiddenError(message))
}

func NotFound(w http.ResponseWriter, r *http.Request, resource string) {
	JSONError(w, r, NotFoundError(resource))
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	envelope := ErrorEnvelope{
		Success: false,
		Error: ErrorBody{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
		},
		Context: responseContext(r, http.StatusMethodNotAllowed),
	}

	writeJSON(w, http.StatusMethodNotAllowed, envelope)
}

func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "internal error",
		"error", err,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
	)
	JSONError(w, r, FromError(err))
}

// JSONError renders any error as an error envelope. Internal causes are
// logged but never serialized to the client.
func JSONError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)
	status := appErr.Kind.HTTPStatus()

	envelope := ErrorEnvelope{
		Success: false,
		Error: ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Context: responseContext(r, status),
	}

	writeJSON(w, status, envelope)
}

func writeSuccess(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	data any,
	meta *PaginationMeta,
) {
	envelope := SuccessEnvelope{
		Success: true,
		Data:    data,
		Meta:    meta,
		Context: responseContext(r, status),
	}

	writeJSON(w, status, envelope)
}

func responseContext(r *http.Request, status int) ResponseContext {
	return ResponseContext{
		RequestID: RequestIDFromContext(r.Context()),
		Path:      r.URL.Path,
		Method:    r.Method,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(body)
}
