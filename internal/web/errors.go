package web

// errors.go provides unified error response handling for the web layer.
//
// The technical error is logged with the request ID; the client receives the
// user message and support code from core.MapError. API routes always get
// JSON, pages get plain text.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/ledger/internal/core"
	"github.com/JonMunkholm/ledger/internal/logging"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Message  string   `json:"message"`
	Action   string   `json:"action,omitempty"`
	Code     string   `json:"code"`
	Stage    string   `json:"stage,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	ImportID string   `json:"import_id,omitempty"`
}

// newErrorResponse maps err to its user-facing response. Import rejections
// carry their stage and every diagnostic so the sheet can be fixed in one
// pass.
func newErrorResponse(err error) ErrorResponse {
	msg := core.MapError(err)
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var ie *core.ImportError
	if errors.As(err, &ie) {
		resp.Stage = string(ie.Stage)
		resp.Errors = ie.Diagnostics
	}
	return resp
}

// respondError logs the technical error and writes the user-facing response.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	writeErrorResponse(w, r, err, newErrorResponse(err), statusCode)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error, resp ErrorResponse, statusCode int) {
	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", resp.Code,
		"request_id", chimw.GetReqID(r.Context()),
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if !wantsJSON(r) {
		http.Error(w, resp.Message+" ("+resp.Code+")", statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// importErrorStatus maps an import failure to its HTTP status. Problems with
// the uploaded sheet are the client's to fix and return 400; storage
// failures return 500.
func importErrorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case core.IsRejection(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
