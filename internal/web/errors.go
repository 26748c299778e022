package web

// errors.go maps service errors to HTTP responses.
//
// Every error is logged with the request ID and returned as the user
// message from core.MapError, rendered as JSON, an HTMX fragment or plain
// text depending on the request.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/cms/internal/core"
	"github.com/JonMunkholm/cms/internal/logging"
	"github.com/JonMunkholm/cms/internal/web/templates"
	"github.com/JonMunkholm/cms/internal/workbook"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Committed is set when an aborted import left earlier batches stored.
	Committed *int `json:"committed,omitempty"`
}

// respondError logs err and writes the user-facing message for it.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Log(r.Context(), logging.LevelForStatus(status), "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, msg, status)
	case wantsJSON(r):
		resp := ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		}
		var ie *core.ImportError
		if errors.As(err, &ie) {
			resp.Committed = &ie.Committed
		}
		writeJSONStatus(w, status, resp)
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

// respondServiceError picks the status for err and responds with it.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	respondError(w, r, err, status)
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	var (
		dateErr      *core.DateFormatError
		validErr     *core.ValidationError
		missingErr   *core.ReferenceNotFoundError
		malformedErr *core.MalformedReferenceError
		bookErr      *core.WorkbookFormatError
		maxBytesErr  *http.MaxBytesError
	)

	switch {
	case errors.Is(err, workbook.ErrTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrDuplicateKey), errors.Is(err, core.ErrAlreadyRolledBack):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrImportNotFound):
		return http.StatusNotFound
	case errors.As(err, &malformedErr), errors.As(err, &bookErr), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.As(err, &dateErr), errors.As(err, &validErr), errors.As(err, &missingErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		slog.Warn("render error fragment", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client expects JSON. API routes default
// to JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}
