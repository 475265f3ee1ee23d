package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/pkg/logging"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	TraceID string         `json:"trace_id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg})
}

func statusOf(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInsufficientStock, domain.KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to the error envelope. Internal errors are
// logged and their message is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	body := errorBody{
		Code:    kind.String(),
		Message: err.Error(),
		TraceID: RequestIDFrom(r.Context()),
	}

	var short *domain.InsufficientStockError
	if errors.As(err, &short) {
		body.Details = map[string]any{
			"productId": short.ProductID,
			"available": short.Available,
			"requested": short.Requested,
		}
	}
	if kind == domain.KindInternal {
		logging.Error(logging.Fields{
			Service: "http",
			Message: "request failed",
			Extra:   map[string]any{"request_id": body.TraceID, "path": r.URL.Path},
		}, err)
		body.Message = "internal server error"
	}
	writeJSON(w, statusOf(kind), errorResponse{Error: body})
}

// decode reads a JSON body into v. An empty or malformed body is a
// validation error.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return domain.Validationf("request body is required")
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.Validationf("request body exceeds %d bytes", tooLarge.Limit)
	}
	if err != nil {
		return domain.Validationf("invalid json: %v", err)
	}
	return nil
}
