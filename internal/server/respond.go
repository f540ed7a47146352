package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/iota-uz/varda/pkg/serrors"
)

type errorBody struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the structured error to its HTTP status and emits the
// JSON envelope. Unclassified errors become an opaque 500 so internals
// never leak to the wire.
func writeError(w http.ResponseWriter, err error) {
	var be *serrors.BaseError
	if !errors.As(err, &be) {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    "INTERNAL",
			Message: "internal error",
		})
		return
	}
	if be.Kind == serrors.KindThrottled && be.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(be.RetryAfter/time.Second)+1))
	}
	writeJSON(w, statusForKind(be.Kind), errorBody{Code: be.Code, Message: be.Message})
}

func statusForKind(kind serrors.Kind) int {
	switch kind {
	case serrors.KindUnauthenticated:
		return http.StatusUnauthorized
	case serrors.KindPermissionDenied:
		return http.StatusForbidden
	case serrors.KindNotFound:
		return http.StatusNotFound
	case serrors.KindInvariantViolated:
		return http.StatusBadRequest
	case serrors.KindConflictDuplicate:
		return http.StatusConflict
	case serrors.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case serrors.KindThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
