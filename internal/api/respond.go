package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"eneatest/internal/services"
)

type errorBody struct {
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: message}})
}

// writeServiceError maps a service error code onto an HTTP status. Anything
// that is not a ServiceError is treated as an internal failure and its detail
// kept out of the response.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	if svcErr, ok := services.AsServiceError(err); ok {
		writeError(w, statusFor(svcErr.Code), svcErr.Message)
		return
	}
	log.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict, services.ErrorStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses a request body into dst. A missing or malformed body is
// reported as a client error, never a server one.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return services.NewInvalidError("request body required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return services.NewInvalidError("invalid JSON body")
	}
	return nil
}
