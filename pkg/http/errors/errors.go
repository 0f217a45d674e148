package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body every failed request carries: a single
// human-readable detail string.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// RespondError writes a standardized error response.
func RespondError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Detail: detail})
}

// RespondBadRequest writes a 400 with the given detail.
func RespondBadRequest(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusBadRequest, detail)
}

// RespondNotFound writes a 404 with the given detail.
func RespondNotFound(w http.ResponseWriter, detail string) {
	RespondError(w, http.StatusNotFound, detail)
}

// RespondInternalError writes a generic 500. Internal detail stays in the
// logs, never in the payload.
func RespondInternalError(w http.ResponseWriter) {
	RespondError(w, http.StatusInternalServerError, "Internal server error")
}

// RespondMethodNotAllowed writes a 405.
func RespondMethodNotAllowed(w http.ResponseWriter) {
	RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
