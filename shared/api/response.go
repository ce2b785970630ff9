// shared/api/response.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// JSONErrorResponse is the body of every error response.
type JSONErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"` // machine-readable refusal, e.g. "group_full"
}

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error body.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteErrorReason(w, status, "", message)
}

// WriteErrorReason writes a JSON error body carrying a refusal reason.
func WriteErrorReason(w http.ResponseWriter, status int, reason, message string) {
	resp := JSONErrorResponse{Message: message, Code: status, Reason: reason}
	if err := WriteJSON(w, status, resp); err != nil {
		log.Printf("ERROR: Failed to write JSON error response: %v", err)
	}
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func WriteInternalServerError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
