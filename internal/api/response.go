package api

import (
	"encoding/json"
	"io"
	"net/http"
)

// writeJSON writes a JSON response to the response writer
func writeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// writeError sends an error response
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = writeJSON(w, ErrorResponse{Error: errorCode, Message: message})
}

// writeErrorFromErr maps err to an APIError and writes it.
func writeErrorFromErr(w http.ResponseWriter, err error) {
	apiErr := MapError(err)
	writeError(w, apiErr.StatusCode, string(apiErr.Code), apiErr.Message)
}

// writeOK writes data as a 200 JSON response.
func writeOK(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeJSON(w, data)
}

// writeCreated writes data as a 201 JSON response.
func writeCreated(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = writeJSON(w, data)
}
