package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lectern-ai/lectern/internal/log"
)

// Error is the wire form of an API error. Every failure response carries
// exactly one of these under the "error" key.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// errorEnvelope wraps an Error for serialization.
type errorEnvelope struct {
	Error *Error `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
// The payload is encoded into a buffer first so headers are only sent after
// successful encoding; an encoding failure still produces a proper 500.
func WriteJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common here, not worth more than debug.
		logger.Debug("writing response body", "error", err)
	}
}

// WriteError writes an error response using the error envelope.
// code is a stable machine-readable identifier; message is for humans.
func WriteError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	WriteJSON(w, status, errorEnvelope{Error: &Error{
		Code:    code,
		Message: message,
		Status:  status,
	}}, logger)
}
