package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Request bodies are capped before decoding; anything past the limit is a
// client error, not an allocation.
const maxRequestBody = 1 << 20 // 1 MiB

// decodeJSON unmarshals the request body into T, rejecting unknown fields
// and trailing data.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var req T

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		var zero T
		if errors.Is(err, io.EOF) {
			return zero, errors.New("request body is empty")
		}
		return zero, fmt.Errorf("malformed request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var zero T
		return zero, errors.New("request body holds more than one JSON value")
	}
	return req, nil
}

// writeJSON renders v with the given status. Encoding failures turn into a
// bare 500 since the headers are not out yet.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeJSONError renders err in the envelope every endpoint shares.
func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, struct {
		Error   string `json:"error"`
		Status  int    `json:"status"`
		Message string `json:"message,omitempty"`
	}{
		Error:   http.StatusText(status),
		Status:  status,
		Message: err.Error(),
	})
}
