// ABOUTME: JSON response envelope used by every RPC endpoint.
// ABOUTME: Success bodies carry "data"; failures carry an "error" object.
package apierr

import (
	"encoding/json"
	"net/http"
)

// Envelope is the top-level body of every RPC response.
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// WriteData encodes v as a success envelope.
func WriteData(w http.ResponseWriter, status int, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(Envelope{Data: raw})
}

// WriteError encodes err as a failure envelope with the matching HTTP status.
func WriteError(w http.ResponseWriter, err error) {
	e := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(Envelope{Error: e})
}
