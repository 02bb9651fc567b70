package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"relayhq/relay/pkg/gateway"
)

// hopHeaders are recomputed by net/http and never copied from a logical
// response.
var hopHeaders = map[string]bool{
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
	"Keep-Alive":        true,
}

// WriteResponse writes resp to w. The status text of a logical response is
// not sent; net/http derives it from the code.
func WriteResponse(w http.ResponseWriter, resp *gateway.Response) {
	h := w.Header()
	for name, values := range resp.Headers {
		canonical := http.CanonicalHeaderKey(name)
		if hopHeaders[canonical] {
			continue
		}
		h.Del(canonical)
		for _, v := range values {
			h.Add(canonical, v)
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(resp.Body); err != nil {
		slog.Debug("failed to write response body", "error", err)
	}
}

// WriteError writes err as a JSON error body with the status it carries.
func WriteError(w http.ResponseWriter, err error) {
	body := NewErrorBody(err)
	WriteJSON(w, body.Status, body)
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(ContentTypeHeader, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
