package proxy

import (
	"errors"
	"net/http"

	"relayhq/relay/pkg/gateway"
)

// ErrorBody is the JSON shape of every failure written by the relay.
type ErrorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Method  string `json:"method,omitempty"`
	Path    string `json:"path,omitempty"`
}

// NewErrorBody describes err. Statuses and messages come from the
// gateway's error mapping; unknown errors become a 500 whose message does
// not leak the cause.
func NewErrorBody(err error) ErrorBody {
	status := gateway.StatusOf(err)
	body := ErrorBody{Status: status, Message: gateway.MessageOf(err)}

	var ge *gateway.Error
	if errors.As(err, &ge) {
		body.Method = ge.Method
		body.Path = ge.Path
	} else if status == http.StatusInternalServerError {
		body.Message = http.StatusText(status)
	}
	if body.Message == "" {
		body.Message = http.StatusText(status)
	}
	return body
}
