package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNodeNotFound is returned when a node ID no longer resolves remotely.
var ErrNodeNotFound = errors.New("node not found")

// APIError is a typed failure from the document API.
type APIError struct {
	Op     string // "search", "get_children", "append_children", "update_node", "delete_node"
	NodeID string
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("remote %s %s: status %d: %s", e.Op, e.NodeID, e.Status, e.Msg)
	}
	return fmt.Sprintf("remote %s: status %d: %s", e.Op, e.Status, e.Msg)
}

// Transient reports whether the failure is worth retrying at all. Which
// operations actually retry is decided per operation kind by the caller.
func (e *APIError) Transient() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransient reports whether err (or anything it wraps) is a retryable
// remote failure. Timeouts from the HTTP layer count as transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
