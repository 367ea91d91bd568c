// Package rpc lets any process invoke a named method owned by exactly one
// worker role, over the physically-broadcast channel. Requests go out on
// "<role>_request", responses come back on "<role>_response", correlated
// by a random request id. Unicast is by convention: only the process whose
// role matches registers a handler for the request topic.
package rpc

import "encoding/json"

// Request is the payload broadcast on a role's request topic.
type Request struct {
	RequestID  string `json:"requestId"`
	MethodName string `json:"methodName"`
	Symbol     string `json:"symbol"`
}

// Response is the payload broadcast back on the role's response topic.
// Exactly one of Result or Error is set.
type Response struct {
	RequestID string          `json:"requestId"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}
