package rpc

import "encoding/json"

// jsonRPCVersion is the fixed version tag on every envelope.
const jsonRPCVersion = "2.0"

// Request is an outgoing JSON-RPC envelope. ID is nil for notifications,
// which expect no response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      *int64 `json:"id,omitempty"`
}

// Response is an incoming JSON-RPC envelope. Exactly one of Result and
// Error is populated on a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a JSON-RPC response.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// newRequest builds a request envelope with the given id.
func newRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		ID:      &id,
	}
}

// newNotification builds an id-less request envelope.
func newNotification(method string, params any) *Request {
	return &Request{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
	}
}
