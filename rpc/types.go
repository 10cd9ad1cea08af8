package rpc

import "encoding/json"

// RPCRequest is a JSON-RPC 2.0 call envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      interface{}       `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 reply envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a typed failure back to the caller.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes grouped by failure class. Parse and method errors use
// the reserved JSON-RPC ranges; settlement failures get module-local codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602

	codeNotAuthorized = -32030
	codeNotFound      = -32031
	codeInvalidState  = -32032
	codeConflict      = -32033
	codePayment       = -32034
	codeInternal      = -32040
)
