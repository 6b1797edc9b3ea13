package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON-RPC error codes returned by the pipeline
// https://www.jsonrpc.org/specification#error_object
// https://eips.ethereum.org/EIPS/eip-1474#error-codes
const (
	ErrorCodeParseError     = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternal       = -32603
	ErrorCodeLimitExceeded  = -32005
)

// NilResultToken is returned by some node implementations in place of null
const NilResultToken = "<nil>"

// JsonRpcError is the error object of a JSON-RPC response
type JsonRpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewJsonRpcError creates an error with the given code and message,
// data is json encoded when not nil
func NewJsonRpcError(code int, message string, data interface{}) *JsonRpcError {
	rpcErr := &JsonRpcError{
		Code:    code,
		Message: message,
	}

	if data != nil {
		if encoded, err := json.Marshal(data); err == nil {
			rpcErr.Data = encoded
		}
	}

	return rpcErr
}

// NewInternalError creates a -32603 internal error
func NewInternalError(message string, data interface{}) *JsonRpcError {
	return NewJsonRpcError(ErrorCodeInternal, message, data)
}

// Error implements error
func (e *JsonRpcError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// Is matches errors with the same code and message
func (e *JsonRpcError) Is(target error) bool {
	t, ok := target.(*JsonRpcError)
	if !ok {
		return false
	}

	return e.Code == t.Code && e.Message == t.Message
}

// Clone returns a deep copy of the error
func (e *JsonRpcError) Clone() *JsonRpcError {
	if e == nil {
		return nil
	}

	clone := *e
	if e.Data != nil {
		clone.Data = append(json.RawMessage(nil), e.Data...)
	}

	return &clone
}

// JsonRpcResponse is a EVM JSON-RPC response
type JsonRpcResponse struct {
	Version      string          `json:"jsonrpc,omitempty"`
	ID           interface{}     `json:"id"`
	Result       json.RawMessage `json:"result,omitempty"`
	JsonRpcError *JsonRpcError   `json:"error,omitempty"`
}

// NewResponseFor creates an empty response answering req
func NewResponseFor(req *EVMRPCRequestEnvelope) *JsonRpcResponse {
	version := req.JSONRPCVersion
	if version == "" {
		version = "2.0"
	}

	return &JsonRpcResponse{
		Version: version,
		ID:      req.ID,
	}
}

// UnmarshalJsonRpcResponse unmarshals a JSON-RPC response
func UnmarshalJsonRpcResponse(data []byte) (*JsonRpcResponse, error) {
	var msg JsonRpcResponse
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// Marshal marshals a JSON-RPC response to JSON
func (resp *JsonRpcResponse) Marshal() ([]byte, error) {
	return json.Marshal(resp)
}

// Error returns the json-rpc error if any
func (resp *JsonRpcResponse) Error() error {
	if resp.JsonRpcError == nil {
		return nil
	}

	return resp.JsonRpcError
}

// IsResultEmpty reports whether the result is one of the empty sentinels:
// absent, null or the "<nil>" token.
func (resp *JsonRpcResponse) IsResultEmpty() bool {
	return IsEmptyResult(resp.Result)
}

// IsEmptyResult reports whether a raw result is absent, null or "<nil>"
func IsEmptyResult(result json.RawMessage) bool {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}

	var token string
	if err := json.Unmarshal(trimmed, &token); err == nil {
		return token == NilResultToken
	}

	return false
}

// Clone returns a deep copy of the response
func (resp *JsonRpcResponse) Clone() *JsonRpcResponse {
	clone := *resp
	if resp.Result != nil {
		clone.Result = append(json.RawMessage(nil), resp.Result...)
	}
	clone.JsonRpcError = resp.JsonRpcError.Clone()

	return &clone
}

// CopyOutcome copies result and error of src onto resp, keeping resp's id
func (resp *JsonRpcResponse) CopyOutcome(src *JsonRpcResponse) {
	copied := src.Clone()
	resp.Result = copied.Result
	resp.JsonRpcError = copied.JsonRpcError
}

// HasOutcome reports whether the response carries a result or an error
func (resp *JsonRpcResponse) HasOutcome() bool {
	return resp.Result != nil || resp.JsonRpcError != nil
}
