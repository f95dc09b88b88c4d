package rpc

import (
	"fmt"
)

// JSON-RPC 2.0 standard error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// Toolkit-specific error codes.
const (
	// ProgramInvalid indicates the submitted program text failed to parse.
	ProgramInvalid = -32001

	// ExecutionFault indicates the machine faulted while running.
	ExecutionFault = -32002

	// RunNotFound indicates no stored run matches the query.
	RunNotFound = -32003

	// StoreUnavailable indicates no run store is attached to the server.
	StoreUnavailable = -32004
)

// Common error values.
var (
	ErrParseError       = NewRPCError(ParseError, "Parse error")
	ErrInvalidRequest   = NewRPCError(InvalidRequest, "Invalid Request")
	ErrMethodNotFound   = NewRPCError(MethodNotFound, "Method not found")
	ErrInvalidParams    = NewRPCError(InvalidParams, "Invalid params")
	ErrInternalError    = NewRPCError(InternalError, "Internal error")
	ErrRunNotFound      = NewRPCError(RunNotFound, "No run recorded for program")
	ErrStoreUnavailable = NewRPCError(StoreUnavailable, "No run store attached")
)

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// InvalidParamsError creates an InvalidParams error with a detail message.
func InvalidParamsError(msg string) *RPCError {
	return NewRPCError(InvalidParams, msg)
}

// ProgramInvalidError wraps a loader failure.
func ProgramInvalidError(err error) *RPCError {
	return NewRPCError(ProgramInvalid, fmt.Sprintf("invalid program: %v", err))
}

// ExecutionFaultError wraps a machine fault.
func ExecutionFaultError(err error) *RPCError {
	return NewRPCError(ExecutionFault, fmt.Sprintf("execution fault: %v", err))
}

// InternalServerErrorf creates an internal error with a formatted message.
func InternalServerErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InternalError, fmt.Sprintf(format, args...))
}
