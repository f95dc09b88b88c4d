// Package rpc provides JSON-RPC 2.0 types for the Intcode toolkit API.
package rpc

import (
	"encoding/json"

	"github.com/ednl/intcode/internal/types"
)

// JSON-RPC 2.0 constants.
const (
	JSONRPCVersion = "2.0"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RunConfig configures the run method.
type RunConfig struct {
	// Inputs are queued on the machine's input channel before execution.
	Inputs []types.Word `json:"inputs,omitempty"`

	// Record stores the run in the run store when one is attached.
	Record bool `json:"record,omitempty"`
}

// RunResult is the run method's result.
type RunResult struct {
	ProgramID string       `json:"programId"`
	Outputs   []types.Word `json:"outputs"`
}

// SearchConfig configures the chainSearch and feedbackSearch methods.
type SearchConfig struct {
	// Amps is the number of machine instances (default 5).
	Amps int `json:"amps,omitempty"`

	// PhaseBase is the first phase value; the set is the contiguous
	// block of Amps values from it. Defaults: 0 for chain, 5 for feedback.
	PhaseBase *types.Word `json:"phaseBase,omitempty"`

	// Record stores the best result in the run store when one is attached.
	Record bool `json:"record,omitempty"`
}

// SearchResult is the search methods' result.
type SearchResult struct {
	ProgramID string       `json:"programId"`
	Max       types.Word   `json:"max"`
	Phases    []types.Word `json:"phases"`
	Trials    int          `json:"trials"`
}

// RunInfo is one run-store record on the wire.
type RunInfo struct {
	ProgramID string       `json:"programId"`
	Mode      string       `json:"mode"`
	Phases    []types.Word `json:"phases,omitempty"`
	Output    types.Word   `json:"output"`
	Rounds    int          `json:"rounds"`
	When      string       `json:"when"`
	Seq       uint64       `json:"seq"`
}

// VersionInfo is the getVersion result.
type VersionInfo struct {
	Version string `json:"version"`
}
