package jsonrpc

import (
	"encoding/json"

	"github.com/theapemachine/a2a-relay/pkg/errors"
)

type RPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

/*
RawResponse is the client side view of a response, leaving the result
undecoded until the caller knows its type.
*/
type RawResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *errors.RpcError `json:"error,omitempty"`
}

func NewResponse(id json.RawMessage, result any) RPCResponse {
	return RPCResponse{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Result:  result,
	}
}

func NewErrorResponse(id json.RawMessage, err *errors.RpcError) RPCResponse {
	return RPCResponse{
		JSONRPC: Version,
		ID:      normalizeID(id),
		Error:   err,
	}
}

// A response to a request whose id could not be read carries a null id.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}

	return id
}
