package jsonrpc

import (
	"encoding/json"

	"github.com/google/uuid"
)

const Version = "2.0"

type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // accepts string | number | null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

/*
NewRequest builds a request with a fresh string id. Params are marshaled
eagerly so a bad payload fails here rather than on the wire.
*/
func NewRequest(method string, params any) (RPCRequest, error) {
	id, _ := json.Marshal(uuid.NewString())

	req := RPCRequest{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
	}

	if params != nil {
		buf, err := json.Marshal(params)

		if err != nil {
			return req, err
		}

		req.Params = buf
	}

	return req, nil
}

/*
IsNotification reports whether the request carries no id and so expects no
response.
*/
func (req *RPCRequest) IsNotification() bool {
	return len(req.ID) == 0
}
