package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-relay/pkg/errors"
	"github.com/theapemachine/a2a-relay/pkg/jsonrpc"
)

/*
HandlerFunc processes the raw params of one call. Any error is mapped onto
its wire form by errors.ToRPC, so handlers return the task layer's typed
errors rather than building RpcErrors themselves.
*/
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// RPCServer multiplexes JSON-RPC method names to handler functions.
type RPCServer struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRPCServer() *RPCServer {
	return &RPCServer{
		handlers: make(map[string]HandlerFunc),
	}
}

func (s *RPCServer) Register(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Methods lists the registered method names in sorted order.
func (s *RPCServer) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]string, 0, len(s.handlers))

	for method := range s.handlers {
		methods = append(methods, method)
	}

	sort.Strings(methods)

	return methods
}

/*
Handle decodes one HTTP body, which may be a single request or a batch, and
returns the HTTP status together with the payload to encode. A nil payload
means there is nothing to write back (only notifications were received).
*/
func (s *RPCServer) Handle(ctx context.Context, body []byte) (int, any) {
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		return http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, errors.ErrInvalidRequest)
	}

	if !json.Valid(body) {
		return http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, errors.ErrParseError)
	}

	if body[0] == '[' {
		return s.handleBatch(ctx, body)
	}

	req, rpcErr := decodeRequest(body)

	if rpcErr != nil {
		return http.StatusBadRequest, jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}

	resp := s.dispatch(ctx, req)

	if req.IsNotification() {
		return http.StatusNoContent, nil
	}

	return http.StatusOK, resp
}

func (s *RPCServer) handleBatch(ctx context.Context, body []byte) (int, any) {
	var batch []json.RawMessage

	if err := json.Unmarshal(body, &batch); err != nil || len(batch) == 0 {
		return http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, errors.ErrInvalidRequest)
	}

	responses := make([]jsonrpc.RPCResponse, 0, len(batch))

	for _, raw := range batch {
		req, rpcErr := decodeRequest(raw)

		if rpcErr != nil {
			responses = append(responses, jsonrpc.NewErrorResponse(req.ID, rpcErr))
			continue
		}

		resp := s.dispatch(ctx, req)

		// Notifications have no ID, skip sending a response.
		if req.IsNotification() {
			continue
		}

		responses = append(responses, resp)
	}

	if len(responses) == 0 {
		return http.StatusNoContent, nil
	}

	return http.StatusOK, responses
}

func decodeRequest(raw []byte) (jsonrpc.RPCRequest, *errors.RpcError) {
	var req jsonrpc.RPCRequest

	if err := json.Unmarshal(raw, &req); err != nil {
		return jsonrpc.RPCRequest{}, errors.ErrInvalidRequest.WithMessagef("Invalid Request: %v", err)
	}

	if req.JSONRPC != jsonrpc.Version {
		return req, errors.ErrInvalidRequest.WithMessagef("Invalid Request: jsonrpc must be %q", jsonrpc.Version)
	}

	if req.Method == "" {
		return req, errors.ErrInvalidRequest.WithMessagef("Invalid Request: method is required")
	}

	return req, nil
}

func (s *RPCServer) dispatch(ctx context.Context, req jsonrpc.RPCRequest) (resp jsonrpc.RPCResponse) {
	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, errors.ToRPC(&errors.UnknownMethodError{Method: req.Method}))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("rpc handler panic", "method", req.Method, "panic", r)
			resp = jsonrpc.NewErrorResponse(req.ID, errors.ErrInternal)
		}
	}()

	result, err := h(ctx, req.Params)

	if err != nil {
		rpcErr := errors.ToRPC(err)

		if rpcErr.Code == errors.CodeInternal {
			log.Error("rpc call failed", "method", req.Method, "error", err)
		} else {
			log.Debug("rpc call rejected", "method", req.Method, "code", rpcErr.Code, "error", err)
		}

		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}

	return jsonrpc.NewResponse(req.ID, result)
}

/*
decodeParams unmarshals params into out. Missing params decode as an empty
object so the method's own checks report what is absent.
*/
func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}

	if err := json.Unmarshal(params, out); err != nil {
		return errors.ErrInvalidParams.WithMessagef("Invalid params: %v", err)
	}

	return nil
}

func requireField(name, value string) error {
	if value == "" {
		return errors.ErrInvalidParams.WithMessagef("Invalid params: %s is required", name)
	}

	return nil
}
