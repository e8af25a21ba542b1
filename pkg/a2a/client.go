package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	fiberClient "github.com/gofiber/fiber/v3/client"
	"github.com/theapemachine/a2a-relay/pkg/jsonrpc"
)

/*
Client speaks the A2A JSON-RPC surface of a remote agent.
*/
type Client struct {
	baseURL string
	path    string
	token   string
	conn    *fiberClient.Client
}

type ClientOption func(*Client)

/*
NewClient creates a new A2A client.
*/
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: baseURL,
		path:    "/",
		conn:    fiberClient.New().SetBaseURL(baseURL),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// WithToken sends the token as a bearer credential on every call.
func WithToken(token string) ClientOption {
	return func(client *Client) {
		client.token = token
	}
}

// WithRPCPath overrides the JSON-RPC endpoint path.
func WithRPCPath(path string) ClientOption {
	return func(client *Client) {
		client.path = path
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(client *Client) {
		client.conn.SetTimeout(timeout)
	}
}

// BaseURL is the agent address the client was created with.
func (client *Client) BaseURL() string {
	return client.baseURL
}

func (client *Client) Token() string {
	return client.token
}

func (client *Client) headers() map[string]string {
	header := map[string]string{
		"Content-Type": "application/json",
	}

	if client.token != "" {
		header["Authorization"] = "Bearer " + client.token
	}

	return header
}

/*
Call sends one JSON-RPC request and decodes the result into result. A
JSON-RPC error comes back as *errors.RpcError so callers can read its code.
*/
func (client *Client) Call(ctx context.Context, method string, params, result any) error {
	req, err := jsonrpc.NewRequest(method, params)

	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	res, err := client.conn.Post(client.path, fiberClient.Config{
		Ctx:    ctx,
		Header: client.headers(),
		Body:   req,
	})

	if err != nil {
		return err
	}

	defer res.Close()

	switch res.StatusCode() {
	case http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: invalid or expired token")
	case http.StatusForbidden:
		return fmt.Errorf("forbidden: insufficient permissions")
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited by %s", client.baseURL)
	}

	var rpcResp jsonrpc.RawResponse

	if err := json.Unmarshal(res.Body(), &rpcResp); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, res.StatusCode(), err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result == nil || len(rpcResp.Result) == 0 {
		return nil
	}

	return json.Unmarshal(rpcResp.Result, result)
}

/*
SendMessage sends a message to the agent and returns the resulting task.
*/
func (client *Client) SendMessage(ctx context.Context, params MessageSendParams) (*Task, error) {
	task := &Task{}

	if err := client.Call(ctx, "message/send", params, task); err != nil {
		return nil, err
	}

	return task, nil
}

/*
GetTask retrieves the current snapshot of a task.
*/
func (client *Client) GetTask(ctx context.Context, params TaskQueryParams) (*Task, error) {
	task := &Task{}

	if err := client.Call(ctx, "tasks/get", params, task); err != nil {
		return nil, err
	}

	return task, nil
}

/*
CancelTask cancels a task.
*/
func (client *Client) CancelTask(ctx context.Context, params TaskIDParams) (*Task, error) {
	task := &Task{}

	if err := client.Call(ctx, "tasks/cancel", params, task); err != nil {
		return nil, err
	}

	return task, nil
}

func (client *Client) SetPushConfig(
	ctx context.Context, params TaskPushNotificationConfig,
) (*TaskPushNotificationConfig, error) {
	out := &TaskPushNotificationConfig{}

	if err := client.Call(ctx, "tasks/pushNotificationConfig/set", params, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (client *Client) GetPushConfig(
	ctx context.Context, params TaskIDParams,
) (*TaskPushNotificationConfig, error) {
	out := &TaskPushNotificationConfig{}

	if err := client.Call(ctx, "tasks/pushNotificationConfig/get", params, out); err != nil {
		return nil, err
	}

	return out, nil
}

/*
Card fetches the remote agent card from its well-known path.
*/
func (client *Client) Card(ctx context.Context) (*AgentCard, error) {
	res, err := client.conn.Get("/.well-known/agent.json", fiberClient.Config{Ctx: ctx})

	if err != nil {
		return nil, err
	}

	defer res.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("agent card: unexpected status %d", res.StatusCode())
	}

	card := &AgentCard{}

	if err := json.Unmarshal(res.Body(), card); err != nil {
		return nil, err
	}

	return card, nil
}
