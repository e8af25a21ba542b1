package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/auth"
	"github.com/theapemachine/a2a-relay/pkg/errors"
	"github.com/theapemachine/a2a-relay/pkg/jsonrpc"
	"github.com/theapemachine/a2a-relay/pkg/metrics"
	"github.com/theapemachine/a2a-relay/pkg/service/sse"
	"github.com/theapemachine/a2a-relay/pkg/worker"
)

func newTestServer(w worker.Worker, opts ...ServerOption) *A2AServer {
	manager, _ := newTestManager(w)
	return NewA2AServer(manager, opts...)
}

func postRPC(srv *A2AServer, path, body string, header ...string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := srv.App().Test(req)
	So(err, ShouldBeNil)

	return resp
}

func decodeRPC(resp *http.Response) jsonrpc.RawResponse {
	defer resp.Body.Close()

	var out jsonrpc.RawResponse
	So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)

	return out
}

func sendBody(id, taskID, text string) string {
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%q,"method":"message/send","params":{"message":{"messageId":"m-%s","taskId":%q,"role":"user","parts":[{"kind":"text","text":%q}]}}}`,
		id, id, taskID, text,
	)
}

func TestA2AServerCard(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv := newTestServer(worker.NewEcho())

		for _, path := range []string{"/.well-known/agent.json", "/.well-known/agent-card.json"} {
			Convey("It should serve the card at "+path, func() {
				resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
				So(err, ShouldBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				var card a2a.AgentCard
				So(json.NewDecoder(resp.Body).Decode(&card), ShouldBeNil)
				So(card.Name, ShouldEqual, "test-agent")
				So(card.Methods, ShouldContain, "message/send")
				So(card.Methods, ShouldContain, "tasks/get")
				So(card.DefaultOutputModes, ShouldResemble, []string{"text"})
			})
		}
	})
}

func TestA2AServerHealth(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv := newTestServer(worker.NewEcho())

		Convey("It should be live and ready", func() {
			resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("It should stop being ready while draining", func() {
			srv.draining.Store(true)

			resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("It should not stream events without a broker", func() {
			resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/events", nil))
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)

			resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a server with an event broker", t, func() {
		broker := sse.NewSSEBroker()
		manager, _ := newTestManager(worker.NewEcho(), WithBroker(broker))
		srv := NewA2AServer(manager)

		Convey("It should report stream metrics", func() {
			decodeRPC(postRPC(srv, "/", sendBody("r1", "t1", "ping")))

			resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var snap metrics.Snapshot
			So(json.NewDecoder(resp.Body).Decode(&snap), ShouldBeNil)
			So(snap.ActiveConnections, ShouldEqual, 0)
			So(snap.TotalEvents, ShouldEqual, 0)
		})
	})
}

func TestA2AServerMessageSend(t *testing.T) {
	Convey("Given a server with a pong worker", t, func() {
		srv := newTestServer(worker.Func(
			func(ctx context.Context, message *a2a.Message, contextID string) (worker.Result, error) {
				return worker.Complete("pong"), nil
			},
		))

		Convey("A ping should complete with the answer in the first artifact", func() {
			resp := postRPC(srv, "/", sendBody("r1", "t1", "ping"))
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			out := decodeRPC(resp)
			So(out.Error, ShouldBeNil)
			So(string(out.ID), ShouldEqual, `"r1"`)

			var task a2a.Task
			So(json.Unmarshal(out.Result, &task), ShouldBeNil)
			So(task.ID, ShouldEqual, "t1")
			So(task.Kind, ShouldEqual, "task")
			So(task.Status.State, ShouldEqual, a2a.TaskStateCompleted)
			So(task.Artifacts[0].Parts[0].Text, ShouldEqual, "pong")
		})

		Convey("The task should be readable afterwards over /rpc", func() {
			decodeRPC(postRPC(srv, "/", sendBody("r1", "t1", "ping")))

			out := decodeRPC(postRPC(srv, "/rpc", `{"jsonrpc":"2.0","id":2,"method":"tasks/get","params":{"id":"t1"}}`))
			So(out.Error, ShouldBeNil)

			var task a2a.Task
			So(json.Unmarshal(out.Result, &task), ShouldBeNil)
			So(task.Status.State, ShouldEqual, a2a.TaskStateCompleted)
			So(task.History, ShouldHaveLength, 1)
		})

		Convey("A message with no parts should be invalid params and create nothing", func() {
			resp := postRPC(srv, "/", `{"jsonrpc":"2.0","id":"r1","method":"message/send","params":{"message":{"taskId":"t1","role":"user","parts":[]}}}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			out := decodeRPC(resp)
			So(out.Error, ShouldNotBeNil)
			So(out.Error.Code, ShouldEqual, errors.CodeInvalidParams)

			get := decodeRPC(postRPC(srv, "/", `{"jsonrpc":"2.0","id":2,"method":"tasks/get","params":{"id":"t1"}}`))
			So(get.Error.Code, ShouldEqual, errors.CodeTaskNotFound)
		})

		Convey("A request without a message should be invalid params", func() {
			out := decodeRPC(postRPC(srv, "/", `{"jsonrpc":"2.0","id":"r1","method":"message/send","params":{}}`))
			So(out.Error.Code, ShouldEqual, errors.CodeInvalidParams)
		})

		Convey("A get without an id should be invalid params", func() {
			out := decodeRPC(postRPC(srv, "/", `{"jsonrpc":"2.0","id":"r1","method":"tasks/get","params":{}}`))
			So(out.Error.Code, ShouldEqual, errors.CodeInvalidParams)
		})

		Convey("Malformed JSON should be rejected with 400", func() {
			resp := postRPC(srv, "/", `{"jsonrpc":"2.0",`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(decodeRPC(resp).Error.Code, ShouldEqual, errors.CodeParseError)
		})

		Convey("An unknown method should be method not found", func() {
			out := decodeRPC(postRPC(srv, "/", `{"jsonrpc":"2.0","id":1,"method":"tasks/sendSubscribe","params":{}}`))
			So(out.Error.Code, ShouldEqual, errors.CodeMethodNotFound)
		})

		Convey("A notification should get no body", func() {
			resp := postRPC(srv, "/", `{"jsonrpc":"2.0","method":"tasks/get","params":{"id":"t1"}}`)
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)

			body, _ := io.ReadAll(resp.Body)
			So(body, ShouldBeEmpty)
		})

		Convey("Cancel of a completed task should be refused", func() {
			decodeRPC(postRPC(srv, "/", sendBody("r1", "t1", "ping")))

			out := decodeRPC(postRPC(srv, "/", `{"jsonrpc":"2.0","id":2,"method":"tasks/cancel","params":{"id":"t1"}}`))
			So(out.Error.Code, ShouldEqual, errors.CodeTaskNotCancelable)
		})

		Convey("Push config calls should be refused when push is off", func() {
			decodeRPC(postRPC(srv, "/", sendBody("r1", "t1", "ping")))

			out := decodeRPC(postRPC(srv, "/", `{"jsonrpc":"2.0","id":2,"method":"tasks/pushNotificationConfig/set","params":{"taskId":"t1","pushNotificationConfig":{"url":"http://localhost/hook"}}}`))
			So(out.Error.Code, ShouldEqual, errors.CodePushNotificationNotSupported)
		})
	})

	Convey("Given a server whose worker fails", t, func() {
		srv := newTestServer(worker.Func(
			func(ctx context.Context, message *a2a.Message, contextID string) (worker.Result, error) {
				return worker.Result{}, fmt.Errorf("stack trace at /opt/worker/main.py:12")
			},
		))

		out := decodeRPC(postRPC(srv, "/", sendBody("r1", "t1", "ping")))

		Convey("The response should still be a result carrying a failed task", func() {
			So(out.Error, ShouldBeNil)

			var task a2a.Task
			So(json.Unmarshal(out.Result, &task), ShouldBeNil)
			So(task.Status.State, ShouldEqual, a2a.TaskStateFailed)
			So(task.Artifacts, ShouldBeEmpty)
			So(task.Error, ShouldNotBeNil)
			So(string(out.Result), ShouldNotContainSubstring, "main.py")
		})
	})
}

func TestA2AServerAuth(t *testing.T) {
	Convey("Given a server that requires a bearer token", t, func() {
		svc, err := auth.NewService("test-secret")
		So(err, ShouldBeNil)

		srv := newTestServer(worker.NewEcho(), WithAuth(svc))

		Convey("A call without a token should be unauthorized", func() {
			resp := postRPC(srv, "/", sendBody("r1", "t1", "ping"))
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("A call with a forged token should be unauthorized", func() {
			other, _ := auth.NewService("other-secret")
			token, _, _ := other.GenerateToken("mallory", nil)

			resp := postRPC(srv, "/", sendBody("r1", "t1", "ping"), "Authorization", "Bearer "+token)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("A call with a valid token should go through", func() {
			token, _, err := svc.GenerateToken("alice", nil)
			So(err, ShouldBeNil)

			resp := postRPC(srv, "/", sendBody("r1", "t1", "ping"), "Authorization", "Bearer "+token)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(decodeRPC(resp).Error, ShouldBeNil)
		})

		Convey("The agent card should stay public", func() {
			resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil))
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}

func TestA2AServerRateLimit(t *testing.T) {
	Convey("Given a server allowing one call per minute", t, func() {
		srv := newTestServer(worker.NewEcho(), WithRateLimiter(auth.NewClientLimiter(1, time.Minute)))

		first := postRPC(srv, "/", sendBody("r1", "t1", "ping"))
		second := postRPC(srv, "/", sendBody("r2", "t2", "ping"))

		Convey("The second call should be throttled", func() {
			So(first.StatusCode, ShouldEqual, http.StatusOK)
			So(second.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			So(second.Header.Get("Retry-After"), ShouldNotBeEmpty)
		})
	})
}
