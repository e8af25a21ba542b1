package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/jsonrpc"
)

// fakeAgent asks for input on the first message of a conversation and
// completes on the second.
func fakeAgent(seen *[]a2a.Message, mu *sync.Mutex) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			req    jsonrpc.RPCRequest
			params a2a.MessageSendParams
		)

		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.Unmarshal(req.Params, &params)

		mu.Lock()
		*seen = append(*seen, *params.Message)
		mu.Unlock()

		task := a2a.NewTask("remote-1", params.Message.ContextID)

		if params.Message.TaskID == "" {
			task.Status.State = a2a.TaskStateInputReq
			task.Status.Message = a2a.NewTextMessage(a2a.RoleAgent, "which database?")
		} else {
			task.Status.State = a2a.TaskStateCompleted
			task.Artifacts = []a2a.Artifact{a2a.NewArtifact("result", a2a.NewTextPart("schema ready"))}
		}

		_ = json.NewEncoder(w).Encode(jsonrpc.NewResponse(req.ID, task))
	}))
}

func TestRemote(t *testing.T) {
	Convey("Given a remote agent that asks one question", t, func() {
		var (
			seen []a2a.Message
			mu   sync.Mutex
		)

		srv := fakeAgent(&seen, &mu)
		defer srv.Close()

		remote := NewRemote(a2a.NewClient(srv.URL))
		ctx := context.Background()

		first, err := remote.Invoke(ctx, a2a.NewTextMessage(a2a.RoleUser, "design a schema"), "ctx-1")

		Convey("It should relay the question as requiring input", func() {
			So(err, ShouldBeNil)
			So(first.RequiresInput, ShouldBeTrue)
			So(first.Parts[0].Text, ShouldEqual, "which database?")
			So(seen[0].ContextID, ShouldEqual, "ctx-1")
			So(seen[0].TaskID, ShouldBeEmpty)
		})

		Convey("It should continue the remote task on the follow-up", func() {
			second, err := remote.Invoke(ctx, a2a.NewTextMessage(a2a.RoleUser, "postgres"), "ctx-1")

			So(err, ShouldBeNil)
			So(second.IsComplete, ShouldBeTrue)
			So(second.Parts[0].Text, ShouldEqual, "schema ready")
			So(seen[1].TaskID, ShouldEqual, "remote-1")
			So(remote.remoteTask("ctx-1"), ShouldBeEmpty)
		})
	})

	Convey("Given an unreachable remote agent", t, func() {
		remote := NewRemote(a2a.NewClient("http://127.0.0.1:1"))
		_, err := remote.Invoke(context.Background(), a2a.NewTextMessage(a2a.RoleUser, "x"), "c1")

		So(err, ShouldNotBeNil)
	})
}
