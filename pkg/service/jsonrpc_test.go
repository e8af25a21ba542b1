package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/a2a-relay/pkg/errors"
	"github.com/theapemachine/a2a-relay/pkg/jsonrpc"
)

func newEchoRPC() *RPCServer {
	srv := NewRPCServer()

	srv.Register("echo", func(ctx context.Context, params json.RawMessage) (any, error) {
		var v struct {
			Text string `json:"text"`
		}

		if err := decodeParams(params, &v); err != nil {
			return nil, err
		}

		if err := requireField("text", v.Text); err != nil {
			return nil, err
		}

		return v.Text, nil
	})

	srv.Register("explode", func(ctx context.Context, params json.RawMessage) (any, error) {
		panic("boom")
	})

	return srv
}

// roundTrip pushes the payload through JSON the way the HTTP layer does.
func roundTrip(payload any) []jsonrpc.RawResponse {
	buf, err := json.Marshal(payload)
	So(err, ShouldBeNil)

	if len(buf) > 0 && buf[0] == '[' {
		var batch []jsonrpc.RawResponse
		So(json.Unmarshal(buf, &batch), ShouldBeNil)
		return batch
	}

	var single jsonrpc.RawResponse
	So(json.Unmarshal(buf, &single), ShouldBeNil)

	return []jsonrpc.RawResponse{single}
}

func TestRPCServerHandle(t *testing.T) {
	Convey("Given an rpc server with an echo method", t, func() {
		srv := newEchoRPC()
		ctx := context.Background()

		Convey("A valid call should return the result with the caller's id", func() {
			status, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":"abc","method":"echo","params":{"text":"hi"}}`))
			So(status, ShouldEqual, http.StatusOK)

			resp := roundTrip(payload)[0]
			So(resp.Error, ShouldBeNil)
			So(string(resp.ID), ShouldEqual, `"abc"`)
			So(string(resp.Result), ShouldEqual, `"hi"`)
		})

		Convey("Numeric ids should be echoed untouched", func() {
			_, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":7,"method":"echo","params":{"text":"hi"}}`))
			So(string(roundTrip(payload)[0].ID), ShouldEqual, `7`)
		})

		Convey("Malformed JSON should be a parse error", func() {
			status, payload := srv.Handle(ctx, []byte(`{"jsonrpc":`))
			So(status, ShouldEqual, http.StatusBadRequest)

			resp := roundTrip(payload)[0]
			So(resp.Error.Code, ShouldEqual, errors.CodeParseError)
			So(string(resp.ID), ShouldEqual, "null")
		})

		Convey("An empty body should be an invalid request", func() {
			status, payload := srv.Handle(ctx, []byte("  "))
			So(status, ShouldEqual, http.StatusBadRequest)
			So(roundTrip(payload)[0].Error.Code, ShouldEqual, errors.CodeInvalidRequest)
		})

		Convey("A wrong protocol version should be an invalid request", func() {
			status, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"1.0","id":1,"method":"echo"}`))
			So(status, ShouldEqual, http.StatusBadRequest)

			resp := roundTrip(payload)[0]
			So(resp.Error.Code, ShouldEqual, errors.CodeInvalidRequest)
			So(string(resp.ID), ShouldEqual, "1")
		})

		Convey("A missing method should be an invalid request", func() {
			_, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1}`))
			So(roundTrip(payload)[0].Error.Code, ShouldEqual, errors.CodeInvalidRequest)
		})

		Convey("A scalar body should be an invalid request", func() {
			status, payload := srv.Handle(ctx, []byte(`42`))
			So(status, ShouldEqual, http.StatusBadRequest)
			So(roundTrip(payload)[0].Error.Code, ShouldEqual, errors.CodeInvalidRequest)
		})

		Convey("An unknown method should be method not found", func() {
			status, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"tasks/send"}`))
			So(status, ShouldEqual, http.StatusOK)

			resp := roundTrip(payload)[0]
			So(resp.Error.Code, ShouldEqual, errors.CodeMethodNotFound)
			So(resp.Error.Data, ShouldEqual, "tasks/send")
		})

		Convey("Bad params should be invalid params", func() {
			_, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":5}}`))
			So(roundTrip(payload)[0].Error.Code, ShouldEqual, errors.CodeInvalidParams)

			_, payload = srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"echo"}`))
			So(roundTrip(payload)[0].Error.Code, ShouldEqual, errors.CodeInvalidParams)
		})

		Convey("A panicking handler should be an internal error", func() {
			_, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"explode"}`))

			resp := roundTrip(payload)[0]
			So(resp.Error.Code, ShouldEqual, errors.CodeInternal)
			So(resp.Error.Message, ShouldNotContainSubstring, "boom")
		})

		Convey("A notification should produce no content", func() {
			status, payload := srv.Handle(ctx, []byte(`{"jsonrpc":"2.0","method":"echo","params":{"text":"hi"}}`))
			So(status, ShouldEqual, http.StatusNoContent)
			So(payload, ShouldBeNil)
		})

		Convey("A batch should answer every call but the notifications", func() {
			status, payload := srv.Handle(ctx, []byte(`[
				{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":"a"}},
				{"jsonrpc":"2.0","method":"echo","params":{"text":"b"}},
				{"jsonrpc":"2.0","id":3,"method":"nope"},
				{"foo":"bar"}
			]`))
			So(status, ShouldEqual, http.StatusOK)

			batch := roundTrip(payload)
			So(batch, ShouldHaveLength, 3)
			So(string(batch[0].Result), ShouldEqual, `"a"`)
			So(batch[1].Error.Code, ShouldEqual, errors.CodeMethodNotFound)
			So(batch[2].Error.Code, ShouldEqual, errors.CodeInvalidRequest)
		})

		Convey("An empty batch should be an invalid request", func() {
			status, payload := srv.Handle(ctx, []byte(`[]`))
			So(status, ShouldEqual, http.StatusBadRequest)
			So(roundTrip(payload)[0].Error.Code, ShouldEqual, errors.CodeInvalidRequest)
		})

		Convey("A batch of notifications should produce no content", func() {
			status, payload := srv.Handle(ctx, []byte(`[{"jsonrpc":"2.0","method":"echo","params":{"text":"a"}}]`))
			So(status, ShouldEqual, http.StatusNoContent)
			So(payload, ShouldBeNil)
		})

		Convey("It should list its methods", func() {
			So(srv.Methods(), ShouldResemble, []string{"echo", "explode"})
		})
	})
}
