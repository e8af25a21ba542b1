package worker

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
)

func TestEcho(t *testing.T) {
	Convey("Given an echo worker", t, func() {
		echo := NewEcho()
		msg := a2a.NewMessage(a2a.RoleUser,
			a2a.NewTextPart("one"),
			a2a.NewDataPart(map[string]any{"n": 2}),
			a2a.NewTextPart("three"),
		)

		result, err := echo.Invoke(context.Background(), msg, "c1")

		Convey("It should complete with the same parts in order", func() {
			So(err, ShouldBeNil)
			So(result.IsComplete, ShouldBeTrue)
			So(result.RequiresInput, ShouldBeFalse)
			So(result.Parts, ShouldHaveLength, 3)
			So(result.Parts[0].Text, ShouldEqual, "one")
			So(result.Parts[1].Data["n"], ShouldEqual, 2)
			So(result.Parts[2].Text, ShouldEqual, "three")
		})

		Convey("It should not share parts with the input", func() {
			result.Parts[0].Text = "changed"
			So(msg.Parts[0].Text, ShouldEqual, "one")
		})
	})

	Convey("Given a slow echo worker", t, func() {
		echo := NewEcho(WithDelay(time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := echo.Invoke(ctx, a2a.NewTextMessage(a2a.RoleUser, "x"), "c1")

		Convey("It should stop when the context ends", func() {
			So(err, ShouldEqual, context.DeadlineExceeded)
		})
	})
}

func TestFunc(t *testing.T) {
	Convey("Given a function worker", t, func() {
		var fn Worker = Func(func(ctx context.Context, message *a2a.Message, contextID string) (Result, error) {
			return AskForInput("need more info from " + contextID), nil
		})

		result, err := fn.Invoke(context.Background(), a2a.NewTextMessage(a2a.RoleUser, "x"), "c1")

		So(err, ShouldBeNil)
		So(result.RequiresInput, ShouldBeTrue)
		So(result.Parts[0].Text, ShouldEqual, "need more info from c1")
	})
}

func TestNewFromConfig(t *testing.T) {
	Convey("Given worker configuration", t, func() {
		defer viper.Reset()

		Convey("It should default to echo", func() {
			viper.Set("worker.kind", "")
			w, err := NewFromConfig()
			So(err, ShouldBeNil)
			So(w, ShouldHaveSameTypeAs, &Echo{})
		})

		Convey("It should require a url for remote", func() {
			viper.Set("worker.kind", "remote")
			viper.Set("worker.remote.url", "")
			_, err := NewFromConfig()
			So(err, ShouldNotBeNil)
		})

		Convey("It should build a remote worker", func() {
			viper.Set("worker.kind", "remote")
			viper.Set("worker.remote.url", "http://localhost:8022")
			w, err := NewFromConfig()
			So(err, ShouldBeNil)
			So(w, ShouldHaveSameTypeAs, &Remote{})
		})

		Convey("It should reject unknown kinds", func() {
			viper.Set("worker.kind", "subprocess")
			_, err := NewFromConfig()
			So(err, ShouldNotBeNil)
		})
	})
}
