package a2a

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewTask(t *testing.T) {
	Convey("Given a fresh task", t, func() {
		task := NewTask("t1", "c1")

		Convey("It should start submitted with one history entry", func() {
			So(task.Kind, ShouldEqual, "task")
			So(task.Status.State, ShouldEqual, TaskStateSubmitted)
			So(task.StatusHistory, ShouldHaveLength, 1)
			So(task.StatusHistory[0].From, ShouldEqual, TaskState(""))
			So(task.StatusHistory[0].To, ShouldEqual, TaskStateSubmitted)
		})
	})
}

func TestTaskClone(t *testing.T) {
	Convey("Given a task with nested content", t, func() {
		task := NewTask("t1", "c1")
		task.History = []Message{*NewMessage(RoleUser, NewTextPart("hi"), NewDataPart(map[string]any{
			"nested": map[string]any{"k": "v"},
		}))}
		task.Artifacts = []Artifact{NewArtifact("result", NewTextPart("pong"))}
		task.Status.Message = NewTextMessage(RoleAgent, "status")
		task.Error = &TaskError{Type: TaskErrorWorker, Message: "boom"}

		clone := task.Clone()

		Convey("It should be equal to the original", func() {
			So(cmp.Diff(task, clone), ShouldBeEmpty)
		})

		Convey("It should not share mutable state", func() {
			clone.History[0].Parts[0].Text = "changed"
			clone.History[0].Parts[1].Data["nested"].(map[string]any)["k"] = "changed"
			clone.Artifacts[0].Parts[0].Text = "changed"
			clone.Status.Message.Parts[0].Text = "changed"
			clone.Error.Message = "changed"
			clone.StatusHistory[0].To = TaskStateFailed

			So(task.History[0].Parts[0].Text, ShouldEqual, "hi")
			So(task.History[0].Parts[1].Data["nested"].(map[string]any)["k"], ShouldEqual, "v")
			So(task.Artifacts[0].Parts[0].Text, ShouldEqual, "pong")
			So(task.Status.Message.Parts[0].Text, ShouldEqual, "status")
			So(task.Error.Message, ShouldEqual, "boom")
			So(task.StatusHistory[0].To, ShouldEqual, TaskStateSubmitted)
		})
	})
}

func TestWithHistoryLength(t *testing.T) {
	Convey("Given a task with three messages", t, func() {
		task := NewTask("t1", "c1")

		for _, text := range []string{"a", "b", "c"} {
			task.History = append(task.History, *NewTextMessage(RoleUser, text))
		}

		Convey("It should keep the most recent entries", func() {
			trimmed := task.WithHistoryLength(2)
			So(trimmed.History, ShouldHaveLength, 2)
			So(trimmed.History[0].String(), ShouldEqual, "b")
			So(task.History, ShouldHaveLength, 3)
		})

		Convey("It should drop everything for zero", func() {
			So(task.WithHistoryLength(0).History, ShouldBeNil)
		})

		Convey("It should leave the history alone for negative lengths", func() {
			So(task.WithHistoryLength(-1).History, ShouldHaveLength, 3)
		})
	})
}

func TestTaskText(t *testing.T) {
	Convey("Given a completed task", t, func() {
		task := NewTask("t1", "c1")
		task.Artifacts = []Artifact{NewArtifact("result", NewTextPart("pong"))}

		Convey("It should read the first artifact text", func() {
			So(task.Text(), ShouldEqual, "pong")
		})
	})

	Convey("Given a task waiting for input", t, func() {
		task := NewTask("t1", "c1")
		task.Status.Message = NewTextMessage(RoleAgent, "need more info")

		Convey("It should read the status message", func() {
			So(task.Text(), ShouldEqual, "need more info")
			So(task.String(), ShouldContainSubstring, "need more info")
		})
	})
}
