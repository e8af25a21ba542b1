package a2a

import (
	stderrors "errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/a2a-relay/pkg/errors"
)

func TestMessageValidate(t *testing.T) {
	Convey("Given inbound messages", t, func() {
		var invalid *errors.InvalidMessageError

		Convey("It should accept a text message", func() {
			So(NewTextMessage(RoleUser, "ping").Validate(), ShouldBeNil)
		})

		Convey("It should accept file and data parts", func() {
			msg := NewMessage(RoleUser,
				NewFilePart("a.txt", "text/plain", []byte("hello")),
				NewDataPart(map[string]any{"k": 1}),
				Part{Kind: PartKindFile, File: &FilePart{URI: "https://example.com/a.png"}},
			)
			So(msg.Validate(), ShouldBeNil)
		})

		Convey("It should reject a nil message", func() {
			var msg *Message
			So(stderrors.As(msg.Validate(), &invalid), ShouldBeTrue)
		})

		Convey("It should reject an empty parts array", func() {
			err := (&Message{Role: RoleUser, Parts: []Part{}}).Validate()
			So(stderrors.As(err, &invalid), ShouldBeTrue)
			So(invalid.Reason, ShouldContainSubstring, "at least one part")
		})

		Convey("It should reject a part without kind", func() {
			err := NewMessage(RoleUser, Part{Text: "x"}).Validate()
			So(stderrors.As(err, &invalid), ShouldBeTrue)
			So(invalid.Reason, ShouldEqual, "part 0: missing kind")
		})

		Convey("It should reject a part without payload", func() {
			So(NewMessage(RoleUser, NewTextPart("ok"), Part{Kind: PartKindText}).Validate(), ShouldNotBeNil)
			So(NewMessage(RoleUser, Part{Kind: PartKindFile}).Validate(), ShouldNotBeNil)
			So(NewMessage(RoleUser, Part{Kind: PartKindData}).Validate(), ShouldNotBeNil)
		})

		Convey("It should reject mixed payloads", func() {
			So(NewMessage(RoleUser, Part{Kind: PartKindText, Text: "x", File: &FilePart{URI: "https://example.com"}}).Validate(), ShouldNotBeNil)
			So(NewMessage(RoleUser, Part{Kind: PartKindFile, File: &FilePart{Bytes: "aGk=", URI: "https://example.com"}}).Validate(), ShouldNotBeNil)
		})

		Convey("It should reject unknown kinds and roles", func() {
			So(NewMessage(RoleUser, Part{Kind: "audio", Text: "x"}).Validate(), ShouldNotBeNil)
			So(NewMessage(Role("system"), NewTextPart("x")).Validate(), ShouldNotBeNil)
		})
	})
}

func TestAcceptsOutput(t *testing.T) {
	Convey("Given a card producing text", t, func() {
		card := &AgentCard{DefaultOutputModes: []string{"text", "text/plain"}}

		So(card.AcceptsOutput(nil), ShouldBeTrue)
		So(card.AcceptsOutput([]string{"image/png", "text"}), ShouldBeTrue)
		So(card.AcceptsOutput([]string{"*/*"}), ShouldBeTrue)
		So(card.AcceptsOutput([]string{"image/png"}), ShouldBeFalse)
	})
}
