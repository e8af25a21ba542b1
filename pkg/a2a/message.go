package a2a

import (
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

/*
Message represents all non-artifact communication between client and agent.
Once accepted into a task's history a message is never changed again.
*/
type Message struct {
	Kind      string         `json:"kind"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	MessageID string         `json:"messageId"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewMessage(role Role, parts ...Part) *Message {
	return &Message{
		Kind:      "message",
		Role:      role,
		Parts:     parts,
		MessageID: uuid.NewString(),
	}
}

func NewTextMessage(role Role, text string) *Message {
	return NewMessage(role, NewTextPart(text))
}

/*
Clone returns a deep copy of the message.
*/
func (msg *Message) Clone() *Message {
	if msg == nil {
		return nil
	}

	out := *msg
	out.Parts = cloneParts(msg.Parts)
	out.Metadata = cloneMap(msg.Metadata)

	return &out
}

/*
String joins the text parts of the message.
*/
func (msg *Message) String() string {
	if msg == nil {
		return ""
	}

	var sb strings.Builder

	for _, part := range msg.Parts {
		if part.Kind == PartKindText {
			sb.WriteString(part.Text)
		}
	}

	return sb.String()
}
