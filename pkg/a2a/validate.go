package a2a

import (
	"net/url"

	"github.com/theapemachine/a2a-relay/pkg/errors"
)

/*
Validate checks an inbound message before any task is touched. A message
needs at least one part, and every part needs a known kind with the payload
that kind implies.
*/
func (msg *Message) Validate() error {
	if msg == nil {
		return errors.NewInvalidMessageError("message is required")
	}

	if len(msg.Parts) == 0 {
		return errors.NewInvalidMessageError("message must contain at least one part")
	}

	if msg.Role != "" && msg.Role != RoleUser && msg.Role != RoleAgent {
		return errors.NewInvalidMessageError("unknown role %q", msg.Role)
	}

	for i, part := range msg.Parts {
		if reason := part.problem(); reason != "" {
			return errors.NewInvalidMessageError("part %d: %s", i, reason)
		}
	}

	return nil
}

func (part Part) Validate() error {
	if reason := part.problem(); reason != "" {
		return errors.NewInvalidMessageError("%s", reason)
	}

	return nil
}

func (part Part) problem() string {
	switch part.Kind {
	case "":
		return "missing kind"
	case PartKindText:
		if part.Text == "" {
			return "text part has no text"
		}

		if part.File != nil || part.Data != nil {
			return "text part carries a file or data payload"
		}
	case PartKindFile:
		if part.File == nil || (part.File.Bytes == "" && part.File.URI == "") {
			return "file part needs bytes or uri"
		}

		if part.File.Bytes != "" && part.File.URI != "" {
			return "file part has both bytes and uri"
		}

		if part.File.URI != "" {
			if _, err := url.ParseRequestURI(part.File.URI); err != nil {
				return "file part has invalid uri"
			}
		}
	case PartKindData:
		if part.Data == nil {
			return "data part has no data"
		}
	default:
		return "unknown kind " + string(part.Kind)
	}

	return ""
}
