package a2a

import "encoding/base64"

/*
Part is a discriminated union over text, file and data content. All optional
fields live on one struct so the wire form stays a flat object keyed by kind.
Exactly one of Text, File or Data is populated according to Kind; Validate
enforces that for inbound messages.
*/
type Part struct {
	Kind PartKind `json:"kind"`

	Text string         `json:"text,omitempty"`
	File *FilePart      `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartKind is the discriminator for a Part union.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

/*
FilePart carries either inline base64 bytes or a URI pointing at the content.
*/
type FilePart struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

func NewTextPart(text string) Part {
	return Part{
		Kind: PartKindText,
		Text: text,
	}
}

func NewFilePart(name string, mimeType string, data []byte) Part {
	return Part{
		Kind: PartKindFile,
		File: &FilePart{
			Name:     name,
			MimeType: mimeType,
			Bytes:    base64.StdEncoding.EncodeToString(data),
		},
	}
}

func NewDataPart(data map[string]any) Part {
	return Part{
		Kind: PartKindData,
		Data: data,
	}
}

/*
Clone returns a deep copy of the part. Nested maps are copied recursively so
a stored part can never be changed through a handed out snapshot.
*/
func (part Part) Clone() Part {
	out := part

	if part.File != nil {
		file := *part.File
		out.File = &file
	}

	out.Data = cloneMap(part.Data)
	out.Metadata = cloneMap(part.Metadata)

	return out
}

func cloneParts(parts []Part) []Part {
	if parts == nil {
		return nil
	}

	out := make([]Part, len(parts))

	for i, part := range parts {
		out[i] = part.Clone()
	}

	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))

	for k, v := range in {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
