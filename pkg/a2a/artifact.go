package a2a

import "github.com/google/uuid"

/*
Artifact is the output of a task. It belongs to exactly one task.
*/
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewArtifact(name string, parts ...Part) Artifact {
	return Artifact{
		ArtifactID: uuid.NewString(),
		Name:       name,
		Parts:      parts,
	}
}

func (artifact Artifact) Clone() Artifact {
	out := artifact
	out.Parts = cloneParts(artifact.Parts)
	out.Metadata = cloneMap(artifact.Metadata)
	return out
}
