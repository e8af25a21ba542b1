package a2a

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

/*
Task is a unit of work tracked from submission to a terminal state. The id
never changes after creation.
*/
type Task struct {
	Kind          string             `json:"kind"`
	ID            string             `json:"id"`
	ContextID     string             `json:"contextId"`
	Status        TaskStatus         `json:"status"`
	StatusHistory []StatusTransition `json:"statusHistory,omitempty"`
	History       []Message          `json:"history,omitempty"`
	Artifacts     []Artifact         `json:"artifacts,omitempty"`
	Error         *TaskError         `json:"error,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

/*
TaskError is the short, non-sensitive failure summary recorded on a failed
task. It never carries the underlying error text unless the worker chose to
report it.
*/
type TaskError struct {
	Type    string `json:"type"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

const (
	TaskErrorWorker  = "WorkerError"
	TaskErrorTimeout = "TimeoutError"
)

func NewTask(id, contextID string) Task {
	now := time.Now().UTC()

	return Task{
		Kind:      "task",
		ID:        id,
		ContextID: contextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: now,
		},
		StatusHistory: []StatusTransition{{
			To:        TaskStateSubmitted,
			Timestamp: now,
		}},
	}
}

/*
Clone returns a deep copy of the task so callers can never reach into the
store's copy.
*/
func (task Task) Clone() Task {
	out := task
	out.Status.Message = task.Status.Message.Clone()

	if task.StatusHistory != nil {
		out.StatusHistory = append([]StatusTransition(nil), task.StatusHistory...)
	}

	if task.History != nil {
		out.History = make([]Message, len(task.History))
		for i := range task.History {
			out.History[i] = *task.History[i].Clone()
		}
	}

	if task.Artifacts != nil {
		out.Artifacts = make([]Artifact, len(task.Artifacts))
		for i, artifact := range task.Artifacts {
			out.Artifacts[i] = artifact.Clone()
		}
	}

	if task.Error != nil {
		taskErr := *task.Error
		out.Error = &taskErr
	}

	out.Metadata = cloneMap(task.Metadata)

	return out
}

/*
WithHistoryLength trims the message history to the most recent n entries.
A negative n leaves the history untouched; zero drops it.
*/
func (task Task) WithHistoryLength(n int) Task {
	if n < 0 || len(task.History) <= n {
		return task
	}

	task.History = task.History[len(task.History)-n:]

	if len(task.History) == 0 {
		task.History = nil
	}

	return task
}

/*
Text returns the primary textual result: the first text part of the first
artifact for completed tasks, otherwise the status message.
*/
func (task *Task) Text() string {
	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if part.Kind == PartKindText {
				return part.Text
			}
		}
	}

	return task.Status.Message.String()
}

func (task *Task) String() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("212")).
		Bold(true)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	indent := "   "
	bullet := "│ "

	line := func(prefix, label, value string) {
		sb.WriteString(prefix + labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}

	sb.WriteString(headerStyle.Render("Task") + "\n")
	line(bullet, "ID: ", task.ID)
	line(bullet, "Context ID: ", task.ContextID)

	sb.WriteString("\n" + sectionStyle.Render("Status") + "\n")
	line(bullet, "State: ", string(task.Status.State))

	if text := task.Status.Message.String(); text != "" {
		line(bullet, "Message: ", text)
	}

	line(bullet, "Timestamp: ", task.Status.Timestamp.Format(time.RFC3339))

	for _, transition := range task.StatusHistory {
		from := string(transition.From)
		if from == "" {
			from = "∅"
		}

		line(bullet+indent, "", fmt.Sprintf(
			"%s → %s  %s", from, transition.To, transition.Timestamp.Format(time.RFC3339Nano),
		))
	}

	if task.Error != nil {
		sb.WriteString("\n" + sectionStyle.Render("Error") + "\n")
		line(bullet, "Type: ", task.Error.Type)
		line(bullet, "Message: ", task.Error.Message)
	}

	if len(task.History) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("History") + "\n")

		for i, message := range task.History {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Message %d", i+1)) + "\n")
			line(bullet+indent, "Role: ", string(message.Role))

			for _, part := range message.Parts {
				line(bullet+indent, "Content: ", partSummary(part))
			}
		}
	}

	if len(task.Artifacts) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Artifacts") + "\n")

		for i, artifact := range task.Artifacts {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Artifact %d", i+1)) + "\n")

			if artifact.Name != "" {
				line(bullet+indent, "Name: ", artifact.Name)
			}

			for j, part := range artifact.Parts {
				line(bullet+indent, fmt.Sprintf("Part %d: ", j+1), partSummary(part))
			}
		}
	}

	if len(task.Metadata) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Metadata") + "\n")

		keys := make([]string, 0, len(task.Metadata))
		for k := range task.Metadata {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			line(bullet, k+": ", fmt.Sprintf("%v", task.Metadata[k]))
		}
	}

	return sb.String()
}

func partSummary(part Part) string {
	switch part.Kind {
	case PartKindFile:
		if part.File == nil {
			return "[file]"
		}
		return fmt.Sprintf("[file %s %s]", part.File.Name, part.File.MimeType)
	case PartKindData:
		return fmt.Sprintf("[data %v]", part.Data)
	default:
		return part.Text
	}
}
