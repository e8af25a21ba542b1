package a2a

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type AgentAuthentication struct {
	// Schemes is a list of supported authentication schemes
	Schemes []string `json:"schemes"`
}

// AgentCapabilities describes the capabilities of an agent
type AgentCapabilities struct {
	// Streaming indicates if the agent supports streaming responses
	Streaming bool `json:"streaming"`
	// PushNotifications indicates if the agent supports push notification mechanisms
	PushNotifications bool `json:"pushNotifications"`
	// StateTransitionHistory indicates if the agent supports providing state transition history
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentProvider represents the provider or organization behind an agent
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentSkill defines a specific skill or capability offered by an agent
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

/*
AgentCard is the static capability descriptor served from the well-known
paths. It has no relation to task state.
*/
type AgentCard struct {
	Name               string               `json:"name" yaml:"name"`
	Description        string               `json:"description,omitempty" yaml:"description,omitempty"`
	URL                string               `json:"url" yaml:"url"`
	Provider           *AgentProvider       `json:"provider,omitempty" yaml:"provider,omitempty"`
	Version            string               `json:"version" yaml:"version"`
	DocumentationURL   string               `json:"documentationUrl,omitempty" yaml:"documentationUrl,omitempty"`
	Capabilities       AgentCapabilities    `json:"capabilities" yaml:"capabilities"`
	Authentication     *AgentAuthentication `json:"authentication,omitempty" yaml:"authentication,omitempty"`
	DefaultInputModes  []string             `json:"defaultInputModes" yaml:"defaultInputModes"`
	DefaultOutputModes []string             `json:"defaultOutputModes" yaml:"defaultOutputModes"`
	Methods            []string             `json:"methods" yaml:"methods"`
	Skills             []AgentSkill         `json:"skills" yaml:"skills"`
}

/*
AcceptsOutput reports whether any of the requested output modes is one the
agent can produce. An empty request accepts everything.
*/
func (card *AgentCard) AcceptsOutput(modes []string) bool {
	if len(modes) == 0 || len(card.DefaultOutputModes) == 0 {
		return true
	}

	for _, mode := range modes {
		for _, supported := range card.DefaultOutputModes {
			if mode == supported || mode == "*/*" {
				return true
			}
		}
	}

	return false
}

func NewAgentCardFromConfig(key string) *AgentCard {
	log.Info("new agent card from config", "key", key)

	v := viper.GetViper()
	prefix := "agent." + key
	skillArray := v.GetStringSlice(prefix + ".skills")
	skills := make([]AgentSkill, len(skillArray))

	for i, skill := range skillArray {
		skills[i] = NewSkillFromConfig(skill)
	}

	card := &AgentCard{
		Name:             v.GetString(prefix + ".name"),
		Description:      v.GetString(prefix + ".description"),
		Version:          v.GetString(prefix + ".version"),
		URL:              v.GetString(prefix + ".url"),
		DocumentationURL: v.GetString(prefix + ".documentationUrl"),
		Capabilities: AgentCapabilities{
			Streaming:              v.GetBool(prefix + ".capabilities.streaming"),
			PushNotifications:      v.GetBool(prefix + ".capabilities.pushNotifications"),
			StateTransitionHistory: v.GetBool(prefix + ".capabilities.stateTransitionHistory"),
		},
		DefaultInputModes:  v.GetStringSlice(prefix + ".defaultInputModes"),
		DefaultOutputModes: v.GetStringSlice(prefix + ".defaultOutputModes"),
		Methods:            v.GetStringSlice(prefix + ".methods"),
		Skills:             skills,
	}

	if org := v.GetString(prefix + ".provider.organization"); org != "" {
		card.Provider = &AgentProvider{
			Organization: org,
			URL:          v.GetString(prefix + ".provider.url"),
		}
	}

	if schemes := v.GetStringSlice(prefix + ".authentication.schemes"); len(schemes) > 0 {
		card.Authentication = &AgentAuthentication{Schemes: schemes}
	}

	if len(card.DefaultInputModes) == 0 {
		card.DefaultInputModes = []string{"text"}
	}

	if len(card.DefaultOutputModes) == 0 {
		card.DefaultOutputModes = []string{"text"}
	}

	return card
}

func NewSkillFromConfig(skill string) AgentSkill {
	v := viper.GetViper()

	return AgentSkill{
		ID:          v.GetString(fmt.Sprintf("skills.%s.id", skill)),
		Name:        v.GetString(fmt.Sprintf("skills.%s.name", skill)),
		Description: v.GetString(fmt.Sprintf("skills.%s.description", skill)),
		Tags:        v.GetStringSlice(fmt.Sprintf("skills.%s.tags", skill)),
		Examples:    v.GetStringSlice(fmt.Sprintf("skills.%s.examples", skill)),
		InputModes:  v.GetStringSlice(fmt.Sprintf("skills.%s.input_modes", skill)),
		OutputModes: v.GetStringSlice(fmt.Sprintf("skills.%s.output_modes", skill)),
	}
}

func (card *AgentCard) String() string {
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

	sb.WriteString(headerStyle.Render("Agent Card") + "\n")
	sb.WriteString(bullet + labelStyle.Render("Name: ") + valueStyle.Render(card.Name) + "\n")

	if card.Description != "" {
		sb.WriteString(bullet + labelStyle.Render("Description: ") + valueStyle.Render(card.Description) + "\n")
	}

	sb.WriteString(bullet + labelStyle.Render("URL: ") + valueStyle.Render(card.URL) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Version: ") + valueStyle.Render(card.Version) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Methods: ") + valueStyle.Render(strings.Join(card.Methods, ", ")) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Input: ") + valueStyle.Render(strings.Join(card.DefaultInputModes, ", ")) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Output: ") + valueStyle.Render(strings.Join(card.DefaultOutputModes, ", ")) + "\n")

	sb.WriteString("\n" + sectionStyle.Render("Capabilities") + "\n")
	sb.WriteString(bullet + labelStyle.Render("Streaming: ") + valueStyle.Render(fmt.Sprintf("%v", card.Capabilities.Streaming)) + "\n")
	sb.WriteString(bullet + labelStyle.Render("Push Notifications: ") + valueStyle.Render(fmt.Sprintf("%v", card.Capabilities.PushNotifications)) + "\n")
	sb.WriteString(bullet + labelStyle.Render("State Transition History: ") + valueStyle.Render(fmt.Sprintf("%v", card.Capabilities.StateTransitionHistory)) + "\n")

	if len(card.Skills) > 0 {
		sb.WriteString("\n" + sectionStyle.Render("Skills") + "\n")

		for i, skill := range card.Skills {
			sb.WriteString(bullet + labelStyle.Render(fmt.Sprintf("Skill %d", i+1)) + "\n")
			sb.WriteString(bullet + indent + labelStyle.Render("ID: ") + valueStyle.Render(skill.ID) + "\n")
			sb.WriteString(bullet + indent + labelStyle.Render("Name: ") + valueStyle.Render(skill.Name) + "\n")

			if skill.Description != "" {
				sb.WriteString(bullet + indent + labelStyle.Render("Description: ") + valueStyle.Render(skill.Description) + "\n")
			}

			if len(skill.Tags) > 0 {
				sb.WriteString(bullet + indent + labelStyle.Render("Tags: ") + valueStyle.Render(strings.Join(skill.Tags, ", ")) + "\n")
			}
		}
	}

	return sb.String()
}
