package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the prompt and model parameters of the alert briefing
type PromptConfig struct {
	AlertBriefing struct {
		Temperature  float32 `yaml:"temperature"`
		MaxTokens    int     `yaml:"max_tokens"`
		System       string  `yaml:"system"`
		UserTemplate string  `yaml:"user_template"`
	} `yaml:"alert_briefing"`
}

const defaultPrompts = `
alert_briefing:
  temperature: 0.2
  max_tokens: 400
  system: >-
    You are an internal auditor for a construction procurement team.
    Summarize anomaly alerts for finance leadership in plain language.
    Respond with a JSON object {"briefing": "<at most five sentences>"}.
  user_template: |-
    Alerts raised as of {{.AsOf}}, most severe first:
    {{- range $i, $a := .Alerts}}
    {{inc $i}}. [{{$a.Severity}}/{{$a.Category}}] {{$a.Title}}: {{$a.Description}}
    {{- end}}
`

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() *PromptConfig {
	prompts, err := parsePrompts([]byte(defaultPrompts))
	if err != nil {
		panic(fmt.Sprintf("built-in prompts: %v", err))
	}
	return prompts
}

// LoadPrompts loads prompt configuration from a YAML file. Missing fields keep their defaults.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	return prompts, nil
}

func parsePrompts(data []byte) (*PromptConfig, error) {
	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	return &prompts, nil
}

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Funcs(templateFuncs).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
