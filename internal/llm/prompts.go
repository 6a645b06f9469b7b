package llm

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var promptTemplates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(promptFS, "prompts/*.txt"),
)

// SystemPrompt is shared by every generation call.
func SystemPrompt() string {
	raw, _ := promptFS.ReadFile("prompts/system.txt")
	return strings.TrimSpace(string(raw))
}

// Render executes the prompt template for kind with data.
func Render(kind Kind, data any) (string, error) {
	name := string(kind) + ".txt"
	tmpl := promptTemplates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("unknown prompt %q", kind)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", kind, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Scoring wants repeatable numbers; the summary is prose.
var kindTemperature = map[Kind]float32{
	KindSearchQueries:    0.4,
	KindConflictScore:    0.1,
	KindMitigationPlan:   0.3,
	KindExecutiveSummary: 0.5,
}

// NewRequest renders the prompt for kind into a Request carrying the shared system prompt.
func NewRequest(kind Kind, data any) (Request, error) {
	prompt, err := Render(kind, data)
	if err != nil {
		return Request{}, err
	}
	req := Request{
		Kind:   kind,
		System: SystemPrompt(),
		Prompt: prompt,
		JSON:   kind != KindExecutiveSummary,
	}
	if t, ok := kindTemperature[kind]; ok {
		req.Temperature = Temperature(t)
	}
	return req, nil
}
