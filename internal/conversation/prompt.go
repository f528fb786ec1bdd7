package conversation

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/mike-a-ellis/docchat/internal/storage"
)

// DefaultSystemPrompt is sent as the system message of every request.
const DefaultSystemPrompt = "You are a helpful assistant that answers questions about the documents " +
	"ingested from the configured folder. If the context does not contain the answer, say so."

// DefaultPromptTemplate fills the context, chat history and question slots.
const DefaultPromptTemplate = `Given the following context, respond to the best of your ability:
Context: {{.Context}}
Chat History: {{.ChatHistory}}
Follow Up Input: {{.Question}}`

// DefaultCondenseTemplate turns a follow-up question into a standalone
// question for retrieval. Context is empty when it is rendered.
const DefaultCondenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.ChatHistory}}
Follow Up Input: {{.Question}}
Standalone question:`

// PromptData is the data passed to the prompt template.
type PromptData struct {
	Context     string
	ChatHistory string
	Question    string
}

var (
	defaultTemplate         = template.Must(ParsePrompt(DefaultPromptTemplate))
	defaultCondenseTemplate = template.Must(ParsePrompt(DefaultCondenseTemplate))
)

// ParsePrompt parses a prompt template and checks it renders with every slot.
func ParsePrompt(text string) (*template.Template, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	if _, err := render(tmpl, PromptData{}); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data PromptData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return sb.String(), nil
}

// FormatContext joins retrieved chunk texts, best match first.
func FormatContext(chunks []*storage.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	return strings.Join(parts, "\n\n")
}
