package batchsum

import "strings"

// PromptBuilder renders the instruction template for one record.
type PromptBuilder struct {
	template string
}

// NewPromptBuilder constructs a builder for a template containing the
// {title} and {text} placeholders.
func NewPromptBuilder(template string) PromptBuilder {
	return PromptBuilder{template: template}
}

// Build substitutes title and body into the template in a single pass, so
// placeholder-like text inside the values is left as is. Delimiters in the
// values are not escaped.
func (b PromptBuilder) Build(title, body string) string {
	return strings.NewReplacer("{title}", title, "{text}", body).Replace(b.template)
}
