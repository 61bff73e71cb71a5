// Package prompt holds the versioned prompt templates used by the pipeline
// stages. Templates are immutable data compiled at init; rendering is a pure
// function of the template id and its bindings.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

type ID string

const (
	ExpandQuestionV1 ID = "expand_question_v1"
	SynthesizeSQLV1  ID = "synthesize_sql_v1"
	AnswerV1         ID = "answer_v1"
)

const expandQuestionV1 = `You are an assistant that rewrites vague or short cricket database questions into detailed, unambiguous natural language.
Expand and clarify the following user question into complete and clear bullet points that can be understood by a SQL generator.
{{.Rules}}

Table info:
{{.TableInfo}}

User question: {{.Question}}`

const synthesizeSQLV1 = `You are an expert in IPL cricket statistics and {{.Dialect}} SQL generation. Your task is to take a natural language question about IPL performance and generate a highly accurate SQL query using only the provided database schema.
You must ensure:
- The query is compatible with the {{.Dialect}} SQL dialect.
- The query never returns more than {{.RowCeiling}} rows unless the question explicitly requests more.
- Only the most relevant columns are selected; never use SELECT *.
- Table and column names come only from the schema below; do not invent columns.
- String filters on player or team names use single quotes.
- Pay special attention to which player belongs to which team in a match.

{{.Rules}}

{{.Examples}}

Only use the following tables and columns:
{{.TableInfo}}

Respond with a JSON object of the form {"query": "<SQL>"} and nothing else.

Question: {{.ExpandedQuestion}}`

const answerV1 = `You are a helpful assistant that explains SQL query results to users in a clear and professional way.
Avoid code blocks and quote blocks.

Given the following:
- User question: {{.Question}}
- SQL query executed: {{.Query}}
- SQL result: {{.Result}}

Generate a well-formatted, professional markdown response that:
1. Answers the user's question based on the result.
2. Is written in a concise, user-friendly tone.
3. Optionally clarifies assumptions (season scope, name normalization) without exposing internal ids or raw SQL.

Ensure the response is easy to read and technically accurate.`

var templates = map[ID]*template.Template{}

func init() {
	for id, text := range map[ID]string{
		ExpandQuestionV1: expandQuestionV1,
		SynthesizeSQLV1:  synthesizeSQLV1,
		AnswerV1:         answerV1,
	} {
		templates[id] = template.Must(
			template.New(string(id)).Option("missingkey=error").Parse(text),
		)
	}
}

// Render fills the named template with bindings. Unknown ids and missing
// bindings are errors, not silent blanks.
func Render(id ID, bindings map[string]any) (string, error) {
	tmpl, ok := templates[id]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", id)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, bindings); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", id, err)
	}
	return b.String(), nil
}
