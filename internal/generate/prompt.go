// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"sort"
	"text/template"

	"github.com/pdiddy/dossier-engine/pkg/types"
)

const systemPrompt = `You help candidates write certification application dossiers. Write in the first person, in a clear professional register, using only facts present in the candidate's answers and documents. Never invent qualifications, dates, or employers.`

var dossierPromptTmpl = template.Must(template.New("dossier").Parse(`Assemble a certification dossier from the candidate's questionnaire answers below.

Split the dossier into sections, each with a short title and prose content. Cover every topic the answers touch on.

Respond with a JSON array. Each element must be an object with a "title" string and a "content" string. Do not include any text outside the JSON array.

Example response:
[{"title": "Professional background", "content": "I have worked as ..."}]
{{template "context" .}}`))

var sectionPromptTmpl = template.Must(template.New("section").Parse(`Rewrite one section of a certification dossier.

Section title: {{.Title}}

Write fresh content for this section only, based on the answers below.

Respond with a JSON object with a single "content" string. Do not include any text outside the JSON object.
{{template "context" .}}`))

var suggestPromptTmpl = template.Must(template.New("suggest").Parse(`Draft an answer the candidate could give to this questionnaire question.

Question: {{.Question}}

Base the draft on the answers already given below. Keep it under 150 words.

Respond with a JSON object with a single "answer" string. Do not include any text outside the JSON object.
{{template "context" .}}`))

const contextTmpl = `{{define "context"}}
Answers:
{{- range .Answers}}
- {{.Label}}: {{.Value}}
{{- else}}
(none)
{{- end}}
{{- if .Documents}}

Supporting documents:
{{- range .Documents}}
- {{.Name}}{{if .Summary}}: {{.Summary}}{{end}}
{{- end}}
{{- end}}
{{end}}`

func init() {
	for _, t := range []*template.Template{dossierPromptTmpl, sectionPromptTmpl, suggestPromptTmpl} {
		template.Must(t.Parse(contextTmpl))
	}
}

type answerLine struct {
	Label string
	Value string
}

type promptData struct {
	Title     string
	Question  string
	Answers   []answerLine
	Documents []types.DocumentRef
}

// answerLines lists answers in questionnaire order, labeled by question text.
// Answers to unknown ids follow, sorted by id. Blank answers are skipped.
func (g *LLMGenerator) answerLines(answers types.AnswerMap) []answerLine {
	var lines []answerLine
	seen := make(map[string]bool, len(answers))
	for _, id := range g.order {
		if !answers.Answered(id) {
			continue
		}
		seen[id] = true
		lines = append(lines, answerLine{Label: g.labels[id], Value: answers[id]})
	}

	var rest []string
	for id := range answers {
		if !seen[id] && answers.Answered(id) {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		lines = append(lines, answerLine{Label: id, Value: answers[id]})
	}
	return lines
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
