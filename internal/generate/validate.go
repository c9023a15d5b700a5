// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidOutput means the backend answered with something that is not the
// requested JSON shape.
var ErrInvalidOutput = errors.New("generator returned malformed output")

const sectionsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["title", "content"],
    "properties": {
      "title": {"type": "string", "minLength": 1},
      "content": {"type": "string"}
    }
  }
}`

const contentSchema = `{
  "type": "object",
  "required": ["content"],
  "properties": {"content": {"type": "string"}}
}`

const answerSchema = `{
  "type": "object",
  "required": ["answer"],
  "properties": {"answer": {"type": "string"}}
}`

var (
	sectionsValidator = mustCompile("sections", sectionsSchema)
	contentValidator  = mustCompile("content", contentSchema)
	answerValidator   = mustCompile("answer", answerSchema)
)

func mustCompile(name, src string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		panic(fmt.Sprintf("parsing %s schema: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("adding %s schema: %v", name, err))
	}
	sch, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("compiling %s schema: %v", name, err))
	}
	return sch
}

// decodeValidated strips a Markdown code fence if present, checks raw against
// schema, and decodes it into out.
func decodeValidated(schema *jsonschema.Schema, raw string, out any) error {
	raw = stripFence(raw)

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidOutput, err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// stripFence removes a surrounding ```json ... ``` block.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
