package parse

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Record-level schemas. They pin down only what a record must have to
// be usable at all; everything else (unknown enum labels, out-of-range
// scores, stringly-typed numbers) is coerced afterwards rather than
// rejected here.
const questionSchema = `{
	"type": "object",
	"required": ["text", "category"],
	"properties": {
		"text": {"type": "string", "minLength": 1},
		"category": {"type": "string"}
	}
}`

const findingSchema = `{
	"type": "object",
	"required": ["term", "direction"],
	"properties": {
		"term": {"type": "string", "minLength": 1},
		"direction": {"type": "string"}
	}
}`

const sentimentSchema = `{
	"type": "object",
	"required": ["name", "score"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"score": {"type": ["number", "string"]}
	}
}`

func mustCompile(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	compiled, err := c.Compile(name)
	if err != nil {
		panic(err)
	}
	return compiled
}

var (
	questionRecord  = mustCompile("question.schema.json", questionSchema)
	findingRecord   = mustCompile("finding.schema.json", findingSchema)
	sentimentRecord = mustCompile("sentiment.schema.json", sentimentSchema)
)
