package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema constrains the fields where a model hallucination is both
// likely and cheap to detect. Everything else stays free-form text.
const recordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "Title": {"type": "string"},
    "PMID": {"type": "string"},
    "Subject of Study": {
      "type": "string",
      "enum": ["Human", "Animal", "In-Vitro", "Other", "NA", ""]
    },
    "Number of Subjects Studied": {
      "anyOf": [
        {"type": "integer", "minimum": 0},
        {"type": "string", "maxLength": 0}
      ]
    },
    "Results Available": {
      "type": "string",
      "enum": ["Yes", "No", "Partial", "NA", ""]
    },
    "Primary Endpoint Met": {
      "type": "string",
      "enum": ["Yes", "No", "Partial", "NA", ""]
    }
  }
}`

var recordValidator = mustCompileRecordSchema()

func mustCompileRecordSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("record.schema.json", bytes.NewReader([]byte(recordSchema))); err != nil {
		panic(err)
	}
	return c.MustCompile("record.schema.json")
}

// ValidateRecord checks a record against the structural schema. A
// validation error marks the row as suspect; it never rejects the row.
func ValidateRecord(rec Record) error {
	data, err := json.Marshal(rec.ToMap())
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return recordValidator.Validate(doc)
}
