// Package schema holds the JSON Schemas that every response_data payload
// must satisfy, one per message type.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"triage/internal/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[models.MessageType]*jsonschema.Schema
	compileErr  error
)

func load() (map[models.MessageType]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		out := make(map[models.MessageType]*jsonschema.Schema, len(models.MessageTypes))
		for _, t := range models.MessageTypes {
			name := "schemas/" + string(t) + ".json"
			data, err := schemaFS.ReadFile(name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			s, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[t] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Raw returns the schema document for t, e.g. for embedding in prompts.
func Raw(t models.MessageType) ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown message type %q", t)
	}
	return schemaFS.ReadFile("schemas/" + string(t) + ".json")
}

// Validate checks a decoded JSON value (as produced by json.Unmarshal into
// an any) against the schema for t. It returns the list of violations,
// empty when data conforms. The error is non-nil only when t has no schema.
func Validate(t models.MessageType, data any) ([]string, error) {
	schemas, err := load()
	if err != nil {
		return nil, err
	}
	s, ok := schemas[t]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q", t)
	}

	err = s.Validate(data)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}, nil
	}
	return violations(ve), nil
}

// ValidateJSON is Validate for raw JSON bytes.
func ValidateJSON(t models.MessageType, raw []byte) ([]string, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return []string{fmt.Sprintf("response_data is not valid JSON: %v", err)}, nil
	}
	return Validate(t, data)
}

// ValidateData checks a typed payload, as it will be sent to the caller.
func ValidateData(d models.ResponseData) ([]string, error) {
	if d == nil {
		return []string{"response_data is missing"}, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode response_data: %w", err)
	}
	return ValidateJSON(d.MessageType(), raw)
}

// violations flattens the error tree to its leaves.
func violations(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}
