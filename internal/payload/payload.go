// Package payload decodes and validates template import batches.
//
// A batch is a JSON (or YAML) document of the form
//
//	{"biz_id": 2, "templates": [{"id": "1", "name": "...", "pipeline_tree": {...}}]}
//
// Only the envelope is checked against the schema; pipeline trees are
// passed through as-is.
package payload

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/tplimport/internal/core"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPayload is wrapped by every decoding or validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

//go:embed batch.schema.json
var batchSchemaJSON string

var batchSchema = jsonschema.MustCompileString("batch.schema.json", batchSchemaJSON)

// Format names a batch encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Batch is a decoded import batch.
type Batch struct {
	BizID     *int64            `json:"biz_id"`
	Templates []core.ImportItem `json:"templates"`
}

// Decode reads a batch in the given format and validates it.
func Decode(r io.Reader, format Format) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if format == FormatYAML {
		if data, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}
	return DecodeJSON(data)
}

// DecodeJSON validates a JSON batch and converts it to a Batch. Numeric ids
// are accepted and rendered as decimal strings.
func DecodeJSON(data []byte) (*Batch, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := batchSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	// The schema guarantees the envelope shape from here on.
	envelope := raw.(map[string]any)
	templates, _ := envelope["templates"].([]any)
	for _, t := range templates {
		item := t.(map[string]any)
		for _, key := range []string{"id", "override_template_id", "refer_template_id"} {
			if n, ok := item[key].(json.Number); ok {
				item[key] = n.String()
			}
		}
	}

	normalized, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	// Tree numbers stay json.Number so large integer ids survive intact.
	var batch Batch
	dec = json.NewDecoder(bytes.NewReader(normalized))
	dec.UseNumber()
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if batch.Templates == nil {
		batch.Templates = []core.ImportItem{}
	}
	return &batch, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out, nil
}
