package tools

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/rhuss/mcpchat/pkg/api"
)

// Validator checks tool call arguments against the input schema each tool
// advertised. Schemas are compiled lazily and cached per tool name.
type Validator struct {
	mu       sync.Mutex
	raw      map[string][]byte
	compiled map[string]*gojsonschema.Schema
}

// NewValidator creates a Validator for the given catalog. Tools without an
// input schema accept any arguments.
func NewValidator(descs []api.ToolDescriptor) *Validator {
	v := &Validator{
		raw:      make(map[string][]byte, len(descs)),
		compiled: make(map[string]*gojsonschema.Schema, len(descs)),
	}
	for _, d := range descs {
		if len(d.InputSchema) > 0 {
			v.raw[d.Name] = d.InputSchema
		}
	}
	return v
}

// Validate decodes the call's arguments and checks them against the tool's
// schema. The returned error describes every violation.
func (v *Validator) Validate(call api.ToolCall) error {
	args, err := call.ParseArguments()
	if err != nil {
		return err
	}

	schema, err := v.schema(call.Name)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validating arguments for %q: %w", call.Name, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		msgs = append(msgs, re.String())
	}
	return fmt.Errorf("invalid arguments for %q: %s", call.Name, strings.Join(msgs, "; "))
}

func (v *Validator) schema(name string) (*gojsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[name]; ok {
		return s, nil
	}
	raw, ok := v.raw[name]
	if !ok {
		return nil, nil
	}

	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		// A schema the server sent but we cannot compile is not the
		// caller's fault; skip validation for this tool.
		delete(v.raw, name)
		return nil, nil
	}
	v.compiled[name] = s
	return s, nil
}
