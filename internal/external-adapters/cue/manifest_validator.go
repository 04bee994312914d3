// Package cue validates package manifests against a CUE schema.
package cue

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/ochairo/distcheck/internal/domain/entities"
)

//go:embed manifest.cue
var manifestSchema string

// SchemaError reports every field of a manifest that violates the schema
type SchemaError struct {
	Problems []string // "<field>: <reason>", sorted by position
}

func (e *SchemaError) Error() string {
	return "manifest does not match schema: " + strings.Join(e.Problems, "; ")
}

// ManifestValidator decodes manifest.json and checks it against the embedded schema.
// A cue.Context is not safe for concurrent use, so validations are serialized.
type ManifestValidator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewManifestValidator compiles the embedded manifest schema
func NewManifestValidator() (*ManifestValidator, error) {
	ctx := cuecontext.New()
	compiled := ctx.CompileString(manifestSchema, cue.Filename("manifest.cue"))
	if err := compiled.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}

	schema := compiled.LookupPath(cue.ParsePath("#Manifest"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("manifest schema has no #Manifest definition: %w", err)
	}

	return &ManifestValidator{ctx: ctx, schema: schema}, nil
}

// Validate parses data as JSON, unifies it with the schema and decodes the result
func (v *ManifestValidator) Validate(data []byte) (*entities.Manifest, error) {
	expr, err := cuejson.Extract("manifest.json", data)
	if err != nil {
		if field := malformedField(data); field != "" {
			return nil, fmt.Errorf("invalid JSON at field %q: %w", field, err)
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	v.mu.Lock()
	value := v.ctx.BuildExpr(expr)
	unified := v.schema.Unify(value)
	err = unified.Validate(cue.Concrete(true))
	v.mu.Unlock()

	if err != nil {
		return nil, schemaError(err)
	}

	var manifest entities.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

func schemaError(err error) *SchemaError {
	seen := make(map[string]bool)
	result := &SchemaError{}
	for _, e := range cueerrors.Errors(err) {
		field := strings.Join(fieldPath(e.Path()), ".")
		if field == "" {
			field = "(root)"
		}
		format, args := e.Msg()
		problem := field + ": " + fmt.Sprintf(format, args...)
		if !seen[problem] {
			seen[problem] = true
			result.Problems = append(result.Problems, problem)
		}
	}
	if len(result.Problems) == 0 {
		result.Problems = []string{err.Error()}
	}
	return result
}

// fieldPath drops the schema definition name from an error path
func fieldPath(path []string) []string {
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		return path[1:]
	}
	return path
}

type jsonFrame struct {
	object      bool
	awaitingKey bool
	key         string
	index       int
}

func (f *jsonFrame) valueDone() {
	if f.object {
		f.awaitingKey = true
	} else {
		f.index++
	}
}

// malformedField replays the token stream to find the field being read when the
// syntax error occurred
func malformedField(data []byte) string {
	dec := json.NewDecoder(bytes.NewReader(data))
	var stack []*jsonFrame
	top := func() *jsonFrame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && len(stack) == 0 {
				return ""
			}
			return framePath(stack)
		}

		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				stack = append(stack, &jsonFrame{object: delim == '{', awaitingKey: delim == '{'})
			case '}', ']':
				stack = stack[:len(stack)-1]
				if f := top(); f != nil {
					f.valueDone()
				}
			}
			continue
		}

		f := top()
		if f == nil {
			continue
		}
		if f.object && f.awaitingKey {
			key, _ := tok.(string)
			f.key = key
			f.awaitingKey = false
			continue
		}
		f.valueDone()
	}
}

func framePath(stack []*jsonFrame) string {
	var parts []string
	for _, f := range stack {
		switch {
		case f.object && f.key != "":
			parts = append(parts, f.key)
		case !f.object:
			parts = append(parts, strconv.Itoa(f.index))
		}
	}
	return strings.Join(parts, ".")
}
