// Package schema validates decoded upstream JSON against the shape each
// endpoint is contracted to return. The documents published under
// /schemas/{name} are reflected from the response models and the same
// documents are compiled into the validators, so the two cannot disagree.
// Validators never panic and never hand back a partially filled record: a
// Result carries either a value or the first offending path.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ValidationError names the first field that did not match the expected shape.
type ValidationError struct {
	Schema string
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema validation failed (%s): %s: %s", e.Schema, e.Path, e.Reason)
}

// Result is the tagged outcome of a validation.
type Result[T any] struct {
	Value T
	Err   *ValidationError
}

// OK reports whether validation succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Get returns the value, or the zero value and the validation error.
func (r Result[T]) Get() (T, error) {
	if r.Err != nil {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}

// Schema validates one response type.
type Schema[T any] struct {
	Name  string
	model any
	build func(raw []byte) (T, error)
}

// Validate checks v (a value produced by unmarshalling JSON into interface{})
// and builds the typed record.
func (s Schema[T]) Validate(v any) Result[T] {
	compiled, ok := validators[s.Name]
	if !ok {
		return Result[T]{Err: &ValidationError{Schema: s.Name, Path: "$", Reason: "schema not registered"}}
	}
	if err := compiled.Validate(v); err != nil {
		return Result[T]{Err: toValidationError(s.Name, err)}
	}
	raw, err := gojson.Marshal(v)
	if err != nil {
		return Result[T]{Err: &ValidationError{Schema: s.Name, Path: "$", Reason: "re-encode: " + err.Error()}}
	}
	out, err := s.build(raw)
	if err != nil {
		return Result[T]{Err: &ValidationError{Schema: s.Name, Path: "$", Reason: err.Error()}}
	}
	return Result[T]{Value: out}
}

// JSONSchema describes the accepted shape as a JSON Schema document.
func (s Schema[T]) JSONSchema() *jsonschema.Schema {
	return reflectDocument(s.Name, s.model)
}

func reflectDocument(name string, model any) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		AllowAdditionalProperties:  true,
		RequiredFromJSONSchemaTags: true,
	}
	doc := r.Reflect(model)
	doc.Title = name
	return doc
}

func decodeAs[T any](raw []byte) (T, error) {
	var out T
	if err := gojson.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

type documenter interface {
	JSONSchema() *jsonschema.Schema
}

var documents = map[string]documenter{
	Weather.Name:      Weather,
	Geocode.Name:      Geocode,
	AirPollution.Name: AirPollution,
	Style.Name:        Style,
}

var validators = mustCompile(documents)

// mustCompile turns every published document into a validator. A document
// that does not compile is a programming error in the model tags.
func mustCompile(docs map[string]documenter) map[string]*validator.Schema {
	c := validator.NewCompiler()
	out := make(map[string]*validator.Schema, len(docs))
	for name, d := range docs {
		body, err := gojson.Marshal(d.JSONSchema())
		if err != nil {
			panic(fmt.Sprintf("schema %s: encode document: %v", name, err))
		}
		doc, err := validator.UnmarshalJSON(bytes.NewReader(body))
		if err != nil {
			panic(fmt.Sprintf("schema %s: decode document: %v", name, err))
		}
		url := name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("schema %s: add resource: %v", name, err))
		}
		compiled, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("schema %s: compile: %v", name, err))
		}
		out[name] = compiled
	}
	return out
}

// Document returns the JSON Schema for the named schema.
func Document(name string) (*jsonschema.Schema, bool) {
	d, ok := documents[name]
	if !ok {
		return nil, false
	}
	return d.JSONSchema(), true
}

// Names lists the registered schema names in sorted order.
func Names() []string {
	out := make([]string, 0, len(documents))
	for n := range documents {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var printer = message.NewPrinter(language.English)

// toValidationError reduces the validator's error tree to one leaf: the
// shallowest offending location, ties broken by path order.
func toValidationError(name string, err error) *ValidationError {
	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return &ValidationError{Schema: name, Path: "$", Reason: err.Error()}
	}
	var leaves []*ValidationError
	collectLeaves(name, verr, &leaves)
	if len(leaves) == 0 {
		return &ValidationError{Schema: name, Path: "$", Reason: verr.Error()}
	}
	sort.SliceStable(leaves, func(i, j int) bool {
		di, dj := depth(leaves[i].Path), depth(leaves[j].Path)
		if di != dj {
			return di < dj
		}
		return leaves[i].Path < leaves[j].Path
	})
	return leaves[0]
}

func collectLeaves(name string, e *validator.ValidationError, out *[]*ValidationError) {
	if len(e.Causes) > 0 {
		for _, c := range e.Causes {
			collectLeaves(name, c, out)
		}
		return
	}
	loc := e.InstanceLocation
	reason := e.ErrorKind.LocalizedString(printer)
	if req, ok := e.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
		missing := append([]string(nil), req.Missing...)
		sort.Strings(missing)
		loc = append(append([]string(nil), loc...), missing[0])
		reason = "required"
	}
	*out = append(*out, &ValidationError{Schema: name, Path: jsonPath(loc), Reason: reason})
}

// jsonPath renders an instance location as $.a.b[0].c.
func jsonPath(tokens []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, tok := range tokens {
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		b.WriteString("." + tok)
	}
	return b.String()
}

func depth(path string) int {
	return strings.Count(path, ".") + strings.Count(path, "[")
}
