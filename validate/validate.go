// Package validate supplies concrete route.Validator builders backed by the
// two JSON-Schema libraries present in the retrieval pack's docker-compose
// module: santhosh-tekuri/jsonschema/v6 for current-draft schemas, and
// xeipuuv/gojsonschema for routes still defined against older draft-04
// schemas. Either builder, or a hand-written route.Validator, works with the
// route.Catalog; the engine only depends on the route.Validator signature.
package validate

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/xeipuuv/gojsonschema"

	"github.com/qpwo/duplexrpc/route"
)

// Identity is a route.Validator that accepts every value unmodified. It's
// used by round-trip law tests and by routes that intentionally skip
// validation.
func Identity(v json.RawMessage) (json.RawMessage, error) { return v, nil }

// JSONSchema compiles schema (current-draft JSON Schema, e.g. 2020-12) with
// santhosh-tekuri/jsonschema/v6 and returns a route.Validator that rejects
// any value failing it. The returned validator does not coerce; it returns
// the input unchanged on success.
func JSONSchema(schema []byte) (route.Validator, error) {
	var compiler = jsonschema.NewCompiler()
	const resourceName = "duplexrpc://route.json"

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, errors.Wrap(err, "parsing JSON schema")
	}
	if err := compiler.AddResource(resourceName, doc); err != nil {
		return nil, errors.Wrap(err, "adding JSON schema resource")
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, errors.Wrap(err, "compiling JSON schema")
	}

	return func(v json.RawMessage) (json.RawMessage, error) {
		inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(v))
		if err != nil {
			return nil, errors.Wrap(err, "parsing value")
		}
		if err := compiled.Validate(inst); err != nil {
			return nil, errors.Wrap(err, "schema validation")
		}
		return v, nil
	}, nil
}

// Legacy compiles schema (draft-04 JSON Schema) with xeipuuv/gojsonschema
// and returns a route.Validator. Kept for routes whose schemas predate the
// newer JSONSchema builder; the two may be mixed freely within one Catalog.
func Legacy(schema []byte) (route.Validator, error) {
	var schemaLoader = gojsonschema.NewBytesLoader(schema)
	// Compile eagerly so a malformed schema fails at route-registration
	// time, not on the first call.
	compiled, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, errors.Wrap(err, "compiling legacy JSON schema")
	}

	return func(v json.RawMessage) (json.RawMessage, error) {
		result, err := compiled.Validate(gojsonschema.NewBytesLoader(v))
		if err != nil {
			return nil, errors.Wrap(err, "legacy schema validation")
		}
		if !result.Valid() {
			var msgs = make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			return nil, errors.Errorf("legacy schema validation: %v", msgs)
		}
		return v, nil
	}, nil
}
