package toolserver

import (
	"encoding/json"
	"fmt"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce     sync.Once
	schemaInitErr  error
	retrieveSchema []byte
	retrieveRules  *jsonschema.Schema
)

// initSchemas reflects the retrieve input schema once and compiles it
// for validation. The same document serves both sides: tools/list
// advertises it and the dispatcher enforces it.
func initSchemas() error {
	schemaOnce.Do(func() {
		r := &invopop.Reflector{
			Anonymous:                 true,
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: true,
		}
		reflected := r.Reflect(&RetrieveParams{})
		reflected.Version = ""
		raw, err := json.Marshal(reflected)
		if err != nil {
			schemaInitErr = fmt.Errorf("reflect retrieve schema: %w", err)
			return
		}
		retrieveSchema = raw

		compiled, err := jsonschema.CompileString("retrieve_params", string(raw))
		if err != nil {
			schemaInitErr = fmt.Errorf("compile retrieve schema: %w", err)
			return
		}
		retrieveRules = compiled
	})
	return schemaInitErr
}

// RetrieveInputSchema returns the JSON Schema advertised for the
// retrieve tool.
func RetrieveInputSchema() (json.RawMessage, error) {
	if err := initSchemas(); err != nil {
		return nil, err
	}
	return retrieveSchema, nil
}

// validateRetrieveParams checks raw params against the retrieve schema.
func validateRetrieveParams(raw json.RawMessage) error {
	if err := initSchemas(); err != nil {
		return err
	}
	var payload any
	if len(raw) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return retrieveRules.Validate(payload)
}
