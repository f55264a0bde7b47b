package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// argSchema reflects a JSON schema from an argument struct's tags. Required
// fields come from jsonschema:"required"; the schema is inlined with no $ref
// indirection so it can be handed to a model verbatim.
func argSchema[T any]() map[string]interface{} {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tool argument schema for %T does not marshal: %v", new(T), err))
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("tool argument schema for %T does not round-trip: %v", new(T), err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
