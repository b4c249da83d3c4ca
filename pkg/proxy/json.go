package proxy

import (
	"encoding/json"
	"fmt"
)

// InitializedKey is the JSON key carrying the initialization flag of a serialized proxy
const InitializedKey = "__initialized__"

// MarshalFields serializes the initialization flag together with the given simple fields
func MarshalFields(initialized bool, fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(fields)+1)
	for name, value := range fields {
		out[name] = value
	}
	out[InitializedKey] = initialized
	return json.Marshal(out)
}

// MarshalWithInitialized calls a class's own serialization hook and adds the initialization
// flag to the object it produced.
func MarshalWithInitialized(hook func() ([]byte, error), initialized bool) ([]byte, error) {
	raw, err := hook()
	if err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationHook, err)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage, 1)
	}

	flag, err := json.Marshal(initialized)
	if err != nil {
		return nil, err
	}
	obj[InitializedKey] = flag

	return json.Marshal(obj)
}
