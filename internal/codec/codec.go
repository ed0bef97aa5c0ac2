// Package codec serializes conversation state trees to JSON and back,
// preserving tagged entities (values whose concrete type must be recorded
// alongside their data so they can be reconstructed on decode).
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// entityKey marks an encoded object as a tagged entity. The value is the
// entity's registered type tag.
const entityKey = "__entity__"

// maxDepth bounds tree traversal. State trees are shallow; hitting this
// means a caller accidentally introduced a cycle.
const maxDepth = 200

// ErrUnknownEntityType is returned (wrapped in *DecodeError) when decoding
// encounters a tagged entity whose tag has no registered constructor.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Entity is a value that carries a type tag and survives a round trip
// through Encode/Decode as its concrete type.
type Entity interface {
	EntityType() string
}

// EncodeError reports a value that cannot be represented.
type EncodeError struct {
	Msg string
	Err error
}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: encode: %s: %v", e.Msg, e.Err)
	}
	return "codec: encode: " + e.Msg
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports input that cannot be reconstructed.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("codec: decode: %s: %v", e.Msg, e.Err)
	}
	return "codec: decode: " + e.Msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Entity{}
)

// Register associates a type tag with a constructor for a fresh, empty
// entity. Typically called from an init in the package that owns the type.
func Register(tag string, newFn func() Entity) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[tag] = newFn
}

func lookup(tag string) (func() Entity, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[tag]
	return fn, ok
}

// Encode serializes a state tree of plain data (maps, slices, strings,
// numbers, booleans, nil) and registered entities to JSON text.
func Encode(v any) ([]byte, error) {
	plain, err := flatten(v, 0)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return nil, &EncodeError{Msg: "marshal", Err: err}
	}
	return data, nil
}

// flatten rewrites a tree into plain JSON-ready data, expanding entities
// into sentinel-tagged objects.
func flatten(v any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, &EncodeError{Msg: "max depth exceeded (cycle in state tree?)"}
	}
	if v == nil {
		return nil, nil
	}

	if ent, ok := v.(Entity); ok {
		tag := ent.EntityType()
		if _, registered := lookup(tag); !registered {
			return nil, &EncodeError{Msg: fmt.Sprintf("unregistered entity type %q", tag)}
		}
		fields, err := entityFields(ent)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(fields)+1)
		for k, fv := range fields {
			fl, err := flatten(fv, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = fl
		}
		out[entityKey] = tag
		return out, nil
	}

	switch t := v.(type) {
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, mv := range t {
			fl, err := flatten(mv, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = fl
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, sv := range t {
			fl, err := flatten(sv, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = fl
		}
		return out, nil
	case json.RawMessage:
		var raw any
		if err := json.Unmarshal(t, &raw); err != nil {
			return nil, &EncodeError{Msg: "raw message", Err: err}
		}
		return raw, nil
	}

	// Typed slices (e.g. []Message) reach here; walk them reflectively so
	// entities inside still get tagged.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			fl, err := flatten(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = fl
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &EncodeError{Msg: fmt.Sprintf("unsupported map key type %s", rv.Type().Key())}
		}
		out := make(map[string]any, rv.Len())
		for _, k := range rv.MapKeys() {
			fl, err := flatten(rv.MapIndex(k).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[k.String()] = fl
		}
		return out, nil
	}

	return nil, &EncodeError{Msg: fmt.Sprintf("unsupported value of type %T", v)}
}

// entityFields converts an entity to its field map via its JSON form. The
// sentinel key is reserved; entities must not produce it themselves.
func entityFields(ent Entity) (map[string]any, error) {
	data, err := json.Marshal(ent)
	if err != nil {
		return nil, &EncodeError{Msg: fmt.Sprintf("entity %q", ent.EntityType()), Err: err}
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &EncodeError{Msg: fmt.Sprintf("entity %q is not an object", ent.EntityType()), Err: err}
	}
	if _, clash := fields[entityKey]; clash {
		return nil, &EncodeError{Msg: fmt.Sprintf("entity %q uses reserved field %q", ent.EntityType(), entityKey)}
	}
	return fields, nil
}

// Decode parses JSON text produced by Encode, reconstructing registered
// entities from their sentinel-tagged objects.
func Decode(data []byte) (any, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Msg: "unmarshal", Err: err}
	}
	return revive(raw)
}

// revive walks a decoded tree bottom-up, replacing sentinel-tagged objects
// with concrete entities.
func revive(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, mv := range t {
			rv, err := revive(mv)
			if err != nil {
				return nil, err
			}
			t[k] = rv
		}
		tag, tagged := t[entityKey].(string)
		if !tagged {
			return t, nil
		}
		newFn, ok := lookup(tag)
		if !ok {
			return nil, &DecodeError{Msg: fmt.Sprintf("entity tag %q", tag), Err: ErrUnknownEntityType}
		}
		delete(t, entityKey)
		ent := newFn()
		data, err := json.Marshal(t)
		if err != nil {
			return nil, &DecodeError{Msg: fmt.Sprintf("re-marshal entity %q", tag), Err: err}
		}
		if err := json.Unmarshal(data, ent); err != nil {
			return nil, &DecodeError{Msg: fmt.Sprintf("reconstruct entity %q", tag), Err: err}
		}
		return ent, nil
	case []any:
		for i, sv := range t {
			rv, err := revive(sv)
			if err != nil {
				return nil, err
			}
			t[i] = rv
		}
		return t, nil
	}
	return v, nil
}

// RegisteredTags returns the sorted tags currently in the registry. Useful
// for diagnostics and tests.
func RegisteredTags() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
