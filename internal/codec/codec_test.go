package codec

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type note struct {
	Text string `json:"text"`
	Seen bool   `json:"seen"`
}

func (n *note) EntityType() string { return "test_note" }

type pin struct {
	Label string `json:"label"`
}

func (p *pin) EntityType() string { return "test_pin" }

// unlisted is never registered.
type unlisted struct {
	X int `json:"x"`
}

func (u *unlisted) EntityType() string { return "test_unlisted" }

func init() {
	Register("test_note", func() Entity { return &note{} })
	Register("test_pin", func() Entity { return &pin{} })
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"scalar", "hello"},
		{"nil", nil},
		{"number", 42.5},
		{"plain map", map[string]any{"a": "b", "n": 1.0}},
		{"entity", &note{Text: "remember this", Seen: true}},
		{"entity in slice", []any{&note{Text: "first"}, &pin{Label: "second"}, "third"}},
		{"nested", map[string]any{
			"messages": []any{&note{Text: "deep"}},
			"meta":     map[string]any{"pin": &pin{Label: "inner"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			want := normalize(t, tt.in)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip = %#v, want %#v", got, want)
			}
		})
	}
}

// normalize maps the input through JSON number semantics so DeepEqual
// compares like for like (ints become float64 outside entities).
func normalize(t *testing.T, v any) any {
	t.Helper()
	switch tv := v.(type) {
	case nil, string, float64, bool, Entity:
		return tv
	case int:
		return float64(tv)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, mv := range tv {
			out[k] = normalize(t, mv)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, sv := range tv {
			out[i] = normalize(t, sv)
		}
		return out
	}
	t.Fatalf("normalize: unhandled %T", v)
	return nil
}

func TestEncodeTagsEntities(t *testing.T) {
	data, err := Encode(&note{Text: "x"})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if obj["__entity__"] != "test_note" {
		t.Errorf("sentinel = %v, want test_note", obj["__entity__"])
	}
	if obj["text"] != "x" {
		t.Errorf("text = %v, want x", obj["text"])
	}
}

func TestTypedSliceFlattens(t *testing.T) {
	in := []*note{{Text: "a"}, {Text: "b"}}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	list, ok := got.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("got %#v, want 2-element slice", got)
	}
	first, ok := list[0].(*note)
	if !ok || first.Text != "a" {
		t.Errorf("list[0] = %#v, want &note{Text: a}", list[0])
	}
}

func TestEncodeUnregisteredEntity(t *testing.T) {
	_, err := Encode(&unlisted{X: 1})
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *EncodeError", err)
	}
}

func TestEncodeUnsupportedValue(t *testing.T) {
	_, err := Encode(make(chan int))
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *EncodeError", err)
	}
}

func TestEncodeCycle(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_, err := Encode(m)
	var ee *EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *EncodeError for cyclic tree", err)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"__entity__": "no_such_tag", "x": 1}`))
	if !errors.Is(err, ErrUnknownEntityType) {
		t.Fatalf("err = %v, want ErrUnknownEntityType", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
}

func TestUntaggedObjectStaysMap(t *testing.T) {
	got, err := Decode([]byte(`{"text": "plain", "seen": true}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if _, ok := got.(map[string]any); !ok {
		t.Errorf("got %T, want map[string]any", got)
	}
}
