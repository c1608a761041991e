package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ParseJSON decodes bytes as JSON into a Value tree. Objects become Dict
// with their keys in sorted order (encoding/json's map[string]any keeps no
// source order; ParseJSONBytes does), arrays become Array,
// and numbers that fit in an int64 without loss become Integer; everything
// else numeric becomes Float.
func ParseJSON(b []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null(), fmt.Errorf("parse_json: %w", err)
	}
	return fromAny(raw), nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Flt(f)
	case string:
		return Str(t)
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = fromAny(e)
		}
		return Arr(vs)
	case map[string]any:
		// encoding/json does not preserve key order for map[string]any, so
		// the order-preserving path decodes objects through decodeValue
		// instead; this branch covers ParseJSON and FromAny, and sorts keys
		// for determinism.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := NewDict()
		for _, k := range keys {
			d = d.Set(k, fromAny(t[k]))
		}
		return DictVal(d)
	case *orderedObject:
		d := NewDict()
		for _, kv := range t.pairs {
			d = d.Set(kv.key, fromAny(kv.val))
		}
		return DictVal(d)
	default:
		return Null()
	}
}

// orderedObject and its UnmarshalJSON below let ParseJSON recover object key
// order, which the stdlib's map[string]any decoding would otherwise discard.
type orderedKV struct {
	key string
	val any
}

type orderedObject struct {
	pairs []orderedKV
}

func (o *orderedObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var v any
		if err := decodeValue(dec, &v); err != nil {
			return err
		}
		o.pairs = append(o.pairs, orderedKV{key: key, val: v})
	}
	_, err = dec.Token() // closing '}'
	return err
}

func decodeValue(dec *json.Decoder, out *any) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &orderedObject{}
			pairs := []orderedKV{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := keyTok.(string)
				var v any
				if err := decodeValue(dec, &v); err != nil {
					return err
				}
				pairs = append(pairs, orderedKV{key: key, val: v})
			}
			obj.pairs = pairs
			if _, err := dec.Token(); err != nil { // closing '}'
				return err
			}
			*out = obj
			return nil
		case '[':
			var arr []any
			for dec.More() {
				var v any
				if err := decodeValue(dec, &v); err != nil {
					return err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return err
			}
			*out = arr
			return nil
		}
	default:
		*out = tok
	}
	return nil
}

// init installs parseJSONImpl, the decoder behind ParseJSONBytes; it routes
// objects through orderedObject so that Dict key order matches the source.
func init() {
	parseJSONImpl = func(b []byte) (Value, error) {
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		var v any
		if err := decodeValue(dec, &v); err != nil {
			return Null(), fmt.Errorf("parse_json: %w", err)
		}
		return fromAny(v), nil
	}
}

var parseJSONImpl func([]byte) (Value, error)

// ParseJSONBytes is the public, order-preserving JSON parser, used by the
// parse_json built-in. ParseJSON above decodes through encoding/json's map
// form and does not keep source key order.
func ParseJSONBytes(b []byte) (Value, error) {
	return parseJSONImpl(b)
}

// ToJSON serializes a Value back to JSON bytes, preserving Dict key order.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindBoolean:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case KindInteger:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case KindFloat:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("cannot encode non-finite float to JSON")
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case KindString:
		b, err := json.Marshal(v.Str())
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindBytes:
		b, err := json.Marshal(string(v.Bytes()))
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindDict:
		buf.WriteByte('{')
		for i, k := range v.Dict().Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeJSON(buf, v.Dict().Get(k)); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// ToAny converts a Value into plain Go data (map[string]any, []any, etc.) for
// handoff to external libraries such as the JMESPath engine that expect
// standard JSON-decoded shapes rather than our own Value type.
func ToAny(v Value) any {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindBoolean:
		return v.Bool()
	case KindInteger:
		return v.Int()
	case KindFloat:
		return v.Float()
	case KindString:
		return v.Str()
	case KindBytes:
		return string(v.Bytes())
	case KindArray:
		out := make([]any, len(v.Array()))
		for i, e := range v.Array() {
			out[i] = ToAny(e)
		}
		return out
	case KindDict:
		out := make(map[string]any, v.Dict().Len())
		for _, k := range v.Dict().Keys() {
			out[k] = ToAny(v.Dict().Get(k))
		}
		return out
	}
	return nil
}

// FromAny converts plain Go data (the output of a JMESPath evaluation, or of
// encoding/json's default map[string]any decode) back into a Value. Key
// order for plain map[string]any is not guaranteed by Go and is sorted for
// determinism; this path is only used for data that didn't originate from
// FiddlerScript's own ordered parse.
func FromAny(raw any) Value {
	return fromAny(raw)
}
