package reflux

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/gurkankaymak/hocon"
	"gopkg.in/yaml.v3"
)

// Parser turns raw file bytes into a configuration tree. Implement this
// interface to support formats beyond the built-in HOCON, YAML and JSON.
//
// The returned tree must not be retained or modified by the parser after
// Parse returns; the cache normalizes it and hands it to readers.
type Parser interface {
	// Parse decodes raw into a tree of maps, lists and scalars.
	Parse(raw []byte) (map[string]any, error)

	// Format names the parser for errors and signals.
	Format() string
}

// ParserFor picks a parser from the file extension. Unknown extensions
// fall back to HOCON, which also accepts plain JSON.
func ParserFor(path string) Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLParser{}
	case ".json":
		return JSONParser{}
	default:
		return HOCONParser{}
	}
}

// HOCONParser implements Parser using github.com/gurkankaymak/hocon.
type HOCONParser struct{}

// Parse decodes HOCON text. The root must be an object.
func (HOCONParser) Parse(raw []byte) (map[string]any, error) {
	conf, err := hocon.ParseString(string(raw))
	if err != nil {
		return nil, err
	}
	root, ok := fromHOCON(conf.GetRoot()).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("root must be an object")
	}
	return root, nil
}

// Format returns "hocon".
func (HOCONParser) Format() string { return "hocon" }

func fromHOCON(v hocon.Value) any {
	switch val := v.(type) {
	case nil:
		return map[string]any{}
	case hocon.Object:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = fromHOCON(child)
		}
		return out
	case hocon.Array:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = fromHOCON(child)
		}
		return out
	case hocon.String:
		return string(val)
	case hocon.Int:
		return int64(val)
	case hocon.Float32:
		return float64(val)
	case hocon.Float64:
		return float64(val)
	case hocon.Boolean:
		return bool(val)
	case hocon.Duration:
		return time.Duration(val)
	case hocon.Null:
		return nil
	default:
		return v.String()
	}
}

// Ensure HOCONParser implements Parser.
var _ Parser = HOCONParser{}

// YAMLParser implements Parser using gopkg.in/yaml.v3.
type YAMLParser struct{}

// Parse decodes YAML text. An empty document yields an empty tree.
func (YAMLParser) Parse(raw []byte) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return Normalize(out), nil
}

// Format returns "yaml".
func (YAMLParser) Format() string { return "yaml" }

// Ensure YAMLParser implements Parser.
var _ Parser = YAMLParser{}

// JSONParser implements Parser using encoding/json. Integral numbers are kept
// as int64 rather than float64.
type JSONParser struct{}

// Parse decodes a JSON object.
func (JSONParser) Parse(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}
	return Normalize(out), nil
}

// Format returns "json".
func (JSONParser) Format() string { return "json" }

// Ensure JSONParser implements Parser.
var _ Parser = JSONParser{}

// Normalize converts decoder output into the value set snapshots understand:
// map[string]any, []any, string, bool, int64, float64, time.Duration and nil.
// Unsigned integers above math.MaxInt64 stay uint64.
// The cache applies it to every parsed tree.
func Normalize(tree map[string]any) map[string]any {
	if tree == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Normalize(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = normalizeValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeValue(child)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = child
		}
		return out
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint:
		return fromUint64(uint64(val))
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return fromUint64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	default:
		return normalizeReflect(v)
	}
}

// normalizeReflect handles maps and slices of element types the switch in
// normalizeValue does not name, such as map[string]string.
func normalizeReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = normalizeValue(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

func fromUint64(n uint64) any {
	if n > math.MaxInt64 {
		return n
	}
	return int64(n)
}
