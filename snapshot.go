package reflux

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Snapshot is an immutable, parsed configuration tree as of one load of the
// backing file. A reload produces a new Snapshot; existing ones are never
// modified, so a Snapshot may be shared freely between goroutines.
//
// Values are addressed by dot-separated paths such as "app.name".
type Snapshot struct {
	root     map[string]any
	source   string
	format   string
	version  uint64
	modTime  time.Time
	loadedAt time.Time
}

func newSnapshot(root map[string]any, source, format string, version uint64, modTime, loadedAt time.Time) *Snapshot {
	if root == nil {
		root = map[string]any{}
	}
	return &Snapshot{
		root:     root,
		source:   source,
		format:   format,
		version:  version,
		modTime:  modTime,
		loadedAt: loadedAt,
	}
}

// Source returns the path of the file the snapshot was parsed from.
func (s *Snapshot) Source() string { return s.source }

// Format returns the name of the parser that produced the snapshot.
func (s *Snapshot) Format() string { return s.format }

// Version returns the load generation: 1 for the initial load, incremented
// on every successful reload of the same cache.
func (s *Snapshot) Version() uint64 { return s.version }

// ModTime returns the file modification time observed after parsing.
func (s *Snapshot) ModTime() time.Time { return s.modTime }

// LoadedAt returns the time the snapshot was published.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Has reports whether a value exists at path.
func (s *Snapshot) Has(path string) bool {
	_, ok := s.lookup(path)
	return ok
}

// Keys returns the dot-separated paths of every leaf value, sorted.
func (s *Snapshot) Keys() []string {
	var keys []string
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok && len(child) > 0 {
				walk(p, child)
				continue
			}
			keys = append(keys, p)
		}
	}
	walk("", s.root)
	sort.Strings(keys)
	return keys
}

// Get returns the raw value at path. Objects come back as map[string]any and
// lists as []any; callers must not modify them.
func (s *Snapshot) Get(path string) (any, error) {
	v, ok := s.lookup(path)
	if !ok {
		return nil, &LookupError{Path: path, Err: ErrMissingKey}
	}
	return v, nil
}

// GetString returns the value at path as a string. Numbers and booleans are
// rendered; objects and lists are a type mismatch.
func (s *Snapshot) GetString(path string) (string, error) {
	v, err := s.scalar(path, "string")
	if err != nil {
		return "", err
	}
	out, err := cast.ToStringE(v)
	if err != nil {
		return "", mismatch(path, "string", err)
	}
	return out, nil
}

// GetBool returns the value at path as a bool.
func (s *Snapshot) GetBool(path string) (bool, error) {
	v, err := s.scalar(path, "bool")
	if err != nil {
		return false, err
	}
	switch v.(type) {
	case bool, string:
	default:
		return false, mismatch(path, "bool", fmt.Errorf("%T is not a bool", v))
	}
	out, err := cast.ToBoolE(v)
	if err != nil {
		return false, mismatch(path, "bool", err)
	}
	return out, nil
}

// GetInt returns the value at path as an int.
func (s *Snapshot) GetInt(path string) (int, error) {
	n, err := s.GetInt64(path)
	if err != nil {
		var kerr *LookupError
		if errors.As(err, &kerr) {
			kerr.Want = "int"
		}
		return 0, err
	}
	if n > math.MaxInt || n < math.MinInt {
		return 0, mismatch(path, "int", fmt.Errorf("%d overflows int", n))
	}
	return int(n), nil
}

// GetInt64 returns the value at path as an int64. Floats with a fractional
// part are a type mismatch.
func (s *Snapshot) GetInt64(path string) (int64, error) {
	v, err := s.scalar(path, "int64")
	if err != nil {
		return 0, err
	}
	if _, ok := v.(bool); ok {
		return 0, mismatch(path, "int64", fmt.Errorf("bool is not a number"))
	}
	switch n := v.(type) {
	case uint64:
		if n > math.MaxInt64 {
			return 0, mismatch(path, "int64", fmt.Errorf("%d overflows int64", n))
		}
	case float64:
		if n != math.Trunc(n) {
			return 0, mismatch(path, "int64", fmt.Errorf("%v is not integral", n))
		}
		if n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, mismatch(path, "int64", fmt.Errorf("%v overflows int64", n))
		}
	}
	out, err := cast.ToInt64E(v)
	if err != nil {
		return 0, mismatch(path, "int64", err)
	}
	return out, nil
}

// GetFloat returns the value at path as a float64.
func (s *Snapshot) GetFloat(path string) (float64, error) {
	v, err := s.scalar(path, "float64")
	if err != nil {
		return 0, err
	}
	if _, ok := v.(bool); ok {
		return 0, mismatch(path, "float64", fmt.Errorf("bool is not a number"))
	}
	out, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, mismatch(path, "float64", err)
	}
	return out, nil
}

// GetDuration returns the value at path as a time.Duration. Strings use
// time.ParseDuration syntax; bare integers are nanoseconds.
func (s *Snapshot) GetDuration(path string) (time.Duration, error) {
	v, err := s.scalar(path, "duration")
	if err != nil {
		return 0, err
	}
	out, err := cast.ToDurationE(v)
	if err != nil {
		return 0, mismatch(path, "duration", err)
	}
	return out, nil
}

// GetStringSlice returns the list at path with each element rendered as a
// string.
func (s *Snapshot) GetStringSlice(path string) ([]string, error) {
	v, ok := s.lookup(path)
	if !ok {
		return nil, &LookupError{Path: path, Want: "[]string", Err: ErrMissingKey}
	}
	list, ok := v.([]any)
	if !ok {
		return nil, mismatch(path, "[]string", fmt.Errorf("%T is not a list", v))
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		str, err := cast.ToStringE(item)
		if err != nil {
			return nil, mismatch(path, "[]string", fmt.Errorf("element %d: %w", i, err))
		}
		out = append(out, str)
	}
	return out, nil
}

// scalar resolves path and rejects objects and lists.
func (s *Snapshot) scalar(path, want string) (any, error) {
	v, ok := s.lookup(path)
	if !ok {
		return nil, &LookupError{Path: path, Want: want, Err: ErrMissingKey}
	}
	switch v.(type) {
	case map[string]any, []any:
		return nil, mismatch(path, want, fmt.Errorf("%T is not a scalar", v))
	case nil:
		return nil, mismatch(path, want, fmt.Errorf("value is null"))
	}
	return v, nil
}

// lookup walks the tree one segment at a time. A key that itself contains
// dots (as YAML and JSON allow) is matched before descending.
func (s *Snapshot) lookup(path string) (any, bool) {
	if path == "" {
		return s.root, true
	}
	return lookupIn(s.root, path)
}

func lookupIn(node map[string]any, path string) (any, bool) {
	if v, ok := node[path]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(path, ".")
	for found {
		if v, ok := node[head]; ok {
			if child, ok := v.(map[string]any); ok {
				if out, ok := lookupIn(child, rest); ok {
					return out, true
				}
			}
		}
		var next string
		next, rest, found = strings.Cut(rest, ".")
		head = head + "." + next
	}
	return nil, false
}

func mismatch(path, want string, err error) *LookupError {
	return &LookupError{Path: path, Want: want, Err: fmt.Errorf("%w: %v", ErrTypeMismatch, err)}
}
