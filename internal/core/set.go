package core

import (
	"sort"
	"strings"
)

// Set maps a parameter key to its value. At most one value per key.
type Set map[Key]Param

// NewSet builds a Set from params; later params overwrite earlier ones with
// the same key.
func NewSet(params ...Param) Set {
	s := make(Set, len(params))
	for _, p := range params {
		s.Put(p)
	}
	return s
}

// Put stores p under its key.
func (s Set) Put(p Param) {
	s[p.Key()] = p
}

// Merge copies every parameter of other into s, overwriting existing keys.
func (s Set) Merge(other Set) {
	for k, p := range other {
		s[k] = p
	}
}

// Clone returns a shallow copy of s. Param values are immutable so a shallow
// copy is independent of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, p := range s {
		out[k] = p
	}
	return out
}

// With returns a copy of s that also holds params.
func (s Set) With(params ...Param) Set {
	out := s.Clone()
	for _, p := range params {
		out.Put(p)
	}
	return out
}

// Without returns a copy of s minus keys.
func (s Set) Without(keys ...Key) Set {
	out := s.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Has reports whether s holds a value for k.
func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Equal reports whether s and other hold the same values.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for k, p := range s {
		if q, ok := other[k]; !ok || q != p {
			return false
		}
	}
	return true
}

// Persistent reports whether s changes anything on the light, i.e. holds a
// key other than the transition time.
func (s Set) Persistent() bool {
	for k := range s {
		if k != KeyTransition {
			return true
		}
	}
	return false
}

// Keys returns the keys of s in sorted order.
func (s Set) Keys() []Key {
	keys := make([]Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Wire returns the request body the bridge expects. Derived parameters must
// have been expanded before.
func (s Set) Wire() (map[string]any, error) {
	body := make(map[string]any, len(s))
	for k, p := range s {
		v, err := wireValue(p)
		if err != nil {
			return nil, err
		}
		body[string(k)] = v
	}
	return body, nil
}

func (s Set) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		parts = append(parts, string(k)+"="+formatValue(s[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
