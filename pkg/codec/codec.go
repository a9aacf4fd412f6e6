// Package codec provides the compression catalog: named codecs with optional
// numeric parameters, plus the pre-compression filter chain supported by the
// cloud-object container family.
package codec

import (
	"sort"
)

// Codec encodes and decodes one chunk's payload.
type Codec interface {
	Name() string
	Encode(plain []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

// Filter is a reversible pre-compression transform applied to raw chunk
// bytes before the primary codec. Only the cloud-object family supports
// filter chains.
type Filter interface {
	Name() string
	Apply(plain []byte) ([]byte, error)
	Reverse(stored []byte) ([]byte, error)
}

// Options carries the numeric parameters of a codec or filter. Nil means
// "use the codec's defaults".
type Options map[string]int

func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

func (o Options) Equal(other Options) bool {
	if len(o) != len(other) {
		return false
	}
	for k, v := range o {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Level returns the "level" option, or def when unset.
func (o Options) Level(def int) int {
	if v, ok := o["level"]; ok {
		return v
	}
	return def
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
