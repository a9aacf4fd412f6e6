package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Shape holds per-axis extents of an array, outermost axis first.
type Shape []int64

func (s Shape) Rank() int { return len(s) }

// Elements returns the total element count. A zero-length axis yields 0.
func (s Shape) Elements() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Dtype identifies a fixed-width element type. Fixed-length strings use
// the form "S<n>" where n is the byte width.
type Dtype string

const (
	Int8    Dtype = "int8"
	Int16   Dtype = "int16"
	Int32   Dtype = "int32"
	Int64   Dtype = "int64"
	Uint8   Dtype = "uint8"
	Uint16  Dtype = "uint16"
	Uint32  Dtype = "uint32"
	Uint64  Dtype = "uint64"
	Float32 Dtype = "float32"
	Float64 Dtype = "float64"
)

// Size returns the element width in bytes, or 0 for an unknown dtype.
func (d Dtype) Size() int64 {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	if strings.HasPrefix(string(d), "S") {
		n, err := strconv.Atoi(string(d)[1:])
		if err == nil && n > 0 {
			return int64(n)
		}
	}
	return 0
}

func (d Dtype) Valid() bool { return d.Size() > 0 }

// Descriptor identifies one array destined for container storage: its full
// shape, element type, and the logical location path unique within the
// container tree.
type Descriptor struct {
	Location string
	Shape    Shape
	Dtype    Dtype
}

// ByteSize returns the total raw byte size of the described array.
func (d Descriptor) ByteSize() int64 {
	return d.Shape.Elements() * d.Dtype.Size()
}

func (d Descriptor) Validate() error {
	if err := ValidateLocation(d.Location); err != nil {
		return err
	}
	if d.Shape.Rank() < 1 {
		return fmt.Errorf("%w: %s: rank must be >= 1", ErrInvalidInput, d.Location)
	}
	for i, dim := range d.Shape {
		if dim < 0 {
			return fmt.Errorf("%w: %s: negative extent %d on axis %d", ErrInvalidInput, d.Location, dim, i)
		}
	}
	if !d.Dtype.Valid() {
		return fmt.Errorf("%w: %s: unknown dtype %q", ErrInvalidInput, d.Location, d.Dtype)
	}
	return nil
}

// ValidateLocation checks a slash-delimited location path: non-empty, no
// leading or trailing slash, no empty segments.
func ValidateLocation(loc string) error {
	if loc == "" {
		return fmt.Errorf("%w: empty location", ErrInvalidInput)
	}
	if strings.HasPrefix(loc, "/") || strings.HasSuffix(loc, "/") {
		return fmt.Errorf("%w: location %q must not start or end with '/'", ErrInvalidInput, loc)
	}
	for _, seg := range strings.Split(loc, "/") {
		if seg == "" {
			return fmt.Errorf("%w: location %q has an empty segment", ErrInvalidInput, loc)
		}
	}
	return nil
}

// Backend selects one of the two container families.
type Backend string

const (
	// BackendPack is the classic chunked-binary single-file family.
	BackendPack Backend = "pack"
	// BackendObject is the cloud-object chunked multi-file family.
	BackendObject Backend = "object"
)

func (b Backend) Valid() bool { return b == BackendPack || b == BackendObject }
