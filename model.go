package footprint

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// Class is the closed set of value classifications the estimator knows.
type Class uint8

const (
	// ClassUnsupported is returned for values outside of every other class.
	ClassUnsupported Class = iota
	ClassNull
	// ClassBoolLike covers scalars charged 32 bits.
	ClassBoolLike
	// ClassWideScalar covers scalars charged 64 bits, and complex128 charged 128.
	ClassWideScalar
	ClassText
	// ClassPrimitiveSequence is an array or slice of scalars, sized per element.
	ClassPrimitiveSequence
	// ClassSequence is an array or slice of references, or a map. Its
	// elements are measured like fields of a composite.
	ClassSequence
	ClassComposite
)

var classNames = [...]string{
	ClassUnsupported:       "unsupported",
	ClassNull:              "null",
	ClassBoolLike:          "bool-like",
	ClassWideScalar:        "wide-scalar",
	ClassText:              "text",
	ClassPrimitiveSequence: "primitive-sequence",
	ClassSequence:          "sequence",
	ClassComposite:         "composite",
}

// String returns the name of the class.
func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Scalar reports whether c is one of the scalar classes.
func (c Class) Scalar() bool {
	return c == ClassBoolLike || c == ClassWideScalar
}

// Size model constants, in bits, as seen on a wide architecture.
const (
	nullOverheadBits   = 8
	objectOverheadBits = 192 // composites and reference sequences
	headerOverheadBits = 256 // strings and scalar sequences
	boolLikeBits       = 32
	wideScalarBits     = 64
	textFieldsBits     = 96 // coder byte, hash int, hash-is-zero flag
	textBackingBits    = 256
	textCharBits       = 8
)

// Model maps classifications to overhead and memory, in bits. It holds no
// state besides the architecture it scales for.
type Model struct {
	Arch Architecture
}

// Classify reports the class of v. Non-nil pointers and interfaces are
// classified by the value they refer to. A chain of references that comes
// back to itself classifies as ClassUnsupported.
func (m Model) Classify(v reflect.Value) Class {
	v, ok := indirect(v)
	if !ok {
		return ClassUnsupported
	}
	if !v.IsValid() {
		return ClassNull
	}

	switch k := v.Kind(); k {
	case reflect.Pointer, reflect.Interface:
		// indirect stops only at nil references
		return ClassNull

	case reflect.Bool,
		reflect.Int8, reflect.Uint8, reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32, reflect.Float32:
		return ClassBoolLike

	case reflect.Int64, reflect.Uint64, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return ClassWideScalar

	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return m.wordClass()

	case reflect.String:
		return ClassText

	case reflect.Slice, reflect.Array:
		if k == reflect.Slice && v.IsNil() {
			return ClassNull
		}
		if _, ok := m.ElementBits(v.Type().Elem().Kind()); ok {
			return ClassPrimitiveSequence
		}
		return ClassSequence

	case reflect.Map:
		if v.IsNil() {
			return ClassNull
		}
		return ClassSequence

	case reflect.Struct:
		return ClassComposite

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// opaque handles cost a word
		if v.IsNil() {
			return ClassNull
		}
		return m.wordClass()
	}
	return ClassUnsupported
}

func (m Model) wordClass() Class {
	if m.Arch.IsWide() {
		return ClassWideScalar
	}
	return ClassBoolLike
}

// ElementBits returns the width of one element of kind k inside a
// primitive sequence. ok is false for non-scalar kinds.
func (m Model) ElementBits(k reflect.Kind) (bits int64, ok bool) {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 8, true
	case reflect.Int16, reflect.Uint16:
		return 16, true
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 32, true
	case reflect.Int64, reflect.Uint64, reflect.Float64, reflect.Complex64:
		return 64, true
	case reflect.Complex128:
		return 128, true
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return m.Arch.Scale(64), true
	}
	return 0, false
}

// Overhead returns the header cost of a value of class c.
func (m Model) Overhead(c Class) (int64, error) {
	switch c {
	case ClassNull:
		return m.Arch.Scale(nullOverheadBits), nil
	case ClassBoolLike, ClassWideScalar:
		return 0, nil
	case ClassText, ClassPrimitiveSequence:
		return m.Arch.Scale(headerOverheadBits), nil
	case ClassSequence, ClassComposite:
		return m.Arch.Scale(objectOverheadBits), nil
	}
	return 0, errors.Wrapf(ErrUnsupportedKind, "no overhead for class %s", c)
}

// ScalarBits returns the memory of a scalar of class c and kind k.
func (m Model) ScalarBits(c Class, k reflect.Kind) int64 {
	switch {
	case k == reflect.Complex128:
		return 2 * wideScalarBits
	case c == ClassWideScalar:
		return wideScalarBits
	}
	return boolLikeBits
}

// TextMemory returns the memory of a string of n bytes.
func (m Model) TextMemory(n int) int64 {
	return m.Arch.Scale(headerOverheadBits) + textFieldsBits + m.Arch.Scale(textBackingBits) + textCharBits*int64(n)
}

// PrimitiveSequenceMemory returns the memory of n elements of elemBits each.
func (m Model) PrimitiveSequenceMemory(n int, elemBits int64) int64 {
	return m.Arch.Scale(headerOverheadBits) + elemBits*int64(n)
}

// indirect follows non-nil pointers and interfaces. ok is false when the
// chain comes back to a pointer it already passed.
func indirect(v reflect.Value) (_ reflect.Value, ok bool) {
	var seen []visit
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && !v.IsNil() {
		if v.Kind() == reflect.Pointer {
			key := visit{addr: v.Pointer(), typ: v.Type()}
			for _, s := range seen {
				if s == key {
					return v, false
				}
			}
			seen = append(seen, key)
		}
		v = v.Elem()
	}
	return v, true
}
