package footprint

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	var nilPtr *int32
	var nilIface any
	x := int32(3)
	loop := new(any)
	*loop = loop
	tests := []struct {
		name   string
		v      any
		wide   Class
		narrow Class
	}{
		{name: "Untyped nil", v: nil, wide: ClassNull, narrow: ClassNull},
		{name: "Nil pointer", v: nilPtr, wide: ClassNull, narrow: ClassNull},
		{name: "Pointer to nil interface", v: &nilIface, wide: ClassNull, narrow: ClassNull},
		{name: "Nil slice", v: []int32(nil), wide: ClassNull, narrow: ClassNull},
		{name: "Nil map", v: map[string]int(nil), wide: ClassNull, narrow: ClassNull},
		{name: "Nil func", v: (func())(nil), wide: ClassNull, narrow: ClassNull},
		{name: "Bool", v: true, wide: ClassBoolLike, narrow: ClassBoolLike},
		{name: "Byte", v: byte(1), wide: ClassBoolLike, narrow: ClassBoolLike},
		{name: "Rune", v: 'a', wide: ClassBoolLike, narrow: ClassBoolLike},
		{name: "Int16", v: int16(1), wide: ClassBoolLike, narrow: ClassBoolLike},
		{name: "Float32", v: float32(1), wide: ClassBoolLike, narrow: ClassBoolLike},
		{name: "Int64", v: int64(1), wide: ClassWideScalar, narrow: ClassWideScalar},
		{name: "Float64", v: 1.5, wide: ClassWideScalar, narrow: ClassWideScalar},
		{name: "Complex64", v: complex64(1), wide: ClassWideScalar, narrow: ClassWideScalar},
		{name: "Int follows word width", v: 1, wide: ClassWideScalar, narrow: ClassBoolLike},
		{name: "Uintptr follows word width", v: uintptr(1), wide: ClassWideScalar, narrow: ClassBoolLike},
		{name: "Pointer is transparent", v: &x, wide: ClassBoolLike, narrow: ClassBoolLike},
		{name: "String", v: "abc", wide: ClassText, narrow: ClassText},
		{name: "Scalar slice", v: []int32{1}, wide: ClassPrimitiveSequence, narrow: ClassPrimitiveSequence},
		{name: "Scalar array", v: [2]bool{}, wide: ClassPrimitiveSequence, narrow: ClassPrimitiveSequence},
		{name: "String slice", v: []string{"a"}, wide: ClassSequence, narrow: ClassSequence},
		{name: "Pointer slice", v: []*int32{&x}, wide: ClassSequence, narrow: ClassSequence},
		{name: "Map", v: map[string]int{}, wide: ClassSequence, narrow: ClassSequence},
		{name: "Struct", v: struct{ A int }{}, wide: ClassComposite, narrow: ClassComposite},
		{name: "Complex128", v: complex128(1), wide: ClassWideScalar, narrow: ClassWideScalar},
		{name: "Func", v: func() {}, wide: ClassWideScalar, narrow: ClassBoolLike},
		{name: "Chan", v: make(chan int), wide: ClassWideScalar, narrow: ClassBoolLike},
		{name: "Unsafe pointer", v: unsafe.Pointer(&x), wide: ClassWideScalar, narrow: ClassBoolLike},
		{name: "Pointer loop", v: loop, wide: ClassUnsupported, narrow: ClassUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rv := reflect.ValueOf(tt.v)
			assert.Equal(t, tt.wide, Model{Arch: Wide}.Classify(rv), "wide")
			assert.Equal(t, tt.narrow, Model{Arch: Narrow}.Classify(rv), "narrow")
		})
	}
}

func TestElementBits(t *testing.T) {
	tests := []struct {
		kind   reflect.Kind
		wide   int64
		narrow int64
		ok     bool
	}{
		{kind: reflect.Bool, wide: 8, narrow: 8, ok: true},
		{kind: reflect.Uint8, wide: 8, narrow: 8, ok: true},
		{kind: reflect.Int16, wide: 16, narrow: 16, ok: true},
		{kind: reflect.Float32, wide: 32, narrow: 32, ok: true},
		{kind: reflect.Int64, wide: 64, narrow: 64, ok: true},
		{kind: reflect.Complex128, wide: 128, narrow: 128, ok: true},
		{kind: reflect.Int, wide: 64, narrow: 32, ok: true},
		{kind: reflect.String},
		{kind: reflect.Struct},
		{kind: reflect.Pointer},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			bits, ok := Model{Arch: Wide}.ElementBits(tt.kind)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wide, bits)
			bits, _ = Model{Arch: Narrow}.ElementBits(tt.kind)
			assert.Equal(t, tt.narrow, bits)
		})
	}
}

func TestModelOverhead(t *testing.T) {
	wide, narrow := Model{Arch: Wide}, Model{Arch: Narrow}
	tests := []struct {
		class  Class
		wide   int64
		narrow int64
	}{
		{class: ClassNull, wide: 8, narrow: 4},
		{class: ClassBoolLike, wide: 0, narrow: 0},
		{class: ClassWideScalar, wide: 0, narrow: 0},
		{class: ClassText, wide: 256, narrow: 128},
		{class: ClassPrimitiveSequence, wide: 256, narrow: 128},
		{class: ClassSequence, wide: 192, narrow: 96},
		{class: ClassComposite, wide: 192, narrow: 96},
	}
	for _, tt := range tests {
		t.Run(tt.class.String(), func(t *testing.T) {
			o, err := wide.Overhead(tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.wide, o)
			o, err = narrow.Overhead(tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.narrow, o)
			assert.LessOrEqual(t, o, int64(256))
		})
	}

	_, err := wide.Overhead(ClassUnsupported)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestScalarBits(t *testing.T) {
	m := Model{Arch: Wide}
	assert.Equal(t, int64(32), m.ScalarBits(ClassBoolLike, reflect.Int8))
	assert.Equal(t, int64(64), m.ScalarBits(ClassWideScalar, reflect.Float64))
	assert.Equal(t, int64(64), m.ScalarBits(ClassWideScalar, reflect.Func))
	assert.Equal(t, int64(128), m.ScalarBits(ClassWideScalar, reflect.Complex128))
}

func TestTextMemory(t *testing.T) {
	assert.Equal(t, int64(648), Model{Arch: Wide}.TextMemory(5))
	assert.Equal(t, int64(608), Model{Arch: Wide}.TextMemory(0))
	assert.Equal(t, int64(392), Model{Arch: Narrow}.TextMemory(5))
}

func TestPrimitiveSequenceMemory(t *testing.T) {
	assert.Equal(t, int64(384), Model{Arch: Wide}.PrimitiveSequenceMemory(4, 32))
	assert.Equal(t, int64(256), Model{Arch: Narrow}.PrimitiveSequenceMemory(4, 32))
	assert.Equal(t, int64(256), Model{Arch: Wide}.PrimitiveSequenceMemory(0, 64))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "composite", ClassComposite.String())
	assert.Equal(t, "unknown", Class(200).String())
	assert.True(t, ClassWideScalar.Scalar())
	assert.False(t, ClassText.Scalar())
}
