package footprint

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale(t *testing.T) {
	tests := []struct {
		name string
		arch Architecture
		bits int64
		want int64
	}{
		{name: "Wide keeps value", arch: Wide, bits: 384, want: 384},
		{name: "Wide keeps negative", arch: Wide, bits: -7, want: -7},
		{name: "Narrow halves", arch: Narrow, bits: 384, want: 192},
		{name: "Narrow truncates", arch: Narrow, bits: 7, want: 3},
		{name: "Narrow truncates toward zero", arch: Narrow, bits: -7, want: -3},
		{name: "Narrow zero", arch: Narrow, bits: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.arch.Scale(tt.bits))
		})
	}
}

func TestHostArchitecture(t *testing.T) {
	first := HostArchitecture()
	assert.Equal(t, first, HostArchitecture())
	assert.Equal(t, strconv.IntSize == 64, first.IsWide())
	assert.Equal(t, first.IsWide(), ArchitectureIsWide())

	for _, bits := range []int64{-9, 0, 1, 8, 256, 384} {
		assert.Equal(t, first.Scale(bits), Scale(bits))
		assert.Equal(t, Scale(bits), Scale(bits))
	}
}

func TestArchitectureString(t *testing.T) {
	assert.Equal(t, "wide", Wide.String())
	assert.Equal(t, "narrow", Narrow.String())
}
