package footprint

import (
	"sync"
	"unsafe"
)

// Architecture is the word width of a host in bits.
type Architecture int

const (
	Narrow Architecture = 32
	Wide   Architecture = 64
)

var (
	hostArchOnce sync.Once
	hostArch     Architecture
)

// HostArchitecture returns the architecture of the running process.
// It is read on first use and fixed afterwards.
func HostArchitecture() Architecture {
	hostArchOnce.Do(func() {
		var ptr uintptr
		if unsafe.Sizeof(ptr) == 8 {
			hostArch = Wide
		} else {
			hostArch = Narrow
		}
	})
	return hostArch
}

// IsWide reports whether a is a 64-bit architecture.
func (a Architecture) IsWide() bool {
	return a == Wide
}

// Scale returns bits unchanged on a wide architecture and halves it
// (truncating toward zero) on a narrow one. Every architecture dependent
// constant of the size model goes through Scale.
func (a Architecture) Scale(bits int64) int64 {
	if a.IsWide() {
		return bits
	}
	return bits / 2
}

// String returns "wide" or "narrow".
func (a Architecture) String() string {
	if a.IsWide() {
		return "wide"
	}
	return "narrow"
}
