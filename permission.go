package footprint

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Level is a permission level applied to a field by Escalator.Modify.
type Level int8

const (
	// LevelUnset drops the accessibility of the field.
	LevelUnset Level = -1
	// LevelUnchanged leaves the field as it is.
	LevelUnchanged Level = 0
	// LevelSet requests normal accessibility, which only exported fields get.
	LevelSet Level = 1
	// LevelOverride bypasses the accessibility check through the override.
	LevelOverride Level = 2
)

// String returns the name of the level.
func (l Level) String() string {
	switch l {
	case LevelUnset:
		return "unset"
	case LevelUnchanged:
		return "unchanged"
	case LevelSet:
		return "set"
	case LevelOverride:
		return "override"
	}
	return fmt.Sprintf("Level(%d)", int8(l))
}

// Field is one named value of a composite: a struct field, a sequence
// element or one half of a map entry. Its value can only be read once the
// field has been made accessible.
type Field struct {
	Name  string
	Owner reflect.Type

	raw        reflect.Value
	value      reflect.Value
	accessible bool
	promoted   bool
}

func newField(name string, owner reflect.Type, raw reflect.Value) *Field {
	return &Field{Name: name, Owner: owner, raw: raw}
}

// Raw returns the field as reached through reflection. It may be read-only.
func (f *Field) Raw() reflect.Value {
	return f.raw
}

// Type returns the declared type of the field.
func (f *Field) Type() reflect.Type {
	return f.raw.Type()
}

// Exported reports whether normal accessibility is enough to read the field.
func (f *Field) Exported() bool {
	return f.raw.CanInterface()
}

// Promoted reports whether the field is declared in an embedded struct.
func (f *Field) Promoted() bool {
	return f.promoted
}

// Accessible reports whether the field value can be read.
func (f *Field) Accessible() bool {
	return f.accessible
}

// Value returns the readable value of the field.
func (f *Field) Value() (reflect.Value, error) {
	if !f.accessible {
		return reflect.Value{}, errors.Wrapf(ErrAccessDenied, "field %s of %s is not accessible", f.Name, f.Owner)
	}
	return f.value, nil
}

// Interface returns the current value of the field.
func (f *Field) Interface() (any, error) {
	v, err := f.Value()
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetAccessible requests normal accessibility when flag is true and drops
// it otherwise. Unexported fields are refused with ErrAccessDenied.
func (f *Field) SetAccessible(flag bool) error {
	if !flag {
		f.value = reflect.Value{}
		f.accessible = false
		return nil
	}
	if !f.raw.CanInterface() {
		return errors.Wrapf(ErrAccessDenied, "field %s of %s is unexported", f.Name, f.Owner)
	}
	f.value = f.raw
	f.accessible = true
	return nil
}

// Grant installs v as the readable view of the field. It is meant for
// AccessibilityOverride implementations and reports false when v is not a
// readable value of the field's type.
func (f *Field) Grant(v reflect.Value) bool {
	if !v.IsValid() || !v.CanInterface() || v.Type() != f.raw.Type() {
		return false
	}
	f.value = v
	f.accessible = true
	return true
}

// AccessibilityOverride is the privileged mechanism used to read fields
// that normal accessibility rules refuse. Attempt reports whether it made
// the field accessible.
type AccessibilityOverride interface {
	Attempt(f *Field) bool
}

// OverrideFunc adapts a function to AccessibilityOverride.
type OverrideFunc func(f *Field) bool

// Attempt calls fn(f).
func (fn OverrideFunc) Attempt(f *Field) bool {
	return fn(f)
}

// UnsafeOverride re-derives an addressable field from its address, which
// yields a value free of the read-only flag.
var UnsafeOverride AccessibilityOverride = OverrideFunc(func(f *Field) bool {
	if !f.raw.CanAddr() {
		return false
	}
	return f.Grant(reflect.NewAt(f.raw.Type(), unsafe.Pointer(f.raw.UnsafeAddr())).Elem())
})

// DenyOverride refuses every override, like a host whose security policy
// forbids it.
var DenyOverride AccessibilityOverride = OverrideFunc(func(*Field) bool {
	return false
})

type probeTarget struct {
	word uintptr
}

// Escalator applies permission levels to fields. Whether the override is
// usable is probed once, on first use, and cached for the Escalator's
// lifetime.
type Escalator struct {
	override AccessibilityOverride
	logger   *zap.Logger

	probeOnce   sync.Once
	canOverride bool
}

// NewEscalator returns an Escalator backed by override. A nil logger
// disables logging.
func NewEscalator(override AccessibilityOverride, logger *zap.Logger) *Escalator {
	if override == nil {
		override = DenyOverride
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Escalator{override: override, logger: logger}
}

var (
	defaultEscalatorOnce sync.Once
	defaultEscalator     *Escalator
)

// DefaultEscalator returns the process-wide Escalator backed by UnsafeOverride.
func DefaultEscalator() *Escalator {
	defaultEscalatorOnce.Do(func() {
		defaultEscalator = NewEscalator(UnsafeOverride, nil)
	})
	return defaultEscalator
}

// CanOverride reports whether the override works in this runtime. The
// first call runs the probe; concurrent first callers wait for its result.
func (e *Escalator) CanOverride() bool {
	e.probeOnce.Do(e.probe)
	return e.canOverride
}

func (e *Escalator) probe() {
	defer func() {
		if r := recover(); r != nil {
			e.canOverride = false
			e.logger.Warn("accessibility override panicked, permission overriding will not work", zap.Any("panic", r))
		}
	}()

	target := &probeTarget{word: 1}
	f := newField("word", reflect.TypeOf(target).Elem(), reflect.ValueOf(target).Elem().Field(0))
	e.canOverride = e.override.Attempt(f) && f.Accessible()
	if !e.canOverride {
		e.logger.Warn("cannot use accessibility override, permission overriding will not work")
	}
}

// Override makes f accessible through the override.
func (e *Escalator) Override(f *Field) error {
	if !e.CanOverride() {
		return errors.Wrapf(ErrInsufficientPermission, "field %s of %s", f.Name, f.Owner)
	}
	if !e.override.Attempt(f) {
		return errors.Wrapf(ErrInsufficientPermission, "override refused for field %s of %s", f.Name, f.Owner)
	}
	e.logger.Debug("overrode field accessibility", zap.String("field", f.Name), zap.Stringer("owner", f.Owner))
	return nil
}

// TryOverride overrides f when the override is available and falls back to
// requesting normal accessibility otherwise.
func (e *Escalator) TryOverride(f *Field) error {
	if e.CanOverride() {
		return e.Modify(f, LevelOverride)
	}
	return e.Modify(f, LevelSet)
}

// Modify applies level to f.
func (e *Escalator) Modify(f *Field, level Level) error {
	switch level {
	case LevelUnset:
		return f.SetAccessible(false)
	case LevelUnchanged:
		return nil
	case LevelSet:
		return f.SetAccessible(true)
	case LevelOverride:
		return e.Override(f)
	}
	return errors.Newf("unknown permission level %s", level)
}
