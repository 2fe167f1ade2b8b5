// Package footprint estimates the logical memory footprint of a Go value.
//
// The estimate follows a simplified cost model rather than the allocator:
// scalars cost a fixed width, strings and scalar slices have closed-form
// sizes, and everything else costs a header plus the sizes of its fields,
// which are measured recursively. All sizes are in bits.
//
// Unexported struct fields are read through an accessibility override. When
// the override is unavailable, or automatic escalation is switched off, such
// fields make the estimation fail.
//
// The field graph must be finite and acyclic. A cyclic graph fails with
// ErrRecursionExhausted once the depth limit is reached.
package footprint

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/cockroachdb/errors"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Estimator measures values. It is safe for concurrent use.
type Estimator struct {
	model        Model
	escalator    *Escalator
	introspector *Introspector
	automatic    *atomic.Bool
	maxDepth     int
	detectCycles bool
	logger       *zap.Logger
}

// New returns an Estimator configured by opts.
func New(opts ...Option) *Estimator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.escalator == nil {
		cfg.escalator = DefaultEscalator()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.maxDepth <= 0 {
		cfg.maxDepth = DefaultMaxDepth
	}

	automatic := atomic.NewBool(cfg.automatic)
	return &Estimator{
		model:        Model{Arch: cfg.arch},
		escalator:    cfg.escalator,
		introspector: NewIntrospector(cfg.escalator, automatic, cfg.typeCacheSize, cfg.logger),
		automatic:    automatic,
		maxDepth:     cfg.maxDepth,
		detectCycles: cfg.detectCycles,
		logger:       cfg.logger,
	}
}

// Architecture returns the architecture the estimator scales for.
func (e *Estimator) Architecture() Architecture {
	return e.model.Arch
}

// Model returns the size model of the estimator.
func (e *Estimator) Model() Model {
	return e.model
}

// Escalator returns the escalator used to unlock unexported fields.
func (e *Estimator) Escalator() *Escalator {
	return e.escalator
}

// Introspector returns the field enumerator of the estimator.
func (e *Estimator) Introspector() *Introspector {
	return e.introspector
}

// Scale scales bits for the estimator's architecture.
func (e *Estimator) Scale(bits int64) int64 {
	return e.model.Arch.Scale(bits)
}

// AutomaticEscalation reports whether unreadable fields are retried
// through the accessibility override.
func (e *Estimator) AutomaticEscalation() bool {
	return e.automatic.Load()
}

// SetAutomaticEscalation switches the escalation policy. Estimations in
// flight observe the new value at their next field access, or not at all.
func (e *Estimator) SetAutomaticEscalation(enabled bool) {
	e.automatic.Store(enabled)
}

// Overhead returns the header cost of v in bits.
func (e *Estimator) Overhead(v any) (int64, error) {
	rv, ok := indirect(reflect.ValueOf(v))
	if !ok {
		return 0, errors.Wrapf(ErrRecursionExhausted, "%s refers back to itself", rv.Type())
	}
	o, err := e.model.Overhead(e.model.Classify(rv))
	if err != nil {
		return 0, errors.Wrapf(err, "%s", typeName(rv))
	}
	return o, nil
}

// Memory returns the estimated footprint of v in bits.
func (e *Estimator) Memory(v any) (int64, error) {
	w := &walk{Estimator: e}
	if e.detectCycles {
		w.visiting = mapset.NewThreadUnsafeSet[visit]()
	}
	return w.memory(reflect.ValueOf(v))
}

// Estimate is the footprint of a value.
type Estimate struct {
	Memory   int64
	Overhead int64
}

// Bytes returns the memory rounded up to whole bytes.
func (s Estimate) Bytes() datasize.ByteSize {
	return datasize.ByteSize((s.Memory + 7) / 8)
}

// String renders the estimate in bits and bytes.
func (s Estimate) String() string {
	return fmt.Sprintf("%d bits (%s), overhead %d bits", s.Memory, s.Bytes().HumanReadable(), s.Overhead)
}

// Estimate returns both the memory and the overhead of v.
func (e *Estimator) Estimate(v any) (Estimate, error) {
	o, err := e.Overhead(v)
	if err != nil {
		return Estimate{}, err
	}
	m, err := e.Memory(v)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Memory: m, Overhead: o}, nil
}

const rootPath = "$"

// visit identifies a composite by address and type. The type tells apart a
// struct from its first field, which share the address.
type visit struct {
	addr uintptr
	typ  reflect.Type
}

type walk struct {
	*Estimator
	names    []string         // field names from the root to the current value
	visiting mapset.Set[visit] // composites on the current path, nil when cycle detection is off
}

func (w *walk) memory(v reflect.Value) (int64, error) {
	if len(w.names) > w.maxDepth {
		return 0, errors.Wrapf(ErrRecursionExhausted, "%s: nesting exceeds %d levels", w.path(), w.maxDepth)
	}

	v, ok := indirect(v)
	if !ok {
		return 0, errors.Wrapf(ErrRecursionExhausted, "%s: %s refers back to itself", w.path(), v.Type())
	}
	switch class := w.model.Classify(v); class {
	case ClassNull:
		return w.model.Overhead(class)
	case ClassBoolLike, ClassWideScalar:
		return w.model.ScalarBits(class, v.Kind()), nil
	case ClassText:
		return w.model.TextMemory(v.Len()), nil
	case ClassPrimitiveSequence:
		bits, _ := w.model.ElementBits(v.Type().Elem().Kind())
		return w.model.PrimitiveSequenceMemory(v.Len(), bits), nil
	case ClassSequence, ClassComposite:
		return w.composite(v)
	}
	return 0, errors.Wrapf(ErrUnsupportedKind, "%s: %s", w.path(), typeName(v))
}

func (w *walk) composite(v reflect.Value) (int64, error) {
	if w.visiting != nil {
		if key, ok := identity(v); ok {
			if !w.visiting.Add(key) {
				return 0, errors.Wrapf(ErrRecursionExhausted, "%s: cycle back to %s", w.path(), v.Type())
			}
			defer w.visiting.Remove(key)
		}
	}

	fields, err := w.introspector.Fields(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", w.path())
	}

	sum := w.model.Arch.Scale(objectOverheadBits)
	for _, f := range fields {
		fv, err := f.Value()
		if err != nil {
			return 0, errors.Wrapf(err, "%s", w.path())
		}
		w.names = append(w.names, f.Name)
		s, err := w.memory(fv)
		w.names = w.names[:len(w.names)-1]
		if err != nil {
			return 0, err
		}
		sum += s
	}
	return sum, nil
}

// path renders the field names leading to the value being measured.
func (w *walk) path() string {
	var b strings.Builder
	b.WriteString(rootPath)
	for _, name := range w.names {
		if !strings.HasPrefix(name, "[") {
			b.WriteByte('.')
		}
		b.WriteString(name)
	}
	return b.String()
}

func identity(v reflect.Value) (visit, bool) {
	switch v.Kind() {
	case reflect.Map:
		return visit{addr: v.Pointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.Len() == 0 {
			return visit{}, false
		}
		return visit{addr: v.Pointer(), typ: v.Type()}, true
	case reflect.Struct, reflect.Array:
		if v.CanAddr() {
			return visit{addr: v.UnsafeAddr(), typ: v.Type()}, true
		}
	}
	return visit{}, false
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

var (
	defaultOnce      sync.Once
	defaultEstimator *Estimator
)

// Default returns the process-wide Estimator behind the package level
// functions.
func Default() *Estimator {
	defaultOnce.Do(func() {
		defaultEstimator = New()
	})
	return defaultEstimator
}

// Memory returns the estimated footprint of v in bits, using Default.
func Memory(v any) (int64, error) {
	return Default().Memory(v)
}

// Overhead returns the header cost of v in bits, using Default.
func Overhead(v any) (int64, error) {
	return Default().Overhead(v)
}

// Of returns the memory and overhead of v, using Default.
func Of(v any) (Estimate, error) {
	return Default().Estimate(v)
}

// Scale scales bits for the host architecture.
func Scale(bits int64) int64 {
	return HostArchitecture().Scale(bits)
}

// ArchitectureIsWide reports whether the host is a 64-bit architecture.
func ArchitectureIsWide() bool {
	return HostArchitecture().IsWide()
}

// AutomaticEscalation reports the escalation policy of Default.
func AutomaticEscalation() bool {
	return Default().AutomaticEscalation()
}

// SetAutomaticEscalation switches the escalation policy of Default. See
// Estimator.SetAutomaticEscalation for how it interacts with running
// estimations.
func SetAutomaticEscalation(enabled bool) {
	Default().SetAutomaticEscalation(enabled)
}
