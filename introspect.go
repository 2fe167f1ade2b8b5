package footprint

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang/groupcache/lru"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// fieldInfo is the per-type metadata of one struct field.
type fieldInfo struct {
	name  string
	index []int
	owner reflect.Type
}

// Introspector enumerates the fields of composite values and makes them
// readable, escalating through its Escalator when the automatic escalation
// policy is on.
type Introspector struct {
	escalator *Escalator
	automatic *atomic.Bool
	logger    *zap.Logger

	mu    sync.Mutex
	types *lru.Cache // reflect.Type -> []fieldInfo
}

// NewIntrospector returns an Introspector. automatic is read on every field
// access, so toggling it affects in-flight traversals at their next field.
// cacheSize bounds the number of struct types whose field metadata is kept;
// zero disables the cache.
func NewIntrospector(escalator *Escalator, automatic *atomic.Bool, cacheSize int, logger *zap.Logger) *Introspector {
	if escalator == nil {
		escalator = DefaultEscalator()
	}
	if automatic == nil {
		automatic = atomic.NewBool(true)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Introspector{escalator: escalator, automatic: automatic, logger: logger}
	if cacheSize > 0 {
		in.types = lru.New(cacheSize)
	}
	return in
}

// Fields returns the readable fields of v: the instance fields of a struct
// (embedded structs flattened in declaration order), the elements of an
// array or slice, or the keys and values of a map.
func (in *Introspector) Fields(v reflect.Value) ([]*Field, error) {
	v, ok := indirect(v)
	if !ok {
		return nil, errors.Wrapf(ErrRecursionExhausted, "%s refers back to itself", v.Type())
	}
	var fields []*Field
	switch v.Kind() {
	case reflect.Struct:
		fields = in.structFields(v)
	case reflect.Array, reflect.Slice:
		fields = make([]*Field, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			fields = append(fields, newField("["+strconv.Itoa(i)+"]", v.Type(), v.Index(i)))
		}
	case reflect.Map:
		fields = make([]*Field, 0, 2*v.Len())
		iter := v.MapRange()
		for i := 0; iter.Next(); i++ {
			entry := "[" + strconv.Itoa(i) + "]"
			fields = append(fields,
				newField(entry+".key", v.Type(), iter.Key()),
				newField(entry+".value", v.Type(), iter.Value()),
			)
		}
	default:
		if !v.IsValid() {
			return nil, errors.Wrap(ErrUnsupportedKind, "no fields in an invalid value")
		}
		return nil, errors.Wrapf(ErrUnsupportedKind, "no fields in %s", v.Type())
	}

	for _, f := range fields {
		if err := in.unlock(f); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

func (in *Introspector) structFields(v reflect.Value) []*Field {
	v = addressable(v)
	infos := in.typeFields(v.Type())
	fields := make([]*Field, 0, len(infos))
	for _, info := range infos {
		fields = append(fields, info.field(v))
	}
	return fields
}

// Field looks up the struct field called name in v and applies level to
// it. Fields of embedded structs are found too; when a name is declared at
// several depths, the shallowest declaration wins, as in a Go selector.
func (in *Introspector) Field(v reflect.Value, name string, level Level) (*Field, error) {
	v, ok := indirect(v)
	if !ok {
		return nil, errors.Wrapf(ErrRecursionExhausted, "%s refers back to itself", v.Type())
	}
	if v.Kind() != reflect.Struct {
		return nil, errors.Wrapf(ErrUnsupportedKind, "no field %s in %s", name, typeName(v))
	}
	v = addressable(v)

	var found *fieldInfo
	infos := in.typeFields(v.Type())
	for i := range infos {
		if infos[i].name == name && (found == nil || len(infos[i].index) < len(found.index)) {
			found = &infos[i]
		}
	}
	if found == nil {
		return nil, errors.Wrapf(ErrFieldNotFound, "%s in %s", name, v.Type())
	}

	f := found.field(v)
	if err := in.escalator.Modify(f, level); err != nil {
		return nil, err
	}
	return f, nil
}

// addressable copies v when it has no address, since unexported fields can
// only be overridden through their address.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() || !v.CanInterface() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

func (info fieldInfo) field(v reflect.Value) *Field {
	f := newField(info.name, info.owner, v.FieldByIndex(info.index))
	f.promoted = len(info.index) > 1
	return f
}

func (in *Introspector) typeFields(t reflect.Type) []fieldInfo {
	if in.types == nil {
		return collectFields(t, nil, nil)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if cached, ok := in.types.Get(t); ok {
		return cached.([]fieldInfo)
	}
	infos := collectFields(t, nil, nil)
	in.types.Add(t, infos)
	return infos
}

func collectFields(t reflect.Type, prefix []int, infos []fieldInfo) []fieldInfo {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}
		index := make([]int, len(prefix)+1)
		copy(index, prefix)
		index[len(prefix)] = i
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			infos = collectFields(sf.Type, index, infos)
			continue
		}
		infos = append(infos, fieldInfo{name: sf.Name, index: index, owner: t})
	}
	return infos
}

// unlock makes f readable: normal accessibility first, then the override if
// the automatic escalation policy allows it.
func (in *Introspector) unlock(f *Field) error {
	err := in.escalator.Modify(f, LevelSet)
	if err == nil || !errors.Is(err, ErrAccessDenied) {
		return err
	}
	if !in.automatic.Load() {
		return err
	}
	in.logger.Debug("escalating field access", zap.String("field", f.Name), zap.Stringer("owner", f.Owner))
	return in.escalator.Modify(f, LevelOverride)
}
