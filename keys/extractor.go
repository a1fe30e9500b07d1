package keys

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/enorm-keys/schema"
)

// PropertySource returns the ordered key properties of an entity type.
// *cache.KeyCache is the usual implementation.
type PropertySource interface {
	Properties(t reflect.Type) ([]schema.KeyProperty, error)
}

// Entry is a change-tracking entry: a tracked entity together with an
// accessor for the current value of each of its properties, which may
// differ from the field values of the instance while changes are pending.
type Entry interface {
	Entity() any
	EntityType() reflect.Type
	CurrentValue(property string) (any, error)
}

// KeyValue is one part of an extracted primary key.
type KeyValue struct {
	Name  string
	Value any
}

// Extractor reads primary key values off entities and tracking entries.
// It is safe for concurrent use.
type Extractor struct {
	source PropertySource
	logger *slog.Logger
}

type Option func(*Extractor)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) { x.logger = logger }
}

// New creates an extractor that resolves key properties through source.
func New(source PropertySource, opts ...Option) *Extractor {
	x := &Extractor{source: source}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = slog.New(slog.DiscardHandler)
	}
	return x
}

// Values returns the name and current value of every key part of the
// entry, in key order. Values are read through the entry so pending
// changes are visible.
func (x *Extractor) Values(entry Entry) ([]KeyValue, error) {
	if isNil(entry) {
		return nil, invalidArgument("entry")
	}

	t := entryType(entry)
	if t == nil {
		return nil, invalidArgument("entity of entry")
	}
	props, err := x.source.Properties(t)
	if err != nil {
		return nil, err
	}

	values := make([]KeyValue, len(props))
	for i, p := range props {
		v, err := entry.CurrentValue(p.Name)
		if err != nil {
			return nil, fmt.Errorf("read key %s of %s: %w", p.Name, t, err)
		}
		values[i] = KeyValue{Name: p.Name, Value: v}
	}
	return values, nil
}

// Of returns the current key values of the entry, in key order.
func (x *Extractor) Of(entry Entry) ([]any, error) {
	kvs, err := x.Values(entry)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(kvs))
	for i, kv := range kvs {
		values[i] = kv.Value
	}
	return values, nil
}

// String formats the key of the entry as "(Name1)=[Value1]; (Name2)=[Value2]".
func (x *Extractor) String(entry Entry) (string, error) {
	kvs, err := x.Values(entry)
	if err != nil {
		return "", err
	}
	return Format(kvs), nil
}

// OfEntity returns the key values of entity, read directly off its fields.
// A key property the instance does not have yields a nil value.
func (x *Extractor) OfEntity(entity any) ([]any, error) {
	_, values, err := x.entityValues(entity)
	return values, err
}

func (x *Extractor) entityValues(entity any) ([]schema.KeyProperty, []any, error) {
	if isNil(entity) {
		return nil, nil, invalidArgument("entity")
	}

	t := indirect(reflect.TypeOf(entity))
	props, err := x.source.Properties(t)
	if err != nil {
		return nil, nil, err
	}

	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}

	values := make([]any, len(props))
	for i, p := range props {
		fv, ok := fieldByName(v, p.Name)
		if !ok {
			x.logger.Debug("key property missing on instance",
				"type", t.String(),
				"property", p.Name)
			continue
		}
		values[i] = fv
	}
	return props, values, nil
}

// SingleOf returns the only key value of the entry as T. Keys with any
// other number of parts fail with a *CompositeKeyError.
func SingleOf[T any](x *Extractor, entry Entry) (T, error) {
	var zero T
	kvs, err := x.Values(entry)
	if err != nil {
		return zero, err
	}
	t := entryType(entry)
	if len(kvs) != 1 {
		return zero, &CompositeKeyError{Type: t, Parts: len(kvs)}
	}
	return cast[T](t, kvs[0].Name, kvs[0].Value)
}

// SingleOfEntity returns the only key value of entity as T. Keys with any
// other number of parts fail with a *CompositeKeyError.
func SingleOfEntity[T any](x *Extractor, entity any) (T, error) {
	var zero T
	props, values, err := x.entityValues(entity)
	if err != nil {
		return zero, err
	}
	t := indirect(reflect.TypeOf(entity))
	if len(values) != 1 {
		return zero, &CompositeKeyError{Type: t, Parts: len(values)}
	}
	return cast[T](t, props[0].Name, values[0])
}

// Format renders key values as "(Name1)=[Value1]; (Name2)=[Value2]".
func Format(kvs []KeyValue) string {
	var sb strings.Builder
	for i, kv := range kvs {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteByte('(')
		sb.WriteString(kv.Name)
		sb.WriteString(")=[")
		sb.WriteString(formatValue(kv.Value))
		sb.WriteByte(']')
	}
	return sb.String()
}

func entryType(entry Entry) reflect.Type {
	if t := entry.EntityType(); t != nil {
		return indirect(t)
	}
	return indirect(reflect.TypeOf(entry.Entity()))
}

func indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// fieldByName looks a field up by its exact Go name. Unexported fields and
// fields behind a nil embedded pointer are reported as missing.
func fieldByName(v reflect.Value, name string) (any, bool) {
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	sf, ok := v.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, false
	}
	fv, err := v.FieldByIndexErr(sf.Index)
	if err != nil {
		return nil, false
	}
	return fv.Interface(), true
}
