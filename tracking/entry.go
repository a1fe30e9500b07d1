package tracking

import (
	"fmt"
	"math"
	"reflect"

	"github.com/Konsultn-Engineering/enorm-keys/cache"
	"github.com/Konsultn-Engineering/enorm-keys/schema"
)

// Entry is the change-tracking entry of one entity instance. Pending values
// set through SetCurrentValue are visible through CurrentValue but are only
// written to the instance by AcceptChanges.
type Entry struct {
	tracker *Tracker
	entity  any
	value   reflect.Value
	meta    *schema.EntityMeta
	keys    []schema.KeyProperty
	seq     uint64
	id      cache.Identity

	// Guarded by tracker.mu
	state    State
	original map[string]any
	pending  map[string]any
}

// Entity returns the tracked instance.
func (e *Entry) Entity() any {
	return e.entity
}

// EntityType returns the struct type of the tracked instance.
func (e *Entry) EntityType() reflect.Type {
	return e.meta.Type
}

func (e *Entry) State() State {
	e.tracker.mu.RLock()
	defer e.tracker.mu.RUnlock()
	return e.state
}

// CurrentValue returns the pending value of property if one is set, and
// the instance's field value otherwise.
func (e *Entry) CurrentValue(property string) (any, error) {
	e.tracker.mu.RLock()
	defer e.tracker.mu.RUnlock()
	return e.currentLocked(property)
}

func (e *Entry) currentLocked(property string) (any, error) {
	fm, ok := e.meta.Field(property)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, e.meta.Name, property)
	}
	if v, ok := e.pending[property]; ok {
		return v, nil
	}
	return e.value.FieldByIndex(fm.Index).Interface(), nil
}

// OriginalValue returns the value property had when the entity was tracked
// or when its changes were last accepted.
func (e *Entry) OriginalValue(property string) (any, error) {
	e.tracker.mu.RLock()
	defer e.tracker.mu.RUnlock()

	if _, ok := e.meta.Field(property); !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, e.meta.Name, property)
	}
	return e.original[property], nil
}

// SetCurrentValue records a pending value for property and marks an
// unchanged entity as modified.
func (e *Entry) SetCurrentValue(property string, value any) error {
	e.tracker.mu.Lock()
	defer e.tracker.mu.Unlock()

	if e.state == Detached {
		return ErrDetached
	}
	fm, ok := e.meta.Field(property)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownProperty, e.meta.Name, property)
	}
	cv, err := coerce(value, fm.Type)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", e.meta.Name, property, err)
	}

	e.pending[property] = cv.Interface()
	if e.state == Unchanged {
		e.state = Modified
	}
	return nil
}

// IsModified reports whether property has a pending value that differs
// from its original value.
func (e *Entry) IsModified(property string) bool {
	e.tracker.mu.RLock()
	defer e.tracker.mu.RUnlock()

	v, ok := e.pending[property]
	return ok && !reflect.DeepEqual(v, e.original[property])
}

// ModifiedProperties returns the names of properties with pending values,
// in field order.
func (e *Entry) ModifiedProperties() []string {
	e.tracker.mu.RLock()
	defer e.tracker.mu.RUnlock()

	var names []string
	for _, fm := range e.meta.Fields {
		if _, ok := e.pending[fm.Name]; ok {
			names = append(names, fm.Name)
		}
	}
	return names
}

// AcceptChanges writes pending values to the instance. Added and modified
// entries become unchanged, deleted entries are detached. A pending key
// change that collides with another tracked entity fails with
// ErrDuplicateKey and leaves the entry untouched.
func (e *Entry) AcceptChanges() error {
	e.tracker.mu.Lock()
	defer e.tracker.mu.Unlock()
	return e.acceptLocked()
}

func (e *Entry) acceptLocked() error {
	switch e.state {
	case Detached:
		return ErrDetached
	case Deleted:
		e.tracker.detachLocked(e)
		return nil
	}

	id, err := identityOf(e.meta.Type, e.keys, e.value, e.pending)
	if err != nil {
		return err
	}
	if other, ok := e.tracker.byKey[id]; ok && other != e {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, id)
	}

	for name, v := range e.pending {
		setField(e.value, e.meta.FieldMap[name], v)
	}
	clear(e.pending)
	e.original = e.snapshot()
	e.state = Unchanged

	if id != e.id {
		delete(e.tracker.byKey, e.id)
		e.tracker.byKey[id] = e
		e.id = id
	}
	return nil
}

// RejectChanges drops pending values. A modified entry becomes unchanged.
func (e *Entry) RejectChanges() {
	e.tracker.mu.Lock()
	defer e.tracker.mu.Unlock()

	clear(e.pending)
	if e.state == Modified {
		e.state = Unchanged
	}
}

func (e *Entry) snapshot() map[string]any {
	values := make(map[string]any, len(e.meta.Fields))
	for _, fm := range e.meta.Fields {
		values[fm.Name] = e.value.FieldByIndex(fm.Index).Interface()
	}
	return values
}

// coerce converts value to a reflect.Value assignable to a field of type t.
func coerce(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil for %s", ErrTypeMismatch, t)
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(t):
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	case isNumber(rv.Kind()) && isNumber(t.Kind()) && rv.Type().ConvertibleTo(t):
		if overflows(rv, t) {
			return reflect.Value{}, fmt.Errorf("%w: %v overflows %s", ErrTypeMismatch, value, t)
		}
		return rv.Convert(t), nil
	case rv.Kind() == reflect.String && t.Kind() == reflect.String:
		return rv.Convert(t), nil
	case t.Kind() == reflect.String:
		if s, ok := value.(fmt.Stringer); ok {
			return reflect.ValueOf(s.String()).Convert(t), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrTypeMismatch, rv.Type(), t)
}

func isNumber(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// overflows reports whether converting the number rv to t would lose its
// value. Floats converted to integers must be whole.
func overflows(rv reflect.Value, t reflect.Type) bool {
	out := reflect.New(t).Elem()
	switch {
	case rv.CanInt():
		n := rv.Int()
		switch {
		case out.CanInt():
			return out.OverflowInt(n)
		case out.CanUint():
			return n < 0 || out.OverflowUint(uint64(n))
		}
	case rv.CanUint():
		n := rv.Uint()
		switch {
		case out.CanInt():
			return n > math.MaxInt64 || out.OverflowInt(int64(n))
		case out.CanUint():
			return out.OverflowUint(n)
		}
	case rv.CanFloat():
		f := rv.Float()
		switch {
		case out.CanInt():
			return f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f))
		case out.CanUint():
			return f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f))
		case out.CanFloat():
			return out.OverflowFloat(f)
		}
	}
	return false
}
