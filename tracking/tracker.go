package tracking

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/Konsultn-Engineering/enorm-keys/cache"
	"github.com/Konsultn-Engineering/enorm-keys/schema"
)

// KeySource resolves the ordered key properties of an entity type.
// *cache.KeyCache implements it.
type KeySource interface {
	Properties(t reflect.Type) ([]schema.KeyProperty, error)
}

// Tracker tracks entity instances of one schema context. Every entity is
// tracked at most once by pointer and at most once by primary key.
type Tracker struct {
	schema *schema.Context
	keys   KeySource
	logger *slog.Logger

	mu      sync.RWMutex
	byPtr   map[any]*Entry
	byKey   map[cache.Identity]*Entry
	nextSeq uint64
}

type Option func(*Tracker)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithKeySource resolves primary keys through src instead of the struct
// tags of the schema context, e.g. a key cache over the postgres catalog.
func WithKeySource(src KeySource) Option {
	return func(t *Tracker) { t.keys = src }
}

// New creates a tracker for entities of schemaCtx.
func New(schemaCtx *schema.Context, opts ...Option) *Tracker {
	t := &Tracker{
		schema: schemaCtx,
		byPtr:  make(map[any]*Entry),
		byKey:  make(map[cache.Identity]*Entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	if t.keys == nil {
		t.keys = cache.NewKeyCache(schemaCtx, cache.WithLogger(t.logger))
	}
	return t
}

// Attach starts tracking entity as unchanged. Attaching an entity that is
// already tracked returns its existing entry.
func (t *Tracker) Attach(entity any) (*Entry, error) {
	return t.track(entity, Unchanged)
}

// Add starts tracking entity as added. Zero-valued key fields that have a
// generator are assigned a generated value first.
func (t *Tracker) Add(entity any) (*Entry, error) {
	return t.track(entity, Added)
}

func (t *Tracker) track(entity any, state State) (*Entry, error) {
	v, err := structValue(entity)
	if err != nil {
		return nil, err
	}

	meta, err := t.schema.Entity(v.Type())
	if err != nil {
		return nil, err
	}
	props, err := t.keys.Properties(meta.Type)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: %s", schema.ErrNoPrimaryKey, meta.Type)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byPtr[entity]; ok {
		return e, nil
	}

	// Generated keys are checked against the identity map before they are
	// written to the instance.
	var generated map[string]any
	if state == Added {
		if generated, err = generateKeys(meta, props, v); err != nil {
			return nil, err
		}
	}

	id, err := identityOf(meta.Type, props, v, generated)
	if err != nil {
		return nil, err
	}
	if _, ok := t.byKey[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, id)
	}
	for name, value := range generated {
		setField(v, meta.FieldMap[name], value)
	}

	e := &Entry{
		tracker: t,
		entity:  entity,
		value:   v,
		meta:    meta,
		keys:    props,
		state:   state,
		pending: make(map[string]any),
	}
	e.original = e.snapshot()

	t.nextSeq++
	e.seq = t.nextSeq
	e.id = id
	t.byPtr[entity] = e
	t.byKey[id] = e

	t.logger.Debug("entity tracked", "type", meta.Type.String(), "key", id.String(), "state", state.String())
	return e, nil
}

// Remove marks a tracked entity as deleted. An added entity that was never
// accepted is detached instead.
func (t *Tracker) Remove(entity any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byPtr[entity]
	if !ok {
		return ErrNotTracked
	}
	if e.state == Added {
		t.detachLocked(e)
		return nil
	}
	e.state = Deleted
	return nil
}

// Detach stops tracking entity and drops its pending changes.
func (t *Tracker) Detach(entity any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byPtr[entity]
	if !ok {
		return ErrNotTracked
	}
	t.detachLocked(e)
	return nil
}

func (t *Tracker) detachLocked(e *Entry) {
	delete(t.byPtr, e.entity)
	delete(t.byKey, e.id)
	clear(e.pending)
	e.state = Detached
	t.logger.Debug("entity detached", "type", e.meta.Type.String(), "key", e.id.String())
}

// Entry returns the entry of a tracked entity.
func (t *Tracker) Entry(entity any) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byPtr[entity]
	return e, ok
}

// Find returns the tracked entry of type typ whose key equals keyValues.
func (t *Tracker) Find(typ reflect.Type, keyValues ...any) (*Entry, bool) {
	id, err := cache.NewIdentity(typ, keyValues)
	if err != nil {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.byKey[id]
	return e, ok
}

// Entries returns all tracked entries in the order they were tracked.
func (t *Tracker) Entries() []*Entry {
	t.mu.RLock()
	entries := make([]*Entry, 0, len(t.byPtr))
	for _, e := range t.byPtr {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byPtr)
}

// AcceptAll accepts the pending changes of every entry.
func (t *Tracker) AcceptAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]*Entry, 0, len(t.byPtr))
	for _, e := range t.byPtr {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	for _, e := range entries {
		if err := e.acceptLocked(); err != nil {
			return err
		}
	}
	return nil
}

func structValue(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: got %T", ErrInvalidEntity, entity)
	}
	return v.Elem(), nil
}

// generateKeys returns generated values for the zero-valued key fields of
// v that have a generator. Nothing is written to v.
func generateKeys(meta *schema.EntityMeta, props []schema.KeyProperty, v reflect.Value) (map[string]any, error) {
	var generated map[string]any
	for _, k := range props {
		fm, ok := meta.FieldMap[k.Name]
		if !ok || fm.Generator == nil || !v.FieldByIndex(fm.Index).IsZero() {
			continue
		}
		value, err := fm.Generator.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate %s.%s: %w", meta.Name, fm.Name, err)
		}
		cv, err := coerce(value, fm.Type)
		if err != nil {
			return nil, fmt.Errorf("assign %s.%s: %w", meta.Name, fm.Name, err)
		}
		if generated == nil {
			generated = make(map[string]any, len(props))
		}
		generated[fm.Name] = cv.Interface()
	}
	return generated, nil
}

// identityOf encodes the key of v. Values in overrides take precedence over
// the fields of v.
func identityOf(t reflect.Type, props []schema.KeyProperty, v reflect.Value, overrides map[string]any) (cache.Identity, error) {
	values := make([]any, len(props))
	for i, k := range props {
		if value, ok := overrides[k.Name]; ok {
			values[i] = value
			continue
		}
		values[i] = v.FieldByIndex(k.Index).Interface()
	}
	return cache.NewIdentity(t, values)
}

func setField(v reflect.Value, fm *schema.FieldMeta, value any) {
	fv := v.FieldByIndex(fm.Index)
	if value == nil {
		fv.Set(reflect.Zero(fm.Type))
		return
	}
	fv.Set(reflect.ValueOf(value))
}
