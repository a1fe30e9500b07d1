package enormkeys

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/Konsultn-Engineering/enorm-keys/cache"
	"github.com/Konsultn-Engineering/enorm-keys/keys"
	"github.com/Konsultn-Engineering/enorm-keys/schema"
	"github.com/Konsultn-Engineering/enorm-keys/tracking"
)

type KeyValue = keys.KeyValue

// Keys bundles a schema context, its key cache, a change tracker and a key
// extractor that share one logger.
type Keys struct {
	*keys.Extractor

	Schema  *schema.Context
	Cache   *cache.KeyCache
	Tracker *tracking.Tracker
}

type options struct {
	logger   *slog.Logger
	schema   []schema.Option
	provider func(*schema.Context) cache.MetadataProvider
}

type Option func(*options)

// WithLogger sets the structured logger of every component
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSchemaOptions configures the schema context
func WithSchemaOptions(opts ...schema.Option) Option {
	return func(o *options) { o.schema = append(o.schema, opts...) }
}

// WithProvider replaces the schema context as the source of primary keys,
// e.g. with a postgres catalog provider built on the same schema context.
func WithProvider(build func(*schema.Context) cache.MetadataProvider) Option {
	return func(o *options) { o.provider = build }
}

// New wires the components together.
func New(opts ...Option) *Keys {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	schemaCtx := schema.New(append([]schema.Option{schema.WithLogger(o.logger)}, o.schema...)...)

	var provider cache.MetadataProvider = schemaCtx
	if o.provider != nil {
		provider = o.provider(schemaCtx)
	}
	keyCache := cache.NewKeyCache(provider, cache.WithLogger(o.logger))

	return &Keys{
		Extractor: keys.New(keyCache, keys.WithLogger(o.logger)),
		Schema:    schemaCtx,
		Cache:     keyCache,
		Tracker:   tracking.New(schemaCtx, tracking.WithLogger(o.logger), tracking.WithKeySource(keyCache)),
	}
}

// Register adds entity types to the schema.
func (k *Keys) Register(models ...any) error {
	return k.Schema.Register(models...)
}

// KeyString formats the key of a tracked entity, including pending changes.
func (k *Keys) KeyString(entity any) (string, error) {
	entry, err := k.entry(entity)
	if err != nil {
		return "", err
	}
	return k.String(entry)
}

// KeyValues returns the key of a tracked entity, including pending changes.
func (k *Keys) KeyValues(entity any) ([]KeyValue, error) {
	entry, err := k.entry(entity)
	if err != nil {
		return nil, err
	}
	return k.Values(entry)
}

func (k *Keys) entry(entity any) (*tracking.Entry, error) {
	if isNil(entity) {
		return nil, fmt.Errorf("%w: entity is nil", keys.ErrInvalidArgument)
	}
	entry, ok := k.Tracker.Entry(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %T", tracking.ErrNotTracked, entity)
	}
	return entry, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
