package schema

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Context is the schema of a persistence context: the set of entity types
// it knows and their metadata. It answers primary key lookups for the key
// cache and the change tracker.
type Context struct {
	namingStrategy NamingStrategy
	tagName        string
	autoRegister   bool
	conventionalID bool
	cacheSize      int
	logger         *slog.Logger

	parser *TagParser

	registered   map[reflect.Type]*EntityMeta
	registeredMu sync.RWMutex

	// Metadata of types introspected on demand when autoRegister is on.
	discovered *lru.Cache[reflect.Type, *EntityMeta]
}

type Option func(*Context)

// WithNamingStrategy sets the naming strategy for database column mapping
func WithNamingStrategy(strategy NamingStrategy) Option {
	return func(ctx *Context) { ctx.namingStrategy = strategy }
}

// WithTagName sets the struct tag name to use for database field mapping
func WithTagName(tagName string) Option {
	return func(ctx *Context) { ctx.tagName = tagName }
}

// WithAutoRegister lets the context introspect types that were never registered.
func WithAutoRegister(enabled bool) Option {
	return func(ctx *Context) { ctx.autoRegister = enabled }
}

// WithConventionalID treats a field named "ID" as the primary key when no
// field is tagged primary.
func WithConventionalID(enabled bool) Option {
	return func(ctx *Context) { ctx.conventionalID = enabled }
}

// WithCacheSize sets the LRU size for metadata of auto-registered types
func WithCacheSize(size int) Option {
	return func(ctx *Context) { ctx.cacheSize = size }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(ctx *Context) { ctx.logger = logger }
}

// New creates a schema context with configuration
func New(options ...Option) *Context {
	ctx := &Context{
		namingStrategy: DefaultNamingStrategy(),
		tagName:        "db",
		conventionalID: true,
		cacheSize:      256,
		registered:     make(map[reflect.Type]*EntityMeta, 64),
	}

	for _, opt := range options {
		opt(ctx)
	}

	if ctx.logger == nil {
		ctx.logger = slog.New(slog.DiscardHandler)
	}
	if ctx.cacheSize <= 0 {
		ctx.cacheSize = 256
	}
	ctx.parser = NewTagParser(ctx.tagName, ctx.namingStrategy)
	// lru.New only fails for a non-positive size.
	ctx.discovered, _ = lru.New[reflect.Type, *EntityMeta](ctx.cacheSize)

	return ctx
}

// Register adds entity types to the schema. Models may be values, pointers
// or reflect.Type handles of struct types.
func (c *Context) Register(models ...any) error {
	for _, model := range models {
		t, ok := model.(reflect.Type)
		if !ok {
			t = reflect.TypeOf(model)
		}

		meta, err := buildMeta(t, c.parser, c.namingStrategy, c.conventionalID)
		if err != nil {
			return fmt.Errorf("register %v: %w", t, err)
		}

		c.registeredMu.Lock()
		c.registered[meta.Type] = meta
		c.registeredMu.Unlock()

		c.logger.Debug("registered entity",
			"type", meta.Type.String(),
			"table", meta.TableName,
			"keys", len(meta.Keys))
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Context) MustRegister(models ...any) *Context {
	if err := c.Register(models...); err != nil {
		panic(err)
	}
	return c
}

// Entity returns the metadata of the entity type t.
func (c *Context) Entity(t reflect.Type) (*EntityMeta, error) {
	t = indirectType(t)
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidModel)
	}

	c.registeredMu.RLock()
	meta, ok := c.registered[t]
	c.registeredMu.RUnlock()
	if ok {
		return meta, nil
	}

	if !c.autoRegister {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, t)
	}

	if meta, ok := c.discovered.Get(t); ok {
		return meta, nil
	}

	meta, err := buildMeta(t, c.parser, c.namingStrategy, c.conventionalID)
	if err != nil {
		return nil, err
	}
	c.discovered.Add(t, meta)
	c.logger.Debug("introspected entity", "type", t.String(), "table", meta.TableName)
	return meta, nil
}

// PrimaryKey returns the ordered key properties of the entity type t.
func (c *Context) PrimaryKey(t reflect.Type) ([]KeyProperty, error) {
	meta, err := c.Entity(t)
	if err != nil {
		return nil, err
	}
	if len(meta.Keys) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, meta.Type)
	}
	return meta.Keys, nil
}

// Types returns the registered entity types.
func (c *Context) Types() []reflect.Type {
	c.registeredMu.RLock()
	defer c.registeredMu.RUnlock()

	types := make([]reflect.Type, 0, len(c.registered))
	for t := range c.registered {
		types = append(types, t)
	}
	return types
}
