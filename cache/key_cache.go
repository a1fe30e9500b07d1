package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/Konsultn-Engineering/enorm-keys/schema"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrNilType is returned when a key lookup is made without a type.
var ErrNilType = errors.New("entity type is nil")

// MetadataProvider resolves the ordered primary key of an entity type.
// *schema.Context and the postgres catalog provider implement it.
type MetadataProvider interface {
	PrimaryKey(t reflect.Type) ([]schema.KeyProperty, error)
}

// KeyCache memoizes primary key properties per entity type. Entries are
// never evicted or replaced; concurrent misses on the same type may each
// ask the provider, and the first stored result wins.
type KeyCache struct {
	provider MetadataProvider
	entries  *xsync.MapOf[reflect.Type, []schema.KeyProperty]
	logger   *slog.Logger
}

type KeyCacheOption func(*KeyCache)

// WithLogger sets the structured logger used on cache misses.
func WithLogger(logger *slog.Logger) KeyCacheOption {
	return func(c *KeyCache) { c.logger = logger }
}

// NewKeyCache creates an empty cache in front of provider.
func NewKeyCache(provider MetadataProvider, opts ...KeyCacheOption) *KeyCache {
	c := &KeyCache{
		provider: provider,
		entries:  xsync.NewMapOf[reflect.Type, []schema.KeyProperty](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Properties returns the ordered key properties of t, asking the provider
// the first time t is seen. Pointer types share the entry of their element type.
func (c *KeyCache) Properties(t reflect.Type) ([]schema.KeyProperty, error) {
	if t == nil {
		return nil, ErrNilType
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if props, ok := c.entries.Load(t); ok {
		return props, nil
	}

	props, err := c.provider.PrimaryKey(t)
	if err != nil {
		return nil, fmt.Errorf("resolve primary key of %s: %w", t, err)
	}

	actual, loaded := c.entries.LoadOrStore(t, props)
	c.logger.Debug("key properties cached",
		"type", t.String(),
		"parts", len(actual),
		"raced", loaded)
	return actual, nil
}

// Warm resolves and caches the key properties of every given type.
func (c *KeyCache) Warm(types ...reflect.Type) error {
	for _, t := range types {
		if _, err := c.Properties(t); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of cached entity types.
func (c *KeyCache) Len() int {
	return c.entries.Size()
}

// Reset drops every cached entry.
func (c *KeyCache) Reset() {
	c.entries.Clear()
}
