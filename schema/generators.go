package schema

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces values for key fields left zero when an entity is
// added to a tracker. Implementations must be safe for concurrent use.
type IDGenerator interface {
	Generate() (any, error)
	Type() string
	// Fits reports whether every generated value can be stored in a field
	// of type t without loss.
	Fits(t reflect.Type) bool
}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	ulidType = reflect.TypeOf(ulid.ULID{})
)

// UUIDGenerator generates random UUID v4 keys. String fields receive the
// canonical text form.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate uuid key: %w", err)
	}
	return id, nil
}

func (UUIDGenerator) Type() string { return "uuid" }

func (UUIDGenerator) Fits(t reflect.Type) bool {
	return t == uuidType || t.Kind() == reflect.String
}

// ULIDGenerator generates monotonic ULID keys, sortable by creation time.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return nil, fmt.Errorf("generate ulid key: %w", err)
	}
	return id, nil
}

func (g *ULIDGenerator) Type() string { return "ulid" }

func (g *ULIDGenerator) Fits(t reflect.Type) bool {
	return t == ulidType || t.Kind() == reflect.String
}

// SnowflakeGenerator generates 63-bit time ordered integer keys:
// 41 bits of milliseconds since 2023-01-01, 10 bits of node and 12 bits of
// sequence.
type SnowflakeGenerator struct {
	mu       sync.Mutex
	node     uint64
	sequence uint64
	lastMs   uint64
	epochMs  uint64
}

func NewSnowflakeGenerator(node uint64) *SnowflakeGenerator {
	return &SnowflakeGenerator{
		node:    node & 0x3FF,
		epochMs: uint64(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()),
	}
}

func (g *SnowflakeGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := uint64(time.Now().UnixMilli())
	if now < g.lastMs {
		return nil, fmt.Errorf("generate snowflake key: clock moved back %dms", g.lastMs-now)
	}

	if now == g.lastMs {
		g.sequence = (g.sequence + 1) & 0xFFF
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond.
			for now <= g.lastMs {
				now = uint64(time.Now().UnixMilli())
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = now

	return int64(((now - g.epochMs) << 22) | (g.node << 12) | g.sequence), nil
}

func (g *SnowflakeGenerator) Type() string { return "snowflake" }

// Fits accepts only 64-bit integer fields; narrower ones would truncate.
func (g *SnowflakeGenerator) Fits(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return t.Bits() >= 64
	}
	return false
}

// NanoIDGenerator generates random URL-safe string keys.
type NanoIDGenerator struct {
	size     int
	alphabet string
}

func NewNanoIDGenerator(size int, alphabet string) *NanoIDGenerator {
	if size <= 0 {
		size = 21
	}
	if alphabet == "" {
		alphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	}
	return &NanoIDGenerator{size: size, alphabet: alphabet}
}

func (g *NanoIDGenerator) Generate() (any, error) {
	buf := make([]byte, g.size)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate nanoid key: %w", err)
	}
	for i, b := range buf {
		buf[i] = g.alphabet[int(b)%len(g.alphabet)]
	}
	return string(buf), nil
}

func (g *NanoIDGenerator) Type() string { return "nanoid" }

func (g *NanoIDGenerator) Fits(t reflect.Type) bool {
	return t.Kind() == reflect.String
}

// GeneratorRegistry holds key generators by name.
type GeneratorRegistry struct {
	mu         sync.RWMutex
	generators map[string]IDGenerator
}

var defaultRegistry = NewGeneratorRegistry()

// fallbackOrder is tried in order for fields tagged auto_generate without a
// generator name; the first generator that fits the field type is used.
var fallbackOrder = []string{"uuid", "ulid", "snowflake"}

func NewGeneratorRegistry() *GeneratorRegistry {
	r := &GeneratorRegistry{generators: make(map[string]IDGenerator)}
	r.Register("uuid", UUIDGenerator{})
	r.Register("ulid", NewULIDGenerator())
	r.Register("snowflake", NewSnowflakeGenerator(1))
	r.Register("nanoid", NewNanoIDGenerator(21, ""))
	return r
}

func (r *GeneratorRegistry) Register(name string, generator IDGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = generator
}

func (r *GeneratorRegistry) Get(name string) (IDGenerator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[name]
	return gen, ok
}

func (r *GeneratorRegistry) Generate(name string) (any, error) {
	gen, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGenerator, name)
	}
	return gen.Generate()
}

// For returns the generator a key field of type t should use. An empty name
// picks the first fallback generator that fits t.
func (r *GeneratorRegistry) For(name string, t reflect.Type) (IDGenerator, error) {
	if name == "" {
		for _, candidate := range fallbackOrder {
			if gen, ok := r.Get(candidate); ok && gen.Fits(t) {
				return gen, nil
			}
		}
		return nil, fmt.Errorf("%w: no generator fits %s", ErrGeneratorMismatch, t)
	}

	gen, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGenerator, name)
	}
	if !gen.Fits(t) {
		return nil, fmt.Errorf("%w: %s cannot fill %s", ErrGeneratorMismatch, name, t)
	}
	return gen, nil
}

// RegisterGenerator adds a generator to the default registry. Types
// registered afterwards can name it in their tags.
func RegisterGenerator(name string, generator IDGenerator) {
	defaultRegistry.Register(name, generator)
}

func GenerateID(name string) (any, error) {
	return defaultRegistry.Generate(name)
}

func generatorFor(tag *ParsedTag, fieldType reflect.Type) (IDGenerator, error) {
	if !tag.ShouldAutoGenerate() {
		return nil, nil
	}
	return defaultRegistry.For(tag.Generator, fieldType)
}
