package schema

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type User struct {
	ID        uint64    `db:"id;primary"`
	FirstName string    `db:"first_name"`
	Email     string    `db:"column:email_address"`
	CreatedAt time.Time `db:"created_at"`
	secret    string
}

type OrderLine struct {
	Line    int    `db:"line;key_order:2"`
	OrderID int64  `db:"order_id;key_order:1"`
	Product string `db:"product"`
}

type Conventional struct {
	ID   int
	Name string
}

type Keyless struct {
	Name string
}

type Audited struct {
	Version int `db:"primary;key_order:2"`
}

type Document struct {
	Audited
	Code  string `db:"code;primary;key_order:1"`
	Title string
	Skip  string `db:"-"`
}

type Session struct {
	Token uuid.UUID `db:"primary;auto_generate"`
}

type Event struct {
	ID ulid.ULID `db:"primary;generator:ulid"`
}

type Person struct {
	ID int `db:"primary"`
}

type Stamp struct {
	ID      int `db:"primary"`
	Created time.Time
}

type Owner struct {
	ID   int
	Name string
}

// Both embeds declare ID at the same depth, so neither is visible.
type Shared struct {
	Stamp
	Owner
	Code string `db:"primary"`
}

type Linked struct {
	*Audited
	Ref     string `db:"primary"`
	Version string
}

type Ledger struct {
	Number string `db:"primary"`
}

func (Ledger) TableName() string { return "gl_ledger" }

// =========================================================================
// Context Tests
// =========================================================================

func TestContextPrimaryKey(t *testing.T) {
	ctx := New().MustRegister(User{}, &OrderLine{}, Conventional{}, Keyless{}, Document{})

	tests := []struct {
		name        string
		model       any
		expectError error
		expected    []string
	}{
		{name: "SingleTagged", model: User{}, expected: []string{"ID"}},
		{name: "PointerType", model: &User{}, expected: []string{"ID"}},
		{name: "CompositeOrdered", model: OrderLine{}, expected: []string{"OrderID", "Line"}},
		{name: "ConventionalID", model: Conventional{}, expected: []string{"ID"}},
		{name: "EmbeddedPart", model: Document{}, expected: []string{"Code", "Version"}},
		{name: "NoPrimaryKey", model: Keyless{}, expectError: ErrNoPrimaryKey},
		{name: "Unregistered", model: Session{}, expectError: ErrEntityNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := ctx.PrimaryKey(reflect.TypeOf(tt.model))
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, keys)
				return
			}

			require.NoError(t, err)
			names := make([]string, len(keys))
			for i, k := range keys {
				names[i] = k.Name
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestContextKeyPropertyDetails(t *testing.T) {
	ctx := New().MustRegister(Document{}, User{})

	keys, err := ctx.PrimaryKey(reflect.TypeOf(Document{}))
	require.NoError(t, err)
	require.Len(t, keys, 2)

	assert.Equal(t, "code", keys[0].Column)
	assert.Equal(t, reflect.TypeOf(Document{}), keys[0].DeclaringType)
	assert.Equal(t, "version", keys[1].Column)
	assert.Equal(t, reflect.TypeOf(Audited{}), keys[1].DeclaringType)
	assert.Equal(t, []int{0, 0}, keys[1].Index)
	assert.Equal(t, "Audited.Version", keys[1].String())

	keys, err = ctx.PrimaryKey(reflect.TypeOf(User{}))
	require.NoError(t, err)
	assert.Equal(t, "id", keys[0].Column)
}

func TestContextConventionalIDDisabled(t *testing.T) {
	ctx := New(WithConventionalID(false)).MustRegister(Conventional{})

	_, err := ctx.PrimaryKey(reflect.TypeOf(Conventional{}))
	assert.ErrorIs(t, err, ErrNoPrimaryKey)
}

func TestContextAutoRegister(t *testing.T) {
	ctx := New(WithAutoRegister(true), WithCacheSize(2))

	meta1, err := ctx.Entity(reflect.TypeOf(Session{}))
	require.NoError(t, err)
	meta2, err := ctx.Entity(reflect.TypeOf(&Session{}))
	require.NoError(t, err)
	assert.True(t, meta1 == meta2, "Expected same instance from cache")

	_, err = ctx.Entity(reflect.TypeOf(42))
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestContextRegisterErrors(t *testing.T) {
	ctx := New()

	err := ctx.Register("not a struct")
	assert.ErrorIs(t, err, ErrInvalidModel)

	type badOrder struct {
		ID int `db:"primary;key_order:zero"`
	}
	err = ctx.Register(badOrder{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "key_order")
}

func TestContextEntityMeta(t *testing.T) {
	ctx := New().MustRegister(User{}, Ledger{}, Person{}, Document{})

	meta, err := ctx.Entity(reflect.TypeOf(User{}))
	require.NoError(t, err)
	assert.Equal(t, "users", meta.TableName)
	assert.Len(t, meta.Fields, 4, "unexported fields are ignored")

	fm, ok := meta.Field("Email")
	require.True(t, ok)
	assert.Equal(t, "email_address", fm.DBName)
	assert.Same(t, fm, meta.ColumnMap["email_address"])

	meta, err = ctx.Entity(reflect.TypeOf(Ledger{}))
	require.NoError(t, err)
	assert.Equal(t, "gl_ledger", meta.TableName)

	meta, err = ctx.Entity(reflect.TypeOf(Person{}))
	require.NoError(t, err)
	assert.Equal(t, "people", meta.TableName)

	meta, err = ctx.Entity(reflect.TypeOf(Document{}))
	require.NoError(t, err)
	_, skipped := meta.Field("Skip")
	assert.False(t, skipped)

	assert.Len(t, ctx.Types(), 4)
}

func TestEmbeddedFieldVisibility(t *testing.T) {
	ctx := New().MustRegister(Shared{}, Linked{})

	meta, err := ctx.Entity(reflect.TypeOf(Shared{}))
	require.NoError(t, err)
	_, ok := meta.Field("ID")
	assert.False(t, ok, "same-depth duplicates are ambiguous")
	_, ok = meta.Field("Created")
	assert.True(t, ok)
	_, ok = meta.Field("Name")
	assert.True(t, ok)
	require.Len(t, meta.Keys, 1)
	assert.Equal(t, "Code", meta.Keys[0].Name)

	meta, err = ctx.Entity(reflect.TypeOf(Linked{}))
	require.NoError(t, err)
	require.Len(t, meta.Keys, 1, "fields behind an embedded pointer are not promoted")
	assert.Equal(t, "Ref", meta.Keys[0].Name)
	version, ok := meta.Field("Version")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(""), version.Type, "outer field shadows the embedded one")
	assert.Len(t, meta.Fields, 2)
}

func TestContextConcurrency(t *testing.T) {
	const numGoroutines = 10

	ctx := New(WithAutoRegister(true))

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	startBarrier := make(chan struct{})

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startBarrier

			keys, err := ctx.PrimaryKey(reflect.TypeOf(OrderLine{}))
			if err != nil {
				errs <- err
				return
			}
			if len(keys) != 2 {
				errs <- errors.New("unexpected key count")
			}
		}()
	}

	close(startBarrier)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent lookup error: %v", err)
	}
}

// =========================================================================
// Generator Tests
// =========================================================================

func TestFieldGenerators(t *testing.T) {
	ctx := New().MustRegister(Session{}, Event{}, User{})

	meta, err := ctx.Entity(reflect.TypeOf(Session{}))
	require.NoError(t, err)
	gen := meta.FieldMap["Token"].Generator
	require.NotNil(t, gen)
	assert.Equal(t, "uuid", gen.Type())

	meta, err = ctx.Entity(reflect.TypeOf(Event{}))
	require.NoError(t, err)
	gen = meta.FieldMap["ID"].Generator
	require.NotNil(t, gen)
	value, err := gen.Generate()
	require.NoError(t, err)
	assert.IsType(t, ulid.ULID{}, value)

	meta, err = ctx.Entity(reflect.TypeOf(User{}))
	require.NoError(t, err)
	assert.Nil(t, meta.FieldMap["ID"].Generator)
}

func TestGeneratorFitsFieldType(t *testing.T) {
	type narrow struct {
		ID int16 `db:"primary;auto_generate"`
	}
	type narrowSnowflake struct {
		ID int32 `db:"primary;generator:snowflake"`
	}
	type wrongKind struct {
		ID int64 `db:"primary;generator:nanoid"`
	}
	type unknown struct {
		ID string `db:"primary;generator:hilo"`
	}
	type wide struct {
		ID int `db:"primary;auto_generate"`
	}

	tests := []struct {
		name     string
		model    any
		expected error
	}{
		{"NarrowIntFallback", narrow{}, ErrGeneratorMismatch},
		{"NarrowIntSnowflake", narrowSnowflake{}, ErrGeneratorMismatch},
		{"StringGeneratorOnInt", wrongKind{}, ErrGeneratorMismatch},
		{"UnknownGenerator", unknown{}, ErrUnknownGenerator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Register(tt.model)
			assert.ErrorIs(t, err, tt.expected)
		})
	}

	meta, err := New(WithAutoRegister(true)).Entity(reflect.TypeOf(wide{}))
	require.NoError(t, err)
	require.NotNil(t, meta.FieldMap["ID"].Generator)
	assert.Equal(t, "snowflake", meta.FieldMap["ID"].Generator.Type())
}

func TestGeneratorFits(t *testing.T) {
	tests := []struct {
		generator IDGenerator
		fits      []any
		rejects   []any
	}{
		{UUIDGenerator{}, []any{uuid.UUID{}, ""}, []any{int64(0), ulid.ULID{}}},
		{NewULIDGenerator(), []any{ulid.ULID{}, ""}, []any{uuid.UUID{}, uint64(0)}},
		{NewSnowflakeGenerator(3), []any{int64(0), uint64(0), int(0)}, []any{int32(0), uint16(0), ""}},
		{NewNanoIDGenerator(0, ""), []any{""}, []any{int64(0), uuid.UUID{}}},
	}

	for _, tt := range tests {
		t.Run(tt.generator.Type(), func(t *testing.T) {
			for _, v := range tt.fits {
				assert.True(t, tt.generator.Fits(reflect.TypeOf(v)), "%T", v)
			}
			for _, v := range tt.rejects {
				assert.False(t, tt.generator.Fits(reflect.TypeOf(v)), "%T", v)
			}
		})
	}
}

func TestGeneratorRegistry(t *testing.T) {
	for _, name := range []string{"uuid", "ulid", "snowflake", "nanoid"} {
		t.Run(name, func(t *testing.T) {
			first, err := GenerateID(name)
			require.NoError(t, err)
			second, err := GenerateID(name)
			require.NoError(t, err)
			assert.NotEqual(t, first, second)
		})
	}

	_, err := GenerateID("missing")
	assert.Error(t, err)
}

// =========================================================================
// Tag and Naming Tests
// =========================================================================

func TestParseTag(t *testing.T) {
	parser := NewTagParser("db", DefaultNamingStrategy())

	tests := []struct {
		name     string
		field    string
		tag      reflect.StructTag
		expected ParsedTag
	}{
		{"NoTag", "FirstName", ``, ParsedTag{ColumnName: "first_name"}},
		{"PlainColumn", "ID", `db:"user_id"`, ParsedTag{ColumnName: "user_id"}},
		{"BareFlag", "ID", `db:"primary"`, ParsedTag{ColumnName: "id", Primary: true}},
		{"ColumnThenFlag", "ID", `db:"uid;primary"`, ParsedTag{ColumnName: "uid", Primary: true}},
		{"KeyOrderImpliesPrimary", "Line", `db:"key_order:3"`, ParsedTag{ColumnName: "line", Primary: true, KeyOrder: 3}},
		{"Generator", "ID", `db:"pk;gen:nanoid"`, ParsedTag{ColumnName: "id", Primary: true, AutoGenerate: true, Generator: "nanoid"}},
		{"Skip", "Cache", `db:"-"`, ParsedTag{Skip: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parser.ParseTag(tt.field, tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *parsed)
		})
	}

	assert.Equal(t, len(tests)-1, parser.GetCacheSize())
	parser.ClearCache()
	assert.Equal(t, 0, parser.GetCacheSize())
}

func TestCustomTagName(t *testing.T) {
	type row struct {
		Code string `orm:"primary"`
		ID   int
	}

	ctx := New(WithTagName("orm")).MustRegister(row{})
	keys, err := ctx.PrimaryKey(reflect.TypeOf(row{}))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "Code", keys[0].Name)
}

func TestNamingStrategies(t *testing.T) {
	assert.Equal(t, "user_id", toSnakeCase("UserID"))
	assert.Equal(t, "http_server", toSnakeCase("HTTPServer"))
	assert.Equal(t, "already_snake", toSnakeCase("already_snake"))
	assert.Equal(t, "userId", toCamelCase("UserID"))
	assert.Equal(t, "BlogPost", toPascalCase("blog_post"))

	assert.Equal(t, "blog_posts", DefaultNamingStrategy().TableName("BlogPost"))
	assert.Equal(t, "blog_post", NewNamingStrategy(ColumnSnakeCase, TableSnakeCaseSingular).TableName("BlogPost"))
	assert.Equal(t, "firstName", NewNamingStrategy(ColumnCamelCase, TableSnakeCasePlural).ColumnName("FirstName"))
	assert.Equal(t, "FirstName", NewNamingStrategy(ColumnPascalCase, TableSnakeCasePlural).ColumnName("first_name"))
}
