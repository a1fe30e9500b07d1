package schema

import (
	"reflect"
)

type EntityMeta struct {
	Type      reflect.Type
	Name      string
	TableName string
	Fields    []*FieldMeta
	FieldMap  map[string]*FieldMeta // Go field name -> FieldMeta
	ColumnMap map[string]*FieldMeta // Database column name -> FieldMeta
	Keys      []KeyProperty
}

// Field returns the field metadata for an exact Go field name.
func (m *EntityMeta) Field(name string) (*FieldMeta, bool) {
	fm, ok := m.FieldMap[name]
	return fm, ok
}

type FieldMeta struct {
	Name      string
	DBName    string
	Type      reflect.Type
	Index     []int
	Tag       *ParsedTag
	Generator IDGenerator
}

// IsPrimary reports whether the field takes part in the primary key.
func (f *FieldMeta) IsPrimary() bool {
	return f.Tag != nil && f.Tag.Primary
}

// KeyProperty describes one part of an entity's primary key.
// Slices of KeyProperty are shared between callers and must not be modified.
type KeyProperty struct {
	Name          string       // Go field name
	Column        string       // Database column name
	DeclaringType reflect.Type // Struct type that declares the field
	Index         []int        // Field index path for reflect.Value.FieldByIndex
}

func (k KeyProperty) String() string {
	return k.DeclaringType.Name() + "." + k.Name
}

type TableNamer interface {
	TableName() string
}
