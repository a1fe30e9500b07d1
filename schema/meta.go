package schema

import (
	"fmt"
	"reflect"
	"sort"
)

// indirectType strips pointer levels from t.
func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// buildMeta constructs the metadata for a struct type: its fields, lookup
// maps by Go name and column name, the table name and the ordered primary key.
func buildMeta(t reflect.Type, parser *TagParser, naming NamingStrategy, conventionalID bool) (*EntityMeta, error) {
	t = indirectType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v (expected struct)", ErrInvalidModel, t)
	}

	meta := &EntityMeta{
		Type:      t,
		Name:      t.Name(),
		FieldMap:  make(map[string]*FieldMeta, t.NumField()),
		ColumnMap: make(map[string]*FieldMeta, t.NumField()),
	}

	if tn, ok := reflect.New(t).Interface().(TableNamer); ok {
		meta.TableName = tn.TableName()
	} else {
		meta.TableName = naming.TableName(t.Name())
	}

	if err := collectFields(meta, t, parser); err != nil {
		return nil, err
	}

	meta.Keys = primaryKey(meta, conventionalID)
	return meta, nil
}

// collectFields records the exported fields visible on t in declaration
// order. Promotion follows reflect.VisibleFields: a shallower field shadows
// a deeper one and same-depth duplicates cancel out. Fields of structs
// embedded by pointer are not promoted, a nil embed has nowhere to read
// or write a key.
func collectFields(meta *EntityMeta, t reflect.Type, parser *TagParser) error {
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous && indirectType(f.Type).Kind() == reflect.Struct {
			continue
		}
		if !f.IsExported() || throughPointer(t, f.Index) {
			continue
		}

		parsedTag, err := parser.ParseTag(f.Name, f.Tag)
		if err != nil {
			return fmt.Errorf("error parsing tag for field %s: %w", f.Name, err)
		}
		if parsedTag.IsSkipped() {
			continue
		}

		gen, err := generatorFor(parsedTag, f.Type)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}

		fm := &FieldMeta{
			Name:      f.Name,
			DBName:    parsedTag.ColumnName,
			Type:      f.Type,
			Index:     f.Index,
			Tag:       parsedTag,
			Generator: gen,
		}
		meta.Fields = append(meta.Fields, fm)
		meta.FieldMap[f.Name] = fm
		meta.ColumnMap[fm.DBName] = fm
	}
	return nil
}

// throughPointer reports whether the field at index is reached through an
// embedded pointer.
func throughPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		t = t.Field(i).Type
		if t.Kind() == reflect.Ptr {
			return true
		}
	}
	return false
}

// primaryKey returns the ordered key properties of meta. Fields tagged
// primary come first by key_order, then by declaration order. Without any
// tagged field an "ID" field is used when conventionalID is set.
func primaryKey(meta *EntityMeta, conventionalID bool) []KeyProperty {
	var parts []*FieldMeta
	for _, fm := range meta.Fields {
		if fm.IsPrimary() {
			parts = append(parts, fm)
		}
	}

	if len(parts) == 0 && conventionalID {
		if fm, ok := meta.FieldMap["ID"]; ok {
			parts = append(parts, fm)
		}
	}

	sort.SliceStable(parts, func(i, j int) bool {
		oi, oj := parts[i].Tag.KeyOrder, parts[j].Tag.KeyOrder
		switch {
		case oi == 0 && oj == 0:
			return false
		case oi == 0:
			return false
		case oj == 0:
			return true
		default:
			return oi < oj
		}
	})

	keys := make([]KeyProperty, 0, len(parts))
	for _, fm := range parts {
		keys = append(keys, meta.KeyProperty(fm))
	}
	return keys
}

// KeyProperty describes fm as a key part of the entity.
func (m *EntityMeta) KeyProperty(fm *FieldMeta) KeyProperty {
	return KeyProperty{
		Name:          fm.Name,
		Column:        fm.DBName,
		DeclaringType: declaringType(m.Type, fm.Index),
		Index:         fm.Index,
	}
}

// declaringType walks the index path and returns the struct that declares the field.
func declaringType(t reflect.Type, index []int) reflect.Type {
	for _, i := range index[:len(index)-1] {
		t = indirectType(t.Field(i).Type)
	}
	return t
}
