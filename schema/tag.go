package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// ParsedTag represents the parsed struct tag configuration of one field.
type ParsedTag struct {
	ColumnName string // Database column name (explicit or derived from field name)
	Skip       bool   // Skip this field entirely (db:"-")

	NotNull bool
	Null    bool

	// Primary key configuration
	Primary  bool
	KeyOrder int // Position inside a composite key, 0 keeps declaration order

	// ID generation configuration
	AutoGenerate bool
	Generator    string // uuid, ulid, snowflake, nanoid
}

// TagParser parses struct tags and caches the results per field name and tag value.
type TagParser struct {
	tagName        string
	namingStrategy ColumnNamingStrategy
	cache          map[string]*ParsedTag
	cacheMu        sync.RWMutex
}

// NewTagParser creates a parser reading the given struct tag key.
func NewTagParser(tagName string, namingStrategy ColumnNamingStrategy) *TagParser {
	if tagName == "" {
		tagName = "db"
	}
	return &TagParser{
		tagName:        tagName,
		namingStrategy: namingStrategy,
		cache:          make(map[string]*ParsedTag, 128),
	}
}

// ParseTag parses the tag of a single struct field.
//
// Supported tag syntax:
//
//	`db:"column_name"`                  // Basic column mapping
//	`db:"column:custom_name"`           // Explicit column name
//	`db:"primary"`                      // Primary key part
//	`db:"id;primary;key_order:2"`       // Composite key part with explicit order
//	`db:"primary;generator:uuid"`       // Generated key
//	`db:"-"`                            // Skip field entirely
func (p *TagParser) ParseTag(fieldName string, tag reflect.StructTag) (*ParsedTag, error) {
	tagValue := tag.Get(p.tagName)
	if tagValue == "" {
		return &ParsedTag{ColumnName: p.namingStrategy.ColumnName(fieldName)}, nil
	}

	cacheKey := fieldName + ":" + tagValue
	p.cacheMu.RLock()
	if cached, ok := p.cache[cacheKey]; ok {
		p.cacheMu.RUnlock()
		return cached, nil
	}
	p.cacheMu.RUnlock()

	parsed, err := p.parseTagValue(fieldName, tagValue)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldName, err)
	}

	p.cacheMu.Lock()
	p.cache[cacheKey] = parsed
	p.cacheMu.Unlock()

	return parsed, nil
}

func (p *TagParser) parseTagValue(fieldName, tagValue string) (*ParsedTag, error) {
	if tagValue == "-" {
		return &ParsedTag{Skip: true}, nil
	}

	parsed := &ParsedTag{ColumnName: p.namingStrategy.ColumnName(fieldName)}

	for i, option := range strings.Split(tagValue, ";") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		if colonIdx := strings.IndexByte(option, ':'); colonIdx != -1 {
			key := strings.TrimSpace(option[:colonIdx])
			value := strings.TrimSpace(option[colonIdx+1:])
			if err := p.parseKeyValue(parsed, key, value); err != nil {
				return nil, err
			}
			continue
		}
		if !p.parseFlag(parsed, option) && i == 0 {
			// A leading bare word that is not a flag is the column name.
			parsed.ColumnName = option
		}
	}

	return parsed, nil
}

func (p *TagParser) parseFlag(tag *ParsedTag, flag string) bool {
	switch strings.ToLower(flag) {
	case "primary", "primary_key", "pk":
		tag.Primary = true
	case "auto_generate", "autogen":
		tag.AutoGenerate = true
	case "not null", "notnull", "not_null":
		tag.NotNull = true
	case "null", "nullable":
		tag.Null = true
	default:
		// Unknown flags are ignored for forward compatibility.
		return false
	}
	return true
}

func (p *TagParser) parseKeyValue(tag *ParsedTag, key, value string) error {
	switch key {
	case "column", "name":
		tag.ColumnName = value
	case "generator", "gen":
		tag.Generator = value
		tag.AutoGenerate = true
	case "key_order", "order":
		order, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid key_order value '%s': must be integer", value)
		}
		if order < 1 {
			return fmt.Errorf("invalid key_order value %d: must be positive", order)
		}
		tag.KeyOrder = order
		tag.Primary = true
	}
	return nil
}

// ClearCache removes all cached parsed tags.
func (p *TagParser) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	clear(p.cache)
}

// GetCacheSize returns the current number of cached parsed tags.
func (p *TagParser) GetCacheSize() int {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	return len(p.cache)
}

// IsSkipped returns true if this field should be skipped entirely.
func (tag *ParsedTag) IsSkipped() bool {
	return tag.Skip
}

// ShouldAutoGenerate returns true if this field should have auto-generated values.
func (tag *ParsedTag) ShouldAutoGenerate() bool {
	return tag.AutoGenerate || tag.Generator != ""
}

// IsNullable returns true if this field explicitly allows NULL values.
func (tag *ParsedTag) IsNullable() bool {
	return tag.Null && !tag.NotNull
}
