package schema

import (
	"strings"
	"unicode"

	pluralizer "github.com/gertd/go-pluralize"
)

var pluralizeClient = pluralizer.NewClient()

// NamingStrategy converts Go names to database names.
type NamingStrategy interface {
	ColumnNamingStrategy
	TableNamingStrategy
}

// ColumnNamingStrategy defines how Go field names are converted to database column names.
type ColumnNamingStrategy interface {
	ColumnName(fieldName string) string
}

// TableNamingStrategy defines how Go struct names are converted to database table names.
type TableNamingStrategy interface {
	TableName(structName string) string
}

// ColumnNamingType represents different column naming conventions.
type ColumnNamingType int

const (
	ColumnSnakeCase  ColumnNamingType = iota // user_id, first_name
	ColumnCamelCase                          // userId, firstName
	ColumnPascalCase                         // UserId, FirstName
)

// TableNamingType represents different table naming conventions.
type TableNamingType int

const (
	TableSnakeCasePlural   TableNamingType = iota // users, blog_posts
	TableSnakeCaseSingular                        // user, blog_post
	TablePascalCasePlural                         // Users, BlogPosts
)

type namingStrategy struct {
	column ColumnNamingType
	table  TableNamingType
}

// NewNamingStrategy combines a column and a table naming convention.
func NewNamingStrategy(column ColumnNamingType, table TableNamingType) NamingStrategy {
	return &namingStrategy{column: column, table: table}
}

// DefaultNamingStrategy returns snake_case columns with plural snake_case tables.
func DefaultNamingStrategy() NamingStrategy {
	return NewNamingStrategy(ColumnSnakeCase, TableSnakeCasePlural)
}

func (n *namingStrategy) ColumnName(fieldName string) string {
	switch n.column {
	case ColumnCamelCase:
		return toCamelCase(fieldName)
	case ColumnPascalCase:
		return toPascalCase(fieldName)
	default:
		return toSnakeCase(fieldName)
	}
}

func (n *namingStrategy) TableName(structName string) string {
	switch n.table {
	case TableSnakeCaseSingular:
		return toSnakeCase(structName)
	case TablePascalCasePlural:
		return pluralize(toPascalCase(structName))
	default:
		return pluralize(toSnakeCase(structName))
	}
}

// toSnakeCase converts any naming convention to snake_case.
func toSnakeCase(name string) string {
	if name == "" {
		return ""
	}

	switch name {
	case "ID":
		return "id"
	case "UUID":
		return "uuid"
	case "ULID":
		return "ulid"
	}

	if strings.Contains(name, "_") && !hasUpperCase(name) {
		return name
	}

	var result strings.Builder
	result.Grow(len(name) + 8)

	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			// aB -> a_b, a1B -> a1_b, ABc -> a_bc
			if unicode.IsLower(prev) || unicode.IsDigit(prev) ||
				(unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])) {
				result.WriteByte('_')
			}
		}
		result.WriteRune(unicode.ToLower(r))
	}

	return result.String()
}

func toCamelCase(name string) string {
	pascal := toPascalCase(name)
	if pascal == "" {
		return ""
	}
	runes := []rune(pascal)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func toPascalCase(name string) string {
	parts := strings.Split(toSnakeCase(name), "_")

	var result strings.Builder
	result.Grow(len(name))
	for _, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		result.WriteString(string(runes))
	}
	return result.String()
}

// pluralize converts the last word of a name to its plural form.
func pluralize(name string) string {
	if name == "" {
		return ""
	}
	idx := strings.LastIndexByte(name, '_')
	head, word := name[:idx+1], name[idx+1:]
	return head + preserveCase(word, pluralizeClient.Plural(word))
}

func hasUpperCase(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// preserveCase preserves the case pattern of the original string in the result.
func preserveCase(original, result string) string {
	if original == "" || result == "" {
		return result
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(result)
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(result)
	}
	if unicode.IsUpper(rune(original[0])) {
		return strings.ToUpper(result[:1]) + result[1:]
	}
	return result
}
