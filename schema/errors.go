package schema

import "errors"

var (
	// ErrEntityNotFound is returned when a type is not part of the schema.
	ErrEntityNotFound = errors.New("entity type not found in schema")
	// ErrNoPrimaryKey is returned when an entity declares no primary key.
	ErrNoPrimaryKey = errors.New("entity type has no primary key")
	// ErrInvalidModel is returned for anything that is not a struct or pointer to struct.
	ErrInvalidModel = errors.New("invalid model type")
	// ErrUnknownGenerator is returned when a tag names an unregistered generator.
	ErrUnknownGenerator = errors.New("unknown key generator")
	// ErrGeneratorMismatch is returned when a generator cannot fill the field it is tagged on.
	ErrGeneratorMismatch = errors.New("key generator does not fit field type")
)
