package tracking

import "errors"

// State is the change-tracking state of an entity.
type State int

const (
	Detached State = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidEntity   = errors.New("entity must be a non-nil pointer to struct")
	ErrNotTracked      = errors.New("entity is not tracked")
	ErrDuplicateKey    = errors.New("another instance with the same key is already tracked")
	ErrUnknownProperty = errors.New("unknown property")
	ErrTypeMismatch    = errors.New("value type does not match property")
	ErrDetached        = errors.New("entry is detached")
)
