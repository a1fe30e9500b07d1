package cache

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Identity identifies one entity instance by its type and encoded key values.
// It is comparable and can be used as a map key.
type Identity struct {
	Type reflect.Type
	Key  string
}

// NewIdentity encodes key values with msgpack. Integers are encoded by
// value, so int(5) and int64(5) produce the same identity.
func NewIdentity(t reflect.Type, values []any) (Identity, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return Identity{}, ErrNilType
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(values); err != nil {
		return Identity{}, fmt.Errorf("encode key of %s: %w", t, err)
	}
	return Identity{Type: t, Key: buf.String()}, nil
}

func (id Identity) String() string {
	var values []any
	if err := msgpack.Unmarshal([]byte(id.Key), &values); err != nil {
		return fmt.Sprintf("%s(%x)", id.Type, id.Key)
	}
	return fmt.Sprintf("%s%v", id.Type, values)
}
