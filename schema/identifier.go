package schema

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Identifier is the primary key of a row: a mapping from primary-key column
// name to normalized value.
type Identifier map[string]any

// Key returns a deterministic encoding of the identifier, suitable as a map
// key. Identifiers with equal normalized values have equal keys.
func (id Identifier) Key() string {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	values := make(map[string]any, len(id))
	for k, v := range id {
		values[k] = keyValue(v)
	}
	if err := enc.Encode(values); err != nil {
		return fmt.Sprint(values)
	}
	return buf.String()
}

// keyValue maps values that have several equivalent encodings to a single one.
func keyValue(v any) any {
	switch v := v.(type) {
	case uuid.UUID:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(v)
	case float64:
		if n, ok := floatToInt(v).(int64); ok {
			return n
		}
	}
	return v
}

// Equal reports whether both identifiers hold the same normalized values.
func (id Identifier) Equal(other Identifier) bool {
	if len(id) != len(other) {
		return false
	}
	for k, v := range id {
		ov, ok := other[k]
		if !ok || !EqualValues(v, ov) {
			return false
		}
	}
	return true
}

// Values returns the identifier as a plain column map, with values in their
// storage form.
func (id Identifier) Values() map[string]any {
	m := make(map[string]any, len(id))
	for k, v := range id {
		if u, ok := v.(uuid.UUID); ok {
			m[k] = u.String()
			continue
		}
		m[k] = v
	}
	return m
}

// String returns a readable representation, e.g. "id=1" or "a=1,b=2".
func (id Identifier) String() string {
	var buf bytes.Buffer
	for i, k := range slices.Sorted(maps.Keys(id)) {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%s=%v", k, id[k])
	}
	return buf.String()
}
