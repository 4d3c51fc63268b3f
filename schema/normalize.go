package schema

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayouts are the textual time formats returned by SQL drivers that do
// not parse time columns themselves.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToStorage converts an in-memory value to its normalized stored form by
// applying the column transformer and normalizing the result.
func (c *Column) ToStorage(v any) (any, error) {
	if c.Transformer != nil {
		tv, err := c.Transformer.To(v)
		if err != nil {
			return nil, fmt.Errorf("graft: transform column %q: %w", c.Name, err)
		}
		v = tv
	}
	return c.Normalize(v), nil
}

// FromStorage converts a stored value to its in-memory form.
func (c *Column) FromStorage(v any) (any, error) {
	v = c.Normalize(v)
	if c.Transformer != nil {
		tv, err := c.Transformer.From(v)
		if err != nil {
			return nil, fmt.Errorf("graft: transform column %q: %w", c.Name, err)
		}
		return tv, nil
	}
	return v, nil
}

// Normalize converts a value to the canonical representation of the column
// type, so values read from different drivers compare equal to values set in
// memory: integers are widened to int64, floats to float64, booleans are
// parsed from 0/1, times are parsed and converted to UTC, UUIDs are parsed
// from strings or bytes and JSON documents are decoded into generic values.
// Values that cannot be converted are returned as is.
func (c *Column) Normalize(v any) any {
	if v == nil {
		return nil
	}
	if vr, ok := v.(driver.Valuer); ok {
		if _, isUUID := v.(uuid.UUID); !isUUID {
			dv, err := vr.Value()
			if err != nil {
				return v
			}
			if dv == nil {
				return nil
			}
			v = dv
		}
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		if c.Type != TypeJSON {
			return c.Normalize(rv.Elem().Interface())
		}
	}
	switch c.Type {
	case TypeBool:
		return normalizeBool(v)
	case TypeInt, TypeUint:
		return normalizeInt(v)
	case TypeFloat:
		return normalizeFloat(v)
	case TypeString, TypeEnum:
		return normalizeString(v)
	case TypeBytes:
		switch v := v.(type) {
		case string:
			return []byte(v)
		case []byte:
			return bytes.Clone(v)
		}
	case TypeTime:
		return normalizeTime(v)
	case TypeUUID:
		return normalizeUUID(v)
	case TypeJSON:
		return normalizeJSON(v)
	}
	return v
}

func normalizeBool(v any) any {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	case []byte:
		if b, err := strconv.ParseBool(string(v)); err == nil {
			return b
		}
	default:
		if n, ok := normalizeInt(v).(int64); ok {
			return n != 0
		}
	}
	return v
}

func normalizeInt(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return uintToInt(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return uintToInt(v)
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case []byte:
		if n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64); err == nil {
			return n
		}
	}
	return v
}

func uintToInt(v uint64) any {
	if v > math.MaxInt64 {
		return v
	}
	return int64(v)
}

func floatToInt(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
		return int64(f)
	}
	return f
}

func normalizeFloat(v any) any {
	switch v := v.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case []byte:
		if f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64); err == nil {
			return f
		}
	default:
		switch n := normalizeInt(v).(type) {
		case int64:
			return float64(n)
		case uint64:
			return float64(n)
		}
	}
	return v
}

func normalizeString(v any) any {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

func normalizeTime(v any) any {
	switch v := v.(type) {
	case time.Time:
		return v.UTC()
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	case int64:
		return time.Unix(v, 0).UTC()
	}
	return v
}

func parseTime(s string) any {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return s
}

func normalizeUUID(v any) any {
	switch v := v.(type) {
	case uuid.UUID:
		return v
	case [16]byte:
		return uuid.UUID(v)
	case string:
		if u, err := uuid.Parse(v); err == nil {
			return u
		}
	case []byte:
		if len(v) == 16 {
			if u, err := uuid.FromBytes(v); err == nil {
				return u
			}
		}
		if u, err := uuid.ParseBytes(v); err == nil {
			return u
		}
	}
	return v
}

// normalizeJSON decodes stored documents and round-trips in-memory values
// through encoding/json, so both sides end up as maps, slices, strings,
// float64s, bools or nil.
func normalizeJSON(v any) any {
	var raw []byte
	switch v := v.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		raw = b
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return v
	}
	return doc
}

// EqualValues reports whether two normalized values are equal.
func EqualValues(a, b any) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && a.Equal(bt)
	case []byte:
		bb, ok := b.([]byte)
		return ok && bytes.Equal(a, bb)
	case int64:
		switch b := b.(type) {
		case int64:
			return a == b
		case float64:
			return float64(a) == b
		}
		return false
	case float64:
		switch b := b.(type) {
		case float64:
			return a == b
		case int64:
			return a == float64(b)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// StorageValue converts a normalized value to a value accepted by
// database/sql drivers. JSON documents are encoded and UUIDs are written in
// their canonical textual form.
func (c *Column) StorageValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case TypeJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("graft: encode json column %q: %w", c.Name, err)
		}
		return string(b), nil
	case TypeUUID:
		if u, ok := v.(uuid.UUID); ok {
			return u.String(), nil
		}
	}
	return v, nil
}
