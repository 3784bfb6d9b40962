package fieldcrypt

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Type converts one logical value type to and from its canonical byte form.
// ToBytes must be deterministic: equal values yield equal bytes, since the
// same bytes are both encrypted and digested.
type Type interface {
	Name() string
	ToBytes(v any) ([]byte, error)
	FromBytes(b []byte) (any, error)
}

// Built-in types.
var (
	Text     Type = stringType{name: "text"}
	Char     Type = stringType{name: "char"}
	Email    Type = stringType{name: "email"}
	Integer  Type = integerType{}
	Date     Type = dateType{}
	DateTime Type = dateTimeType{}
	Bytes    Type = bytesType{}
)

var registry = struct {
	sync.RWMutex
	types map[string]Type
}{types: make(map[string]Type)}

func init() {
	for _, t := range []Type{Text, Char, Email, Integer, Date, DateTime, Bytes} {
		RegisterType(t)
	}
}

// RegisterType makes t available to LookupType under t.Name(), replacing any
// type previously registered under that name.
func RegisterType(t Type) {
	registry.Lock()
	defer registry.Unlock()
	registry.types[t.Name()] = t
}

// LookupType returns the type registered under name.
func LookupType(name string) (Type, error) {
	registry.RLock()
	defer registry.RUnlock()
	t, ok := registry.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// TypeNames returns the registered type names, sorted.
func TypeNames() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.types))
	for name := range registry.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func invalidValue(t Type, v any) error {
	return fmt.Errorf("%w %s: %T", ErrInvalidValue, t.Name(), v)
}

// stringType stores UTF-8 text verbatim.
type stringType struct{ name string }

func (s stringType) Name() string { return s.name }

func (s stringType) ToBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case *string:
		if x != nil {
			return []byte(*x), nil
		}
	}
	return nil, invalidValue(s, v)
}

func (s stringType) FromBytes(b []byte) (any, error) {
	return string(b), nil
}

// integerType stores base-10 ASCII. Decodes to int64.
type integerType struct{}

func (integerType) Name() string { return "integer" }

func (t integerType) ToBytes(v any) ([]byte, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, invalidValue(t, v)
		}
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return nil, invalidValue(t, v)
		}
		n = int64(x)
	default:
		return nil, invalidValue(t, v)
	}
	return strconv.AppendInt(nil, n, 10), nil
}

func (t integerType) FromBytes(b []byte) (any, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidValue, t.Name(), err)
	}
	return n, nil
}

const dateLayout = "2006-01-02"

// dateType stores the calendar date of the value in its own location.
// Decodes to midnight UTC.
type dateType struct{}

func (dateType) Name() string { return "date" }

func (t dateType) ToBytes(v any) ([]byte, error) {
	tm, ok := v.(time.Time)
	if !ok {
		return nil, invalidValue(t, v)
	}
	if err := checkYear(t, tm); err != nil {
		return nil, err
	}
	return []byte(tm.Format(dateLayout)), nil
}

func (t dateType) FromBytes(b []byte) (any, error) {
	tm, err := time.ParseInLocation(dateLayout, string(b), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidValue, t.Name(), err)
	}
	return tm, nil
}

// dateTimeType stores RFC 3339 with nanoseconds, normalised to UTC so the
// same instant always has the same bytes.
type dateTimeType struct{}

func (dateTimeType) Name() string { return "datetime" }

func (t dateTimeType) ToBytes(v any) ([]byte, error) {
	tm, ok := v.(time.Time)
	if !ok {
		return nil, invalidValue(t, v)
	}
	tm = tm.UTC()
	if err := checkYear(t, tm); err != nil {
		return nil, err
	}
	return []byte(tm.Format(time.RFC3339Nano)), nil
}

// checkYear rejects years the four-digit layouts cannot parse back.
func checkYear(t Type, tm time.Time) error {
	if y := tm.Year(); y < 0 || y > 9999 {
		return fmt.Errorf("%w %s: year %d out of range 0000-9999", ErrInvalidValue, t.Name(), y)
	}
	return nil
}

func (t dateTimeType) FromBytes(b []byte) (any, error) {
	tm, err := time.Parse(time.RFC3339Nano, string(b))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrInvalidValue, t.Name(), err)
	}
	return tm.UTC(), nil
}

// bytesType stores opaque bytes verbatim.
type bytesType struct{}

func (bytesType) Name() string { return "bytes" }

func (t bytesType) ToBytes(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok || b == nil {
		return nil, invalidValue(t, v)
	}
	return copyBytes(b), nil
}

func (bytesType) FromBytes(b []byte) (any, error) {
	return copyBytes(b), nil
}
