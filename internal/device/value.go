package device

import (
	"fmt"
	"strings"
)

// Kind identifies which member of a Value is populated.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindUint64
	KindInt32
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint64:
		return "uint64"
	case KindInt32:
		return "int32"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a configuration value returned by or written to a device.
// The zero Value is invalid; absence is reported separately by the
// query functions and never encoded as a zero Value.
type Value struct {
	kind Kind
	b    bool
	u    uint64
	i    int32
	list []uint64
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Uint64 returns an unsigned Value.
func Uint64(u uint64) Value { return Value{kind: KindUint64, u: u} }

// Int32 returns a signed Value.
func Int32(i int32) Value { return Value{kind: KindInt32, i: i} }

// List returns a list Value. The slice is copied.
func List(items ...uint64) Value {
	return Value{kind: KindList, list: append([]uint64(nil), items...)}
}

// Kind reports the populated member.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds any value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the boolean and whether v is a Bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsUint64 returns the unsigned value and whether v is a Uint64.
func (v Value) AsUint64() (uint64, bool) {
	return v.u, v.kind == KindUint64
}

// AsInt32 returns the signed value and whether v is an Int32.
func (v Value) AsInt32() (int32, bool) {
	return v.i, v.kind == KindInt32
}

// AsList returns a copy of the list and whether v is a List.
func (v Value) AsList() ([]uint64, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return append([]uint64(nil), v.list...), true
}

// Equal reports whether two values have the same kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindUint64:
		return v.u == o.u
	case KindInt32:
		return v.i == o.i
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindUint64:
		return fmt.Sprintf("%d", v.u)
	case KindInt32:
		return fmt.Sprintf("%d", v.i)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = fmt.Sprintf("%d", item)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "<invalid>"
	}
}
