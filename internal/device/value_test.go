package device

import "testing"

func TestValue_Accessors(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
		str  string
	}{
		{"bool", Bool(true), KindBool, "true"},
		{"uint64", Uint64(1_000_000), KindUint64, "1000000"},
		{"int32", Int32(-3), KindInt32, "-3"},
		{"list", List(1, 2, 3), KindList, "[1 2 3]"},
		{"zero value", Value{}, KindInvalid, "<invalid>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.v.Kind() != tt.kind {
				t.Errorf("Kind() = %v, want %v", tt.v.Kind(), tt.kind)
			}
			if tt.v.String() != tt.str {
				t.Errorf("String() = %q, want %q", tt.v.String(), tt.str)
			}
			if tt.v.IsValid() != (tt.kind != KindInvalid) {
				t.Errorf("IsValid() = %v", tt.v.IsValid())
			}
		})
	}
}

func TestValue_WrongAccessorReportsFalse(t *testing.T) {
	v := Uint64(0)
	if _, ok := v.AsBool(); ok {
		t.Error("AsBool on a Uint64 should report false")
	}
	if _, ok := v.AsList(); ok {
		t.Error("AsList on a Uint64 should report false")
	}
	if n, ok := v.AsUint64(); !ok || n != 0 {
		t.Errorf("AsUint64() = %d, %v; want 0, true", n, ok)
	}

	b := Bool(false)
	if got, ok := b.AsBool(); !ok || got {
		t.Errorf("AsBool() = %v, %v; want false, true", got, ok)
	}
}

func TestValue_ListIsCopied(t *testing.T) {
	src := []uint64{10, 20}
	v := List(src...)
	src[0] = 99

	got, _ := v.AsList()
	if got[0] != 10 {
		t.Errorf("List kept a reference to the caller's slice")
	}
	got[1] = 0
	again, _ := v.AsList()
	if again[1] != 20 {
		t.Errorf("AsList returned the internal slice")
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same bool", Bool(true), Bool(true), true},
		{"different bool", Bool(true), Bool(false), false},
		{"kind mismatch", Uint64(1), Int32(1), false},
		{"same list", List(1, 2), List(1, 2), true},
		{"list length", List(1, 2), List(1), false},
		{"invalid", Value{}, Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKey_KindAndParse(t *testing.T) {
	tests := []struct {
		key  Key
		kind Kind
	}{
		{KeySampleRate, KindUint64},
		{KeyRLE, KindBool},
		{KeyZero, KindBool},
		{KeyWorkMode, KindInt32},
		{KeyTimebase, KindUint64},
		{Key(999), KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			if got := tt.key.Kind(); got != tt.kind {
				t.Errorf("Kind() = %v, want %v", got, tt.kind)
			}
		})
	}

	for _, k := range Keys() {
		got, ok := ParseKey(k.String())
		if !ok || got != k {
			t.Errorf("ParseKey(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseKey("nonsense"); ok {
		t.Error("ParseKey should reject unknown names")
	}
}

func TestParseWorkMode(t *testing.T) {
	tests := []struct {
		in   string
		want WorkMode
		ok   bool
	}{
		{"logic", Logic, true},
		{" Analog ", Analog, true},
		{"DSO", Dso, true},
		{"scope", Dso, true},
		{"serial", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWorkMode(tt.in)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ParseWorkMode(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		hz   uint64
		want string
	}{
		{500, "500 Hz"},
		{1_000, "1 kHz"},
		{1_500, "1.5 kHz"},
		{100_000, "100 kHz"},
		{1_000_000, "1 MHz"},
		{2_500_000, "2.5 MHz"},
		{1_000_000_000, "1 GHz"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatRate(tt.hz); got != tt.want {
				t.Errorf("FormatRate(%d) = %q, want %q", tt.hz, got, tt.want)
			}
		})
	}
}
