package jsapi

import (
	"math"
	"testing"

	"github.com/cryguy/jsbridge/internal/core"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		v    core.Value
		desc string
		cell uint64
	}{
		{"undefined", core.Undefined, "u", 0},
		{"null", core.Null, "n", 0},
		{"true", core.True, "b:1", 0},
		{"false", core.False, "b:0", 0},
		{"int32", core.Int32Value(-7), "i:-7", 0},
		{"double", core.DoubleValue(1.5), "d:1.5", 0},
		{"nan", core.DoubleValue(math.NaN()), "d:NaN", 0},
		{"inf", core.DoubleValue(math.Inf(1)), "d:Infinity", 0},
		{"neg inf", core.DoubleValue(math.Inf(-1)), "d:-Infinity", 0},
		{"string", core.StringValue(42), "s:42", 42},
		{"symbol", core.SymbolValue(9), "y:9", 9},
		{"object", core.ObjectValue(1 << 32), "o:4294967296", 1 << 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encode(tt.v); got != tt.desc {
				t.Fatalf("encode = %q, want %q", got, tt.desc)
			}
			v, cell, err := decode(tt.desc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if v != tt.v {
				t.Errorf("decode = %v, want %v", v, tt.v)
			}
			if cell != tt.cell {
				t.Errorf("cell = %d, want %d", cell, tt.cell)
			}
		})
	}
}

func TestDecodeNegativeZero(t *testing.T) {
	v, _, err := decode("d:-0")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.IsDouble() || !math.Signbit(v.Double()) {
		t.Errorf("decode(d:-0) = %v, want -0", v)
	}
}

func TestDecodeScript(t *testing.T) {
	v, cell, err := decode("c:12")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.IsUndefined() || cell != 12 {
		t.Errorf("decode(c:12) = %v, %d", v, cell)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, d := range []string{"", "o", "o:", "o:0", "o:x", "i:1.5", "d:abc", "q:1"} {
		if _, _, err := decode(d); err == nil {
			t.Errorf("decode(%q) succeeded", d)
		}
	}
}

func TestJSString(t *testing.T) {
	tests := map[string]string{
		"plain":    `"plain"`,
		`q"uote`:   `"q\"uote"`,
		"line\nbr": `"line\nbr"`,
	}
	for in, want := range tests {
		if got := jsString(in); got != want {
			t.Errorf("jsString(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestEncodeList(t *testing.T) {
	got := encodeList([]core.Value{core.Int32Value(1), core.Null, core.ObjectValue(5)})
	if got != "i:1,n,o:5" {
		t.Errorf("encodeList = %q", got)
	}
	if encodeList(nil) != "" {
		t.Error("empty list should encode to empty string")
	}
}
