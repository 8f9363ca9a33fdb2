package jsapi

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cryguy/jsbridge/internal/core"
)

// encode renders v as a descriptor literal understood by the prelude.
func encode(v core.Value) string {
	switch v.Type() {
	case core.TypeDouble:
		f := v.Double()
		switch {
		case math.IsNaN(f):
			return "d:NaN"
		case math.IsInf(f, 1):
			return "d:Infinity"
		case math.IsInf(f, -1):
			return "d:-Infinity"
		}
		return "d:" + strconv.FormatFloat(f, 'g', -1, 64)
	case core.TypeInt32:
		return "i:" + strconv.Itoa(int(v.Int32()))
	case core.TypeBoolean:
		if v.Bool() {
			return "b:1"
		}
		return "b:0"
	case core.TypeNull:
		return "n"
	case core.TypeString:
		return "s:" + strconv.FormatUint(v.Payload(), 10)
	case core.TypeSymbol:
		return "y:" + strconv.FormatUint(v.Payload(), 10)
	case core.TypeObject:
		return "o:" + strconv.FormatUint(v.Payload(), 10)
	default:
		return "u"
	}
}

// lit quotes the descriptor of v as a JavaScript string literal.
func lit(v core.Value) string {
	return jsString(encode(v))
}

func objLit(o core.ObjectPtr) string {
	return lit(core.ObjectValue(o))
}

func encodeList(vals []core.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = encode(v)
	}
	return strings.Join(parts, ",")
}

// decode parses a descriptor produced by the prelude. The returned cell
// id is 0 for primitives.
func decode(d string) (core.Value, uint64, error) {
	if d == "" {
		return core.Undefined, 0, fmt.Errorf("empty descriptor")
	}
	switch d[0] {
	case 'u':
		return core.Undefined, 0, nil
	case 'n':
		return core.Null, 0, nil
	}
	if len(d) < 2 || d[1] != ':' {
		return core.Undefined, 0, fmt.Errorf("malformed descriptor %q", d)
	}
	p := d[2:]
	switch d[0] {
	case 'b':
		return core.BoolValue(p == "1"), 0, nil
	case 'i':
		i, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return core.Undefined, 0, fmt.Errorf("int32 descriptor %q: %w", d, err)
		}
		return core.Int32Value(int32(i)), 0, nil
	case 'd':
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return core.Undefined, 0, fmt.Errorf("double descriptor %q: %w", d, err)
		}
		return core.DoubleValue(f), 0, nil
	case 's', 'y', 'o', 'c':
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil || id == 0 {
			return core.Undefined, 0, fmt.Errorf("cell descriptor %q", d)
		}
		switch d[0] {
		case 's':
			return core.StringValue(core.StringPtr(id)), id, nil
		case 'y':
			return core.SymbolValue(id), id, nil
		case 'c':
			// scripts are not values; callers read the id directly
			return core.Undefined, id, nil
		default:
			return core.ObjectValue(core.ObjectPtr(id)), id, nil
		}
	}
	return core.Undefined, 0, fmt.Errorf("unknown descriptor %q", d)
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// jsList renders names as a JavaScript array of string literals.
func jsList(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = jsString(n)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
