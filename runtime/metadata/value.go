package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a metadata value attached to a field
type Value = any

// Symbol is a bare identifier used as a value, e.g. `meters`
type Symbol string

// Tuple is a fixed sequence of values, e.g. `(1, 4)`
type Tuple []Value

// List is a bracketed sequence of values, e.g. `[1, 2]`
type List []Value

// Call is a constructor-style value, e.g. `between(1, 4)`
type Call struct {
	Name string
	Args []Value
}

// MarshalJSON encodes a call as {"call": name, "args": [...]}
func (c Call) MarshalJSON() ([]byte, error) {
	args := c.Args
	if args == nil {
		args = []Value{}
	}
	return json.Marshal(struct {
		Call string  `json:"call"`
		Args []Value `json:"args"`
	}{c.Name, args})
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

// FormatValue renders a value in source syntax
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nothing"
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		s := strconv.FormatFloat(val, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEn") {
			s += ".0"
		}
		return s
	case string:
		return `"` + quoteEscaper.Replace(val) + `"`
	case bool:
		return strconv.FormatBool(val)
	case Symbol:
		return string(val)
	case Tuple:
		items := formatValues(val)
		if len(items) == 1 {
			return "(" + items[0] + ",)"
		}
		return "(" + strings.Join(items, ", ") + ")"
	case List:
		return "[" + strings.Join(formatValues(val), ", ") + "]"
	case Call:
		return val.Name + "(" + strings.Join(formatValues(val.Args), ", ") + ")"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatValues(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = FormatValue(v)
	}
	return out
}

// EqualValues reports whether two values are structurally equal
func EqualValues(a, b Value) bool {
	switch av := a.(type) {
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && equalSlices(av, bv)
	case List:
		bv, ok := b.(List)
		return ok && equalSlices(av, bv)
	case Call:
		bv, ok := b.(Call)
		return ok && av.Name == bv.Name && equalSlices(av.Args, bv.Args)
	default:
		return a == b
	}
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualValues(a[i], b[i]) {
			return false
		}
	}
	return true
}
