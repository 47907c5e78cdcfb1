package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

// goValue renders a metadata value as a Go expression of the generated package
func goValue(v metadata.Value) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case int64:
		return fmt.Sprintf("int64(%d)", v)
	case float64:
		return fmt.Sprintf("float64(%s)", strconv.FormatFloat(v, 'g', -1, 64))
	case string:
		return strconv.Quote(v)
	case bool:
		return strconv.FormatBool(v)
	case metadata.Symbol:
		return fmt.Sprintf("Symbol(%q)", string(v))
	case metadata.Tuple:
		return "Tuple{" + goValues(v) + "}"
	case metadata.List:
		return "List{" + goValues(v) + "}"
	case metadata.Call:
		return fmt.Sprintf("Call{Name: %q, Args: []any{%s}}", v.Name, goValues(v.Args))
	default:
		// values decoded from JSON snapshots
		return fmt.Sprintf("%#v", v)
	}
}

func goValues(values []metadata.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = goValue(v)
	}
	return strings.Join(parts, ", ")
}
