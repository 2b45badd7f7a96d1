package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// elements extracts the string list of a containment condition.
func elements(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case pq.StringArray:
		return []string(x)
	case string:
		return []string{x}
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(x)}
	}
}

// formatValue renders a filter value the way PostgREST expects it in a query string.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	case []string:
		return arrayLiteral(x)
	case pq.StringArray:
		return arrayLiteral(x)
	default:
		return fmt.Sprint(x)
	}
}

// arrayLiteral renders a Postgres array literal with every element quoted.
func arrayLiteral(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// reservedChars cannot appear bare inside a PostgREST logic tree.
const reservedChars = ",.:()\" \\"

// quoteReserved wraps a value in double quotes when it contains characters
// with meaning inside or=(...) and and=(...) expressions.
func quoteReserved(s string) string {
	if !strings.ContainsAny(s, reservedChars) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
