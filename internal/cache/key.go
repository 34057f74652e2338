package cache

import "strings"

// Key builds a stable cache key from an operation name and its parameters,
// e.g. Key("stock_detail", "005930") == "stock_detail_005930".
func Key(op string, params ...string) string {
	if len(params) == 0 {
		return op
	}
	var b strings.Builder
	b.WriteString(op)
	for _, p := range params {
		b.WriteByte('_')
		b.WriteString(p)
	}
	return b.String()
}
