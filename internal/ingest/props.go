package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/terroirdata/coopaudit/internal/tabular"
)

// PropString renders a feature property as a trimmed string key. JSON
// numbers that are whole render without a decimal part, so numeric and
// string identifiers compare equal.
func PropString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if tabular.IsIntegral(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return tabular.FormatFloat(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// PropFloat extracts a numeric property, accepting JSON numbers and
// numeric strings (decimal comma tolerated).
func PropFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		return tabular.ParseFloatSmart(val)
	default:
		return 0, false
	}
}
