package schemacheck

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// openAPIFormats are the numeric formats OpenAPI adds on top of JSON-Schema.
var openAPIFormats = []*jsonschema.Format{
	{Name: "int32", Validate: intRange(math.MinInt32, math.MaxInt32)},
	{Name: "int64", Validate: intRange(math.MinInt64, math.MaxInt64)},
}

func intRange(lo, hi int64) func(v any) error {
	return func(v any) error {
		var n int64
		switch t := v.(type) {
		case json.Number:
			parsed, err := strconv.ParseInt(t.String(), 10, 64)
			if err != nil {
				return fmt.Errorf("%s is not an integer in range", t)
			}
			n = parsed
		case float64:
			if t != math.Trunc(t) || t < float64(lo) || t > float64(hi) {
				return fmt.Errorf("%v out of range", t)
			}
			return nil
		case int:
			n = int64(t)
		case int64:
			n = t
		default:
			return nil
		}
		if n < lo || n > hi {
			return fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
		}
		return nil
	}
}
