package backend

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/samber/lo"
)

var ErrMalformedScope = errors.New("malformed scope payload")

var scopePath = jp.MustParseString("$.scopeUserIds")

// ExtractScopeIDs reads the scope user ids of a scope-users payload.
// Entries are coerced to int64, numeric strings are accepted. Entries which
// are not finite integral numbers are dropped, the order is kept.
func ExtractScopeIDs(data []byte) ([]int64, error) {
	obj, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedScope, err)
	}
	res := scopePath.Get(obj)
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: no scopeUserIds", ErrMalformedScope)
	}
	list, ok := res[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: scopeUserIds is %T", ErrMalformedScope, res[0])
	}
	return lo.FilterMap(list, func(item any, _ int) (int64, bool) {
		return coerceID(item)
	}), nil
}

func coerceID(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return floatID(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatID(f)
	default:
		return 0, false
	}
}

func floatID(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
