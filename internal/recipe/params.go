package recipe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MergeParams сливает слои параметров в новую map.
//
// Слои перечисляются от низшего приоритета к высшему:
//
//	MergeParams(global, variantDefaults, user)
//
// Вложенные таблицы сливаются по ключам, остальные значения
// заменяются целиком. Входные map не изменяются.
func MergeParams(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				mergeInto(dstMap, srcMap)
				continue
			}
			nested := make(map[string]any, len(srcMap))
			mergeInto(nested, srcMap)
			dst[k] = nested
			continue
		}
		dst[k] = copyValue(v)
	}
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return MergeParams(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// NonNegativeInt приводит значение к неотрицательному int.
// Принимает целые, целые float и строки с числом.
func NonNegativeInt(v any) (int, error) {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, t)
		}
		// float64(math.MaxInt) округляется до 2^63, поэтому граница строгая
		if t < float64(math.MinInt) || t >= float64(math.MaxInt) {
			return 0, fmt.Errorf("%w: %v is out of range", ErrInvalidValue, t)
		}
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, t)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: %v (%T) is not an integer", ErrInvalidValue, v, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: minimum value is 0, got %d", ErrInvalidValue, n)
	}
	return n, nil
}
