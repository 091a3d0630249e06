package modules

import "fmt"

// IntParam возвращает целый параметр.
func IntParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not set", ErrParamType, key)
	}
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrParamType, key, v)
	}
	return n, nil
}

// FloatParam возвращает числовой параметр.
func FloatParam(params map[string]any, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is not set", ErrParamType, key)
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number, got %v", ErrParamType, key, v)
	}
	return f, nil
}

// BoolParam возвращает логический параметр.
func BoolParam(params map[string]any, key string) (bool, error) {
	v, ok := params[key]
	if !ok {
		return false, fmt.Errorf("%w: %s is not set", ErrParamType, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %v", ErrParamType, key, v)
	}
	return b, nil
}

// StringParam возвращает строковый параметр. Отсутствующий параметр — пустая строка.
func StringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %v", ErrParamType, key, v)
	}
	return s, nil
}

// NCores возвращает ограничение параллелизма стадии (не меньше 1).
func (b *Base) NCores() int {
	n, err := IntParam(b.setup.Params, "ncores")
	if err != nil || n < 1 {
		return 1
	}
	return n
}
