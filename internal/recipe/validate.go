package recipe

import (
	"fmt"
	"strings"
)

// Resolver проверяет, что пара name:method есть в реестре модулей.
type Resolver interface {
	Has(name, method string) bool
}

// ParamChecker проверяет параметры стадии по описанию модуля.
// Resolver может дополнительно реализовать его.
type ParamChecker interface {
	CheckParams(name, method string, params map[string]any) error
}

// Validate выполняет полную валидацию рецепта.
//
// Проверяет:
//   - Наличие [input] и order
//   - project_dir и molecules
//   - Секцию [stage.<name>] для каждой стадии из order
//   - Наличие name:method в реестре
//   - Параметры стадий, если r реализует ParamChecker
//
// Validate ничего не пишет на диск.
func Validate(raw map[string]any, r Resolver) (*Workflow, error) {
	order, err := OrderExists(raw)
	if err != nil {
		return nil, err
	}

	input := raw["input"].(map[string]any)

	projectDir, err := projectDirOf(input)
	if err != nil {
		return nil, err
	}

	molecules, err := moleculesOf(input)
	if err != nil {
		return nil, err
	}

	stages, err := ValidateModules(raw, order, r)
	if err != nil {
		return nil, err
	}

	return &Workflow{
		stages:     stages,
		projectDir: projectDir,
		molecules:  molecules,
	}, nil
}

// OrderExists проверяет наличие [input] и order и возвращает order.
func OrderExists(raw map[string]any) ([]string, error) {
	inputVal, ok := raw["input"]
	if !ok {
		return nil, NewConfigError("input", "recipe should have an 'input' section", ErrMissingInput)
	}
	input, ok := inputVal.(map[string]any)
	if !ok {
		return nil, NewConfigError("input", "'input' must be a table", ErrInvalidValue)
	}

	orderVal, ok := input["order"]
	if !ok {
		return nil, NewConfigError("input.order", "workflow does not specify the execution 'order'", ErrMissingOrder)
	}

	items, ok := orderVal.([]any)
	if !ok {
		return nil, NewConfigError("input.order", "'order' must be an array of stage names", ErrInvalidValue)
	}
	if len(items) == 0 {
		return nil, NewConfigError("input.order", "", ErrEmptyOrder)
	}

	order := make([]string, len(items))
	for i, item := range items {
		name, ok := item.(string)
		if !ok || name == "" {
			return nil, NewConfigError("input.order",
				fmt.Sprintf("element %d is not a stage name", i), ErrInvalidValue)
		}
		order[i] = name
	}
	return order, nil
}

// ValidateModules проверяет секции стадий и их наличие в реестре.
//
// Имя может встречаться в order несколько раз. Если секция задана
// массивом таблиц ([[stage.<name>]]), k-е вхождение берёт k-ю таблицу;
// одиночная таблица общая для всех вхождений.
func ValidateModules(raw map[string]any, order []string, r Resolver) ([]StageRef, error) {
	var stageSection map[string]any
	if v, ok := raw["stage"]; ok {
		stageSection, ok = v.(map[string]any)
		if !ok {
			return nil, NewConfigError("stage", "'stage' must be a table", ErrInvalidValue)
		}
	}

	seen := make(map[string]int, len(order))
	stages := make([]StageRef, 0, len(order))

	for pos, name := range order {
		occurrence := seen[name]
		seen[name]++

		params, err := stageParams(stageSection, name, occurrence)
		if err != nil {
			return nil, err
		}

		method := DefaultMethod
		if v, ok := params["method"]; ok {
			m, ok := v.(string)
			if !ok || m == "" {
				return nil, NewConfigError("stage."+name, "'method' must be a non-empty string", ErrInvalidValue)
			}
			method = m
		}

		ref := StageRef{Position: pos, Name: name, Method: method}
		if !r.Has(name, method) {
			return nil, &ConfigError{
				Section: "stage." + name,
				Stage:   ref.Key(),
				Message: "method not found in the module registry",
				Err:     ErrUnknownModule,
			}
		}

		ref.Params = MergeParams(params)
		delete(ref.Params, "method")

		if pc, ok := r.(ParamChecker); ok {
			if err := pc.CheckParams(name, method, ref.Params); err != nil {
				return nil, &ConfigError{
					Section: "stage." + name,
					Stage:   ref.Key(),
					Message: err.Error(),
					Err:     fmt.Errorf("%w: %w", ErrInvalidParam, err),
				}
			}
		}

		stages = append(stages, ref)
	}

	return stages, nil
}

// stageParams находит таблицу параметров для occurrence-го вхождения стадии.
func stageParams(section map[string]any, name string, occurrence int) (map[string]any, error) {
	v, ok := section[name]
	if !ok {
		return nil, NewConfigError("stage."+name, "stage has no parameter section", ErrMissingStageSection)
	}

	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []any:
		if len(t) == 1 {
			occurrence = 0
		}
		if occurrence >= len(t) {
			return nil, NewConfigError(fmt.Sprintf("stage.%s[%d]", name, occurrence),
				"not enough parameter tables for repeated stage", ErrMissingStageSection)
		}
		table, ok := t[occurrence].(map[string]any)
		if !ok {
			return nil, NewConfigError("stage."+name, "stage section must be a table", ErrInvalidValue)
		}
		return table, nil
	default:
		return nil, NewConfigError("stage."+name, "stage section must be a table", ErrInvalidValue)
	}
}

func projectDirOf(input map[string]any) (string, error) {
	v, ok := input["project_dir"]
	if !ok {
		return "", NewConfigError("input.project_dir", "", ErrMissingProjectDir)
	}
	dir, ok := v.(string)
	if !ok || strings.TrimSpace(dir) == "" {
		return "", NewConfigError("input.project_dir", "'project_dir' must be a non-empty string", ErrInvalidValue)
	}
	return dir, nil
}

func moleculesOf(input map[string]any) (map[string]string, error) {
	molecules := make(map[string]string)

	v, ok := input["molecules"]
	if !ok {
		return molecules, nil
	}
	table, ok := v.(map[string]any)
	if !ok {
		return nil, NewConfigError("input.molecules", "'molecules' must be a table", ErrInvalidValue)
	}

	for id, pathVal := range table {
		if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
			return nil, NewConfigError("input.molecules",
				fmt.Sprintf("invalid molecule id %q", id), ErrInvalidValue)
		}
		path, ok := pathVal.(string)
		if !ok || path == "" {
			return nil, NewConfigError("input.molecules",
				fmt.Sprintf("molecule %q must map to a file path", id), ErrInvalidValue)
		}
		molecules[id] = path
	}
	return molecules, nil
}
