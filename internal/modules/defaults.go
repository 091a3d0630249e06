package modules

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Уровни параметров, от простых к экспертным.
const (
	LevelBasic        = "basic"
	LevelIntermediate = "intermediate"
	LevelExpert       = "expert"
	LevelAll          = "all"
)

// Levels — уровни в порядке вывода.
var Levels = []string{LevelBasic, LevelIntermediate, LevelExpert}

// Типы параметров в документе значений по умолчанию.
const (
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeString  = "string"
	TypeList    = "list"
)

// Param — описание одного параметра модуля.
type Param struct {
	Name     string   `yaml:"-"`
	Default  any      `yaml:"default"`
	Type     string   `yaml:"type"`
	ExpLevel string   `yaml:"explevel"`
	Min      *float64 `yaml:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty"`
	Short    string   `yaml:"short"`
	Long     string   `yaml:"long,omitempty"`
}

// Defaults — значения по умолчанию варианта модуля в порядке документа.
type Defaults struct {
	Params []Param
}

// LoadDefaults разбирает YAML-документ значений по умолчанию.
//
//	topX:
//	  default: 10
//	  type: integer
//	  min: 1
//	  explevel: basic
//	  short: Number of top unclustered models to analyse.
func LoadDefaults(data []byte) (*Defaults, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefaults, err)
	}

	d := &Defaults{}
	if len(root.Content) == 0 {
		return d, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidDefaults)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		name := doc.Content[i].Value

		var p Param
		if err := doc.Content[i+1].Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefaults, name, err)
		}
		p.Name = name

		if p.ExpLevel == "guru" {
			p.ExpLevel = LevelExpert
		}
		if !slices.Contains(Levels, p.ExpLevel) {
			return nil, fmt.Errorf("%w: %s: explevel %q", ErrInvalidDefaults, name, p.ExpLevel)
		}
		if err := p.Check(p.Default); err != nil {
			return nil, fmt.Errorf("%w: %s: default: %v", ErrInvalidDefaults, name, err)
		}

		d.Params = append(d.Params, p)
	}

	return d, nil
}

// MustLoadDefaults разбирает документ или паникует.
// Используется для встроенных документов при регистрации модулей.
func MustLoadDefaults(data []byte) *Defaults {
	d, err := LoadDefaults(data)
	if err != nil {
		panic(err)
	}
	return d
}

// Values возвращает значения по умолчанию всех параметров.
func (d *Defaults) Values() map[string]any {
	out := make(map[string]any, len(d.Params))
	for _, p := range d.Params {
		out[p.Name] = p.Default
	}
	return out
}

// Lookup ищет параметр по имени.
func (d *Defaults) Lookup(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// AtLevel возвращает параметры уровня level ("all" — все).
func (d *Defaults) AtLevel(level string) ([]Param, error) {
	if level != LevelAll && !slices.Contains(Levels, level) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	var out []Param
	for _, p := range d.Params {
		if level == LevelAll || p.ExpLevel == level {
			out = append(out, p)
		}
	}
	return out, nil
}

// Check проверяет тип и диапазон значения параметра.
func (p Param) Check(v any) error {
	var num float64
	switch p.Type {
	case TypeInteger:
		n, ok := asInt(v)
		if !ok {
			return fmt.Errorf("%w: %s must be an integer, got %v", ErrParamType, p.Name, v)
		}
		num = float64(n)
	case TypeFloat:
		f, ok := asFloat(v)
		if !ok {
			return fmt.Errorf("%w: %s must be a number, got %v", ErrParamType, p.Name, v)
		}
		num = f
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean, got %v", ErrParamType, p.Name, v)
		}
		return nil
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: %s must be a string, got %v", ErrParamType, p.Name, v)
		}
		return nil
	case TypeList:
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("%w: %s must be a list, got %v", ErrParamType, p.Name, v)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has unknown type %q", ErrParamType, p.Name, p.Type)
	}

	if p.Min != nil && num < *p.Min {
		return fmt.Errorf("%w: %s must be >= %v, got %v", ErrParamType, p.Name, *p.Min, v)
	}
	if p.Max != nil && num > *p.Max {
		return fmt.Errorf("%w: %s must be <= %v, got %v", ErrParamType, p.Name, *p.Max, v)
	}
	return nil
}

// Render возвращает TOML-фрагмент [stage.<name>] с параметрами уровня level.
//
// Каждый параметр предваряется комментарием с кратким описанием;
// при level == "all" параметры сгруппированы по уровням.
func (d *Defaults) Render(name, level string) (string, error) {
	levels := []string{level}
	if level == LevelAll {
		levels = Levels
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[stage.%s]\n", name)

	for _, lvl := range levels {
		params, err := d.AtLevel(lvl)
		if err != nil {
			return "", err
		}
		if len(params) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n# %s parameters\n", lvl)
		for _, p := range params {
			line, err := toml.Marshal(map[string]any{p.Name: p.Default})
			if err != nil {
				return "", fmt.Errorf("encode %s: %w", p.Name, err)
			}
			if p.Short != "" {
				fmt.Fprintf(&b, "# %s\n", p.Short)
			}
			b.Write(line)
		}
	}

	return b.String(), nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
