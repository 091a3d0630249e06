package recipe

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// DefaultMethod — вариант модуля, если в секции стадии нет method.
const DefaultMethod = "default"

// StageRef — стадия из order после валидации.
type StageRef struct {
	// Position — индекс в order (с нуля).
	Position int

	// Name — имя модуля.
	Name string

	// Method — вариант модуля.
	Method string

	// Params — параметры пользователя из [stage.<name>] без ключа method.
	Params map[string]any
}

// Key возвращает пару name:method.
func (s StageRef) Key() string {
	return s.Name + ":" + s.Method
}

// DirName возвращает имя рабочего каталога стадии, например "02_seletop".
func (s StageRef) DirName() string {
	return fmt.Sprintf("%02d_%s", s.Position, s.Name)
}

// Workflow — провалидированный рецепт.
//
// Значение неизменяемое: методы возвращают копии.
// Новые пути задаются через WithInput, который возвращает новый Workflow.
type Workflow struct {
	stages     []StageRef
	projectDir string
	molecules  map[string]string
}

// Stages возвращает стадии в порядке выполнения.
func (w *Workflow) Stages() []StageRef {
	out := make([]StageRef, len(w.stages))
	for i, s := range w.stages {
		s.Params = MergeParams(s.Params)
		out[i] = s
	}
	return out
}

// Len возвращает количество стадий.
func (w *Workflow) Len() int {
	return len(w.stages)
}

// ProjectDir возвращает каталог проекта.
func (w *Workflow) ProjectDir() string {
	return w.projectDir
}

// Molecules возвращает копию отображения молекула → путь.
func (w *Workflow) Molecules() map[string]string {
	return maps.Clone(w.molecules)
}

// MoleculeIDs возвращает идентификаторы молекул по алфавиту.
func (w *Workflow) MoleculeIDs() []string {
	return slices.Sorted(maps.Keys(w.molecules))
}

// WithInput возвращает копию с другим каталогом проекта и путями молекул.
func (w *Workflow) WithInput(projectDir string, molecules map[string]string) *Workflow {
	return &Workflow{
		stages:     w.stages,
		projectDir: projectDir,
		molecules:  maps.Clone(molecules),
	}
}

// Parse разбирает TOML-рецепт в дерево map[string]any.
func Parse(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: err.Error(), Err: ErrMalformed}
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	return raw, nil
}

// Load читает и разбирает файл рецепта.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	return Parse(data)
}

// Encode сериализует дерево рецепта обратно в TOML.
func Encode(raw map[string]any) ([]byte, error) {
	data, err := toml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode recipe: %w", err)
	}
	return data, nil
}
