package recipe

import (
	"errors"
	"strings"
)

// ErrConfiguration — общая ошибка конфигурации.
// Любая ошибка валидации рецепта оборачивает её.
var ErrConfiguration = errors.New("configuration error")

// Ошибки валидации рецепта.
var (
	// ErrMalformed — файл рецепта не разбирается как TOML.
	ErrMalformed = errors.New("malformed recipe")

	// ErrMissingInput — нет секции [input].
	ErrMissingInput = errors.New("missing input section")

	// ErrMissingOrder — в [input] нет ключа order.
	ErrMissingOrder = errors.New("workflow does not specify the execution order")

	// ErrEmptyOrder — order пустой.
	ErrEmptyOrder = errors.New("execution order is empty")

	// ErrMissingProjectDir — в [input] нет project_dir.
	ErrMissingProjectDir = errors.New("missing project_dir")

	// ErrMissingStageSection — у стадии из order нет секции [stage.<name>].
	ErrMissingStageSection = errors.New("missing stage section")

	// ErrUnknownModule — пара name:method не найдена в реестре.
	ErrUnknownModule = errors.New("module not found in registry")

	// ErrInvalidParam — параметр стадии не описан модулем или неверного типа.
	ErrInvalidParam = errors.New("invalid stage parameter")

	// ErrInvalidValue — значение неподходящего типа или диапазона.
	ErrInvalidValue = errors.New("invalid value")
)

// ConfigError — ошибка конфигурации с контекстом.
type ConfigError struct {
	Section string // секция рецепта (input, input.order, stage.topoaa)
	Stage   string // пара name:method, если ошибка касается стадии
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(ErrConfiguration.Error())
	if e.Stage != "" {
		b.WriteString(": " + e.Stage)
	} else if e.Section != "" {
		b.WriteString(": [" + e.Section + "]")
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// Unwrap возвращает ErrConfiguration и базовую ошибку.
func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfiguration}
	}
	return []error{ErrConfiguration, e.Err}
}

// NewConfigError создаёт ошибку конфигурации для секции.
func NewConfigError(section, message string, err error) *ConfigError {
	return &ConfigError{
		Section: section,
		Message: message,
		Err:     err,
	}
}
