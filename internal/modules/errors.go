package modules

import (
	"errors"
	"fmt"
)

// Ошибки стадий.
var (
	// ErrInstallation — внешняя зависимость стадии отсутствует или непригодна.
	ErrInstallation = errors.New("installation error")

	// ErrStageExecution — стадия не смогла получить корректный результат.
	ErrStageExecution = errors.New("stage execution error")

	// ErrLazyInput — стадии нужна коллекция, а предыдущая стадия отдала ленивый поток.
	ErrLazyInput = errors.New("stage cannot come after one that produced a lazy stream")

	// ErrEmptyInput — на вход пришёл пустой набор.
	ErrEmptyInput = errors.New("no input models")
)

// Ошибки реестра и параметров.
var (
	// ErrUnknownModule — пара name:method не зарегистрирована.
	ErrUnknownModule = errors.New("module not found")

	// ErrUnknownLevel — неизвестный уровень параметров.
	ErrUnknownLevel = errors.New("unknown expertise level")

	// ErrUnknownParam — параметр не описан в значениях по умолчанию модуля.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrParamType — значение параметра не того типа или вне диапазона.
	ErrParamType = errors.New("invalid parameter value")

	// ErrInvalidDefaults — документ значений по умолчанию не разбирается.
	ErrInvalidDefaults = errors.New("invalid defaults document")
)

// StageError — ошибка стадии, которую видит драйвер.
type StageError struct {
	Position int    // позиция стадии в order
	Stage    string // name:method
	Kind     error  // ErrInstallation или ErrStageExecution
	Err      error  // причина
}

// Error реализует интерфейс error.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v: %v", e.Position, e.Stage, e.Kind, e.Err)
}

// Unwrap возвращает вид ошибки и причину.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
