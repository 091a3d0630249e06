package workflow

import "errors"

// Ошибки драйвера.
var (
	// ErrRestartOutOfRange — индекс рестарта вне списка стадий.
	ErrRestartOutOfRange = errors.New("restart index out of range")

	// ErrMissingRestartInput — нет io.json стадии перед точкой рестарта.
	ErrMissingRestartInput = errors.New("missing output of the stage before restart")

	// ErrStagePanicked — стадия паниковала.
	ErrStagePanicked = errors.New("stage panicked")

	// ErrInterrupted — run прерван между стадиями (отмена контекста).
	ErrInterrupted = errors.New("run interrupted")
)
