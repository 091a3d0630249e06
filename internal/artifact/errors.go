package artifact

import "errors"

// Ошибки наборов артефактов.
var (
	// ErrLazySet — требуется материализованная коллекция, получен Stream.
	ErrLazySet = errors.New("artifact set is a lazy stream")

	// ErrNilSet — набор отсутствует.
	ErrNilSet = errors.New("artifact set is nil")

	// ErrUnknownKind — неизвестная форма набора.
	ErrUnknownKind = errors.New("unknown artifact set kind")

	// ErrNoIO — в каталоге стадии нет io.json.
	ErrNoIO = errors.New("stage io file not found")
)
