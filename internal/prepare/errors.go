package prepare

import "errors"

// Ошибки подготовки каталога проекта.
var (
	// ErrStaging — ошибка файловой системы при подготовке.
	// Каталог проекта может остаться частично созданным.
	ErrStaging = errors.New("staging failed")

	// ErrForeignProjectDir — project_dir существует и не похож на каталог прошлого запуска.
	ErrForeignProjectDir = errors.New("project_dir exists and is not a previous run directory")

	// ErrMissingMolecule — входной файл молекулы не найден.
	ErrMissingMolecule = errors.New("molecule file not found")

	// ErrNotRestartable — для рестарта нет каталога предыдущего запуска.
	ErrNotRestartable = errors.New("no previous run to restart from")
)
