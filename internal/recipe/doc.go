// Package recipe загружает и валидирует TOML-рецепт запуска.
//
// Рецепт:
//
//	[input]
//	order = ["topoaa", "emscoring", "seletop"]
//	project_dir = "run1"
//
//	[input.molecules]
//	m1 = "data/receptor.pdb"
//
//	[stage.topoaa]
//
//	[stage.seletop]
//	select = 10
//
// Validate возвращает неизменяемый Workflow или ConfigError,
// который оборачивает ErrConfiguration. Валидация не трогает файловую систему.
//
// MergeParams собирает параметры стадии из слоёв
// (глобальные значения < значения варианта < пользовательские).
package recipe
