// Package cli реализует команды stagerun.
//
// # Команды
//
//   - run RECIPE [--restart N]: подготовка каталога проекта и запуск стадий
//   - cfg -m MODULE [-l LEVEL] [-o FILE]: параметры модуля по умолчанию в TOML
//   - modules: список реестра
//   - history [--limit N]: сохранённые runs (нужна БД)
//   - events [--pattern P]: события run из брокера
//   - pp FILE... [--dry]: очистка PDB-файлов
//
// # App
//
// App хранит глобальные флаги (Settings), реестр модулей и лениво
// создаёт логгер и Output после разбора флагов cobra. Команды
// создаются фабриками NewXxxCmd(app).
//
// # Output
//
// Данные выводятся в stdout (таблица text/tabwriter или JSON с --json),
// сообщения для человека и ошибки — в stderr:
//
//	stagerun modules --json | jq '.[].name'
//
// # Коды выхода
//
// Ошибка конфигурации или упавшая стадия завершают процесс с кодом 1
// (ErrRunFailed для стадий). Greeting и closing message печатаются в stderr.
package cli
