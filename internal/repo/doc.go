// Package repo хранит историю запусков в PostgreSQL.
//
// Таблицы:
//   - runs — один запуск рецепта (статус, стадия ошибки, время)
//   - stages — записи о стадиях run, ключ (run_id, position)
//
// Recorder подключается к драйверу как observer и пишет историю
// по событиям run. Команда `stagerun history` читает её через RunRepo.
package repo
