// Package artifact описывает наборы моделей, которые стадии передают друг другу.
//
// Набор бывает двух форм:
//   - Collection — конечный срез, можно читать многократно
//   - Stream — ленивая последовательность (iter.Seq), читается один раз
//
// Стадия, которой нужна материализованная коллекция, вызывает Materialize
// и получает ErrLazySet, если предыдущая стадия отдала Stream.
//
// После каждой успешной стадии набор сохраняется в io.json её каталога,
// откуда его читает рестарт.
package artifact
