// Package workflow выполняет стадии рецепта по порядку.
//
// Driver — конечный автомат над списком стадий:
//
//	NotStarted → RunningStage(r) → ... → RunningStage(n-1) → Completed
//	                      └─────────→ AbortedOnError(i)
//
// r — индекс рестарта: стадии до r не создаются, вход стадии r читается
// из io.json стадии r-1 (или берётся из begin/ при r == 0).
//
// Стадии выполняются строго последовательно; параллелизм есть только
// внутри стадии (scheduler). Ошибка стадии не выходит за пределы Driver:
// она логируется и фиксируется в domain.Run.
//
// Observer получает события run и стадий; через него подключаются
// метрики (telemetry), история (repo) и события (mq).
package workflow
