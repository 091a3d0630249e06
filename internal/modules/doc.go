// Package modules содержит стадии пайплайна и их реестр.
//
// # Интерфейс Module
//
// Все стадии реализуют Module:
//
//	type Module interface {
//	    Info() Info
//	    Init(setup Setup) error
//	    ConfirmInstallation(ctx context.Context) error
//	    Execute(ctx context.Context, prev artifact.Set) error
//	    Export() (artifact.Set, error)
//	}
//
// Base даёт поведение по умолчанию: проверка установки ничего не делает,
// Export отдаёт входной набор без изменений. Ошибки стадия возвращает
// только через FinishWithError и InstallationError (StageError).
//
// # Registry
//
// Registry сопоставляет паре name:method фабрику и документ значений
// по умолчанию (defaults/*.yaml):
//
//	registry := modules.DefaultRegistry()
//	params, err := registry.ResolveParams("contactmap", "default", user)
//	mod, err := registry.New("contactmap", "default")
//
// Параметры собираются слоями: global.yaml < документ варианта < рецепт.
//
// # Стадии
//
//   - topoaa (topology) — по job на молекулу, пишет <id>_topo.pdb
//   - emscoring (scoring) — оценка по межцепочечным контактам, экспортирует поток
//   - seletop (selection) — select лучших моделей
//   - clustfcc (clustering) — кластеризация по доле общих контактов
//   - contactmap (analysis) — карты контактов по кластерам и topX моделям
//
// Стадии с fan-out создают jobs и выполняют их через RunJobs на ncores слотах.
package modules
