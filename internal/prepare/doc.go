// Package prepare готовит каталог проекта перед запуском стадий.
//
// Раскладка:
//
//	<project_dir>/
//	  data/    копии исходных молекул под исходными именами
//	  begin/   копии <id>.pdb, вход первой стадии
//
// Существующий project_dir удаляется целиком (WARN в логе).
// Каталог, не похожий на прошлый запуск, без --force не удаляется.
package prepare
