package prepare

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/recipe"
)

// Имена фиксированных подкаталогов проекта.
const (
	DataDirName  = "data"
	BeginDirName = "begin"
)

// Options — параметры подготовки.
type Options struct {
	// WorkDir — база для относительных путей (по умолчанию текущий каталог).
	WorkDir string

	// Restart — индекс стадии рецепта для рестарта.
	// При Restart > 0 существующий каталог проекта переиспользуется.
	Restart int

	// Force разрешает удалить project_dir, даже если он не похож на прошлый запуск.
	Force bool

	// Logger — логгер (по умолчанию slog.Default()).
	Logger *slog.Logger
}

// Staged — результат подготовки.
type Staged struct {
	// Workflow — рецепт с абсолютным project_dir; молекулы указывают на копии в begin/.
	Workflow *recipe.Workflow

	// Sources — абсолютные пути исходных файлов молекул.
	Sources map[string]string

	DataDir  string
	BeginDir string

	// Reused — каталог проекта взят от предыдущего запуска (рестарт).
	Reused bool
}

// BeginModels возвращает начальный набор моделей для первой стадии.
func (s *Staged) BeginModels() artifact.Collection {
	molecules := s.Workflow.Molecules()
	models := make(artifact.Collection, 0, len(molecules))
	for _, id := range s.Workflow.MoleculeIDs() {
		path := molecules[id]
		models = append(models, artifact.Model{
			FileName: filepath.Base(path),
			Path:     path,
			Molecule: id,
		})
	}
	return models
}

// SetupRun загружает рецепт, валидирует его и готовит каталог проекта.
//
// Последовательность:
//  1. Загрузка и валидация (без побочных эффектов)
//  2. Перевод путей в абсолютные
//  3. Удаление каталога прошлого запуска
//  4. Создание data/ и begin/ с копиями молекул
func SetupRun(recipePath string, r recipe.Resolver, opts Options) (*Staged, error) {
	raw, err := recipe.Load(recipePath)
	if err != nil {
		return nil, err
	}

	wf, err := recipe.Validate(raw, r)
	if err != nil {
		return nil, err
	}

	return Stage(wf, opts)
}

// Stage готовит каталог проекта для уже провалидированного рецепта.
func Stage(wf *recipe.Workflow, opts Options) (*Staged, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.WorkDir
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("%w: get working directory: %v", ErrStaging, err)
		}
		base = cwd
	}

	resolved := ResolvePaths(wf, base)

	if opts.Restart > 0 {
		return reuse(resolved, opts.Restart, logger)
	}

	if err := checkSources(resolved); err != nil {
		return nil, err
	}

	if err := RemoveFolder(resolved.ProjectDir(), opts.Force, logger); err != nil {
		return nil, err
	}

	return CreateBeginFiles(resolved, logger)
}

// ResolvePaths переводит project_dir и пути молекул в абсолютные относительно base.
// Функция чистая: файловую систему не трогает и возвращает новый Workflow.
func ResolvePaths(wf *recipe.Workflow, base string) *recipe.Workflow {
	molecules := wf.Molecules()
	for id, p := range molecules {
		molecules[id] = absFrom(base, p)
	}
	return wf.WithInput(absFrom(base, wf.ProjectDir()), molecules)
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// checkSources проверяет входные файлы до удаления чего-либо.
func checkSources(wf *recipe.Workflow) error {
	projectDir := wf.ProjectDir()
	molecules := wf.Molecules()
	byName := make(map[string]string, len(molecules))

	for _, id := range wf.MoleculeIDs() {
		path := molecules[id]

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %s", ErrMissingMolecule, id, path)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s: %s is not a regular file", ErrMissingMolecule, id, path)
		}

		if within(projectDir, path) {
			return fmt.Errorf("%w: molecule %s is inside project_dir and would be removed",
				recipe.ErrConfiguration, id)
		}

		name := filepath.Base(path)
		if other, ok := byName[name]; ok && other != path {
			return fmt.Errorf("%w: molecules %s and %s share file name %s in %s/",
				recipe.ErrConfiguration, path, other, name, DataDirName)
		}
		byName[name] = path
	}
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RemoveFolder удаляет каталог прошлого запуска, если он существует.
//
// Удаление необратимо и логируется на уровне WARN. Каталог, который
// не пуст и не содержит data/ или begin/, удаляется только при force.
func RemoveFolder(dir string, force bool, logger *slog.Logger) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrStaging, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %w: %s is not a directory", recipe.ErrConfiguration, ErrForeignProjectDir, dir)
	}

	if !force {
		ok, err := looksLikeRun(dir)
		if err != nil {
			return fmt.Errorf("%w: inspect %s: %v", ErrStaging, dir, err)
		}
		if !ok {
			return fmt.Errorf("%w: %w: %s", recipe.ErrConfiguration, ErrForeignProjectDir, dir)
		}
	}

	logger.Warn("project directory exists and will be REMOVED", "project_dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrStaging, dir, err)
	}
	return nil
}

// looksLikeRun возвращает true для пустого каталога или каталога с data/ или begin/.
func looksLikeRun(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return true, nil
	}
	for _, e := range entries {
		if e.IsDir() && (e.Name() == DataDirName || e.Name() == BeginDirName) {
			return true, nil
		}
	}
	return false, nil
}

// CreateBeginFiles создаёт project_dir, data/ и begin/ и копирует молекулы.
//
// data/ получает копию под исходным именем, begin/ — под именем <id>.pdb.
// Ошибка посреди копирования оставляет каталог как есть.
func CreateBeginFiles(wf *recipe.Workflow, logger *slog.Logger) (*Staged, error) {
	projectDir := wf.ProjectDir()
	dataDir := filepath.Join(projectDir, DataDirName)
	beginDir := filepath.Join(projectDir, BeginDirName)

	for _, dir := range []string{projectDir, dataDir, beginDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrStaging, dir, err)
		}
	}

	sources := wf.Molecules()
	begin := make(map[string]string, len(sources))

	for _, id := range wf.MoleculeIDs() {
		src := sources[id]

		if err := copyFile(src, filepath.Join(dataDir, filepath.Base(src))); err != nil {
			return nil, err
		}

		dst := filepath.Join(beginDir, id+".pdb")
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		begin[id] = dst

		logger.Debug("staged molecule", "molecule", id, "source", src, "begin", dst)
	}

	logger.Info("project directory prepared",
		"project_dir", projectDir,
		"molecules", len(begin),
	)

	return &Staged{
		Workflow: wf.WithInput(projectDir, begin),
		Sources:  sources,
		DataDir:  dataDir,
		BeginDir: beginDir,
	}, nil
}

// reuse собирает Staged из существующего каталога для рестарта.
func reuse(wf *recipe.Workflow, restart int, logger *slog.Logger) (*Staged, error) {
	projectDir := wf.ProjectDir()
	beginDir := filepath.Join(projectDir, BeginDirName)

	if info, err := os.Stat(beginDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s has no %s/ directory", ErrNotRestartable, projectDir, BeginDirName)
	}

	begin := make(map[string]string)
	for _, id := range wf.MoleculeIDs() {
		path := filepath.Join(beginDir, id+".pdb")
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotRestartable, path)
		}
		begin[id] = path
	}

	logger.Info("reusing project directory", "project_dir", projectDir, "restart", restart)

	return &Staged{
		Workflow: wf.WithInput(projectDir, begin),
		Sources:  wf.Molecules(),
		DataDir:  filepath.Join(projectDir, DataDirName),
		BeginDir: beginDir,
		Reused:   true,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrStaging, src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrStaging, dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%w: copy %s: %v", ErrStaging, src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrStaging, dst, err)
	}
	return nil
}
