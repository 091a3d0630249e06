package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// IOFile — имя файла, в котором стадия сохраняет экспортированный набор.
const IOFile = "io.json"

// document — формат io.json.
type document struct {
	Kind   Kind    `json:"kind"`
	Models []Model `json:"models"`
}

// IOPath возвращает путь к io.json в каталоге стадии.
func IOPath(stageDir string) string {
	return filepath.Join(stageDir, IOFile)
}

// Save записывает набор в io.json каталога стадии.
// Stream вычитывается целиком; форма набора сохраняется в файле.
func Save(stageDir string, s Set) error {
	models, err := Drain(s)
	if err != nil {
		return err
	}
	if models == nil {
		models = []Model{}
	}

	data, err := json.MarshalIndent(document{Kind: s.Kind(), Models: models}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", IOFile, err)
	}

	if err := os.WriteFile(IOPath(stageDir), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", IOFile, err)
	}
	return nil
}

// Load читает io.json каталога стадии.
// Возвращает набор той же формы, что была сохранена.
func Load(stageDir string) (Set, error) {
	data, err := os.ReadFile(IOPath(stageDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoIO, stageDir)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IOFile, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", IOFile, err)
	}

	switch doc.Kind {
	case KindStream:
		return StreamOf(doc.Models), nil
	case KindCollection, "":
		return Collection(doc.Models), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
	}
}
