package pdb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ProcessedSuffix добавляется к имени очищенного файла.
const ProcessedSuffix = "_processed"

// ProcessedPath возвращает путь очищенного файла рядом с исходным.
func ProcessedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ProcessedSuffix + ext
}

// Preprocess проверяет PDB-файл и пишет очищенную копию в ProcessedPath.
// При dry файл не пишется. Возвращает путь результата и число записей координат.
func Preprocess(path string, dry bool) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read pdb: %w", err)
	}

	if _, err := Parse(bytes.NewReader(data)); err != nil {
		return "", 0, fmt.Errorf("%s: %w", path, err)
	}

	out := ProcessedPath(path)
	if dry {
		kept, err := Clean(io.Discard, bytes.NewReader(data))
		return out, kept, err
	}

	f, err := os.Create(out)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", out, err)
	}
	kept, err := Clean(f, bytes.NewReader(data))
	if err != nil {
		f.Close()
		return "", kept, err
	}
	return out, kept, f.Close()
}
