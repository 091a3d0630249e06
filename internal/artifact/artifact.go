package artifact

import (
	"iter"
	"path/filepath"
	"slices"
	"strings"
)

// Kind — форма набора артефактов.
type Kind string

const (
	// KindCollection — конечная материализованная коллекция.
	KindCollection Kind = "collection"

	// KindStream — ленивая последовательность, читается один раз.
	KindStream Kind = "stream"
)

// Model — одна модель (PDB-файл) с метаданными.
type Model struct {
	// FileName — имя файла без каталога.
	FileName string `json:"file_name"`

	// Path — абсолютный путь к файлу.
	Path string `json:"path"`

	// Molecule — идентификатор молекулы из [input.molecules], если модель из begin/.
	Molecule string `json:"molecule,omitempty"`

	// ClusterID — номер кластера; nil — модель не кластеризована.
	ClusterID *int `json:"cluster_id,omitempty"`

	// Score — оценка модели, меньше — лучше.
	Score float64 `json:"score"`

	// Metadata — произвольные данные стадий.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Stem возвращает имя файла без расширения.
func (m Model) Stem() string {
	return strings.TrimSuffix(m.FileName, filepath.Ext(m.FileName))
}

// WithCluster возвращает копию модели с номером кластера.
func (m Model) WithCluster(id int) Model {
	m.ClusterID = &id
	return m
}

// Set — набор артефактов, который стадия передаёт следующей.
type Set interface {
	Kind() Kind
}

// Collection — конечный набор моделей.
type Collection []Model

// Kind реализует Set.
func (Collection) Kind() Kind { return KindCollection }

// Stream — ленивый набор моделей.
type Stream iter.Seq[Model]

// Kind реализует Set.
func (Stream) Kind() Kind { return KindStream }

// StreamOf оборачивает срез в Stream.
func StreamOf(models []Model) Stream {
	return Stream(slices.Values(models))
}

// Materialize возвращает модели конечного набора.
// Для Stream возвращает ErrLazySet и ничего не читает.
func Materialize(s Set) ([]Model, error) {
	switch v := s.(type) {
	case nil:
		return nil, ErrNilSet
	case Collection:
		return []Model(v), nil
	case Stream:
		return nil, ErrLazySet
	default:
		return nil, ErrUnknownKind
	}
}

// Drain читает набор целиком, в том числе Stream.
func Drain(s Set) ([]Model, error) {
	switch v := s.(type) {
	case nil:
		return nil, ErrNilSet
	case Collection:
		return []Model(v), nil
	case Stream:
		var out []Model
		for m := range v {
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, ErrUnknownKind
	}
}

// Clusters разбивает модели по ClusterID.
// Некластеризованные модели возвращаются отдельно.
// Порядок групп — по возрастанию номера кластера, порядок моделей сохраняется.
func Clusters(models []Model) (ids []int, groups map[int][]Model, unclustered []Model) {
	groups = make(map[int][]Model)
	for _, m := range models {
		if m.ClusterID == nil {
			unclustered = append(unclustered, m)
			continue
		}
		id := *m.ClusterID
		if _, ok := groups[id]; !ok {
			ids = append(ids, id)
		}
		groups[id] = append(groups[id], m)
	}
	slices.Sort(ids)
	return ids, groups, unclustered
}

// TopByScore возвращает не более k лучших моделей (по возрастанию Score).
// При равенстве сохраняется исходный порядок. k <= 0 — без ограничения.
func TopByScore(models []Model, k int) []Model {
	sorted := slices.Clone(models)
	slices.SortStableFunc(sorted, func(a, b Model) int {
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		default:
			return 0
		}
	})
	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
