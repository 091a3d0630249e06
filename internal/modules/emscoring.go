package modules

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/pdb"
	"github.com/shaiso/stagerun/internal/recipe"
)

// EMScoringFile — таблица оценок в каталоге стадии.
const EMScoringFile = "emscoring.tsv"

// EMScoring — стадия оценки моделей по числу межцепочечных контактов.
//
// Оценка модели: -weight * (число контактов остатков между цепями).
// Экспортирует ленивый поток: следующей стадии, которой нужна
// коллекция, нужно поставить между ними отбор (seletop).
type EMScoring struct {
	Base
}

// NewEMScoring создаёт стадию emscoring.
func NewEMScoring() Module {
	return &EMScoring{Base: NewBase("emscoring", recipe.DefaultMethod, "scoring")}
}

// Execute реализует Module.
func (s *EMScoring) Execute(ctx context.Context, prev artifact.Set) error {
	models, err := artifact.Drain(prev)
	if err != nil {
		return s.FinishWithError(err)
	}
	if len(models) == 0 {
		return s.FinishWithError(ErrEmptyInput)
	}

	cutoff, err := FloatParam(s.Params(), "contact_cutoff")
	if err != nil {
		return s.FinishWithError(err)
	}
	weight, err := FloatParam(s.Params(), "weight")
	if err != nil {
		return s.FinishWithError(err)
	}

	if err := s.MakeDir(); err != nil {
		return err
	}

	jobs := make([]*domain.Job, 0, len(models))
	for _, m := range models {
		jobs = append(jobs, s.NewJob("emscoring_"+m.Stem(), func(context.Context) (any, error) {
			return scoreModel(m, cutoff, weight)
		}))
	}

	result := s.RunJobs(ctx, jobs)
	if result.AllFailed() {
		return s.FinishWithError(result.Err())
	}

	scored := make([]artifact.Model, 0, result.Completed)
	for _, job := range result.Jobs {
		if job.Status != domain.JobStatusCompleted {
			s.Logger().Warn("model not scored", "job", job.Name, "error", job.Err)
			continue
		}
		scored = append(scored, job.Output.(artifact.Model))
	}

	if err := writeScores(filepath.Join(s.Dir(), EMScoringFile), scored); err != nil {
		return s.FinishWithError(err)
	}

	s.SetOutput(artifact.StreamOf(scored))
	return nil
}

func scoreModel(m artifact.Model, cutoff, weight float64) (artifact.Model, error) {
	st, err := pdb.ReadFile(m.Path)
	if err != nil {
		return artifact.Model{}, err
	}

	n := len(pdb.Contacts(st, cutoff))

	scored := m
	scored.Score = weight * float64(-n)
	scored.Metadata = make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		scored.Metadata[k] = v
	}
	scored.Metadata["contacts"] = n
	return scored, nil
}

func writeScores(path string, models []artifact.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scores: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "model\tcontacts\tscore")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%v\t%.3f\n", m.FileName, m.Metadata["contacts"], m.Score)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write scores: %w", err)
	}
	return f.Close()
}
