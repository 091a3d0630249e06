package modules

import (
	"context"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/recipe"
)

// SeleTop — отбор select лучших по оценке моделей.
// Принимает и коллекцию, и ленивый поток; экспортирует коллекцию.
type SeleTop struct {
	Base
}

// NewSeleTop создаёт стадию seletop.
func NewSeleTop() Module {
	return &SeleTop{Base: NewBase("seletop", recipe.DefaultMethod, "selection")}
}

// Execute реализует Module.
func (s *SeleTop) Execute(_ context.Context, prev artifact.Set) error {
	models, err := artifact.Drain(prev)
	if err != nil {
		return s.FinishWithError(err)
	}
	if len(models) == 0 {
		return s.FinishWithError(ErrEmptyInput)
	}

	n, err := IntParam(s.Params(), "select")
	if err != nil {
		return s.FinishWithError(err)
	}

	if err := s.MakeDir(); err != nil {
		return err
	}

	top := artifact.TopByScore(models, n)
	s.Logger().Info("models selected", "input", len(models), "selected", len(top))

	s.SetOutput(artifact.Collection(top))
	return nil
}
