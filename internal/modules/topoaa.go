package modules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/pdb"
	"github.com/shaiso/stagerun/internal/recipe"
)

// TopoAA — стадия подготовки топологии: по job на входную молекулу.
//
// Каждый job читает PDB, отбрасывает HETATM (если не keep_hetatm),
// при необходимости перенумеровывает остатки и пишет <id>_topo.pdb.
// Падение любого job — падение стадии.
type TopoAA struct {
	Base
}

// NewTopoAA создаёт стадию topoaa.
func NewTopoAA() Module {
	return &TopoAA{Base: NewBase("topoaa", recipe.DefaultMethod, "topology")}
}

// Execute реализует Module.
func (s *TopoAA) Execute(ctx context.Context, prev artifact.Set) error {
	models, err := s.Collection(prev)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return s.FinishWithError(ErrEmptyInput)
	}

	keepHet, err := BoolParam(s.Params(), "keep_hetatm")
	if err != nil {
		return s.FinishWithError(err)
	}
	renumber, err := BoolParam(s.Params(), "renumber")
	if err != nil {
		return s.FinishWithError(err)
	}
	minAtoms, err := IntParam(s.Params(), "min_atoms")
	if err != nil {
		return s.FinishWithError(err)
	}

	if err := s.MakeDir(); err != nil {
		return err
	}

	jobs := make([]*domain.Job, 0, len(models))
	for _, m := range models {
		id := m.Molecule
		if id == "" {
			id = m.Stem()
		}
		out := filepath.Join(s.Dir(), id+"_topo.pdb")

		jobs = append(jobs, s.NewJob(id+"_topo", func(context.Context) (any, error) {
			return buildTopology(m, out, keepHet, renumber, minAtoms)
		}))
	}

	result := s.RunJobs(ctx, jobs)
	if result.Failed > 0 {
		return s.FinishWithError(result.Err())
	}

	produced := make(artifact.Collection, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		produced = append(produced, job.Output.(artifact.Model))
	}
	s.SetOutput(produced)
	return nil
}

func buildTopology(in artifact.Model, out string, keepHet, renumber bool, minAtoms int) (artifact.Model, error) {
	s, err := pdb.ReadFile(in.Path)
	if err != nil {
		return artifact.Model{}, err
	}

	atoms := s.Atoms[:0:0]
	for _, a := range s.Atoms {
		if a.Het && !keepHet {
			continue
		}
		atoms = append(atoms, a)
	}
	if len(atoms) < minAtoms {
		return artifact.Model{}, fmt.Errorf("%s: %d atoms left, need at least %d", in.FileName, len(atoms), minAtoms)
	}

	topo := &pdb.Structure{Atoms: atoms}
	if renumber {
		renumberResidues(topo)
	}

	if err := writeStructure(out, topo); err != nil {
		return artifact.Model{}, err
	}

	return artifact.Model{
		FileName: filepath.Base(out),
		Path:     out,
		Molecule: in.Molecule,
		Metadata: map[string]any{
			"chains":   topo.Chains(),
			"residues": topo.Residues(),
			"atoms":    len(topo.Atoms),
		},
	}, nil
}

func writeStructure(path string, s *pdb.Structure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := pdb.Write(f, s); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// renumberResidues нумерует остатки каждой цепи с 1 в порядке появления.
func renumberResidues(s *pdb.Structure) {
	next := make(map[string]int)
	var last pdb.Residue
	started := false

	for i := range s.Atoms {
		a := &s.Atoms[i]
		res := a.Residue()
		if !started || res != last {
			next[a.Chain]++
			last = res
			started = true
		}
		a.ResSeq = next[a.Chain]
		a.ICode = ""
		a.Serial = i + 1
	}
}
