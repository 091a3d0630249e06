package modules

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/pdb"
	"github.com/shaiso/stagerun/internal/recipe"
)

// ClustFCCFile — описание кластеров в каталоге стадии.
const ClustFCCFile = "clustfcc.txt"

// ClustFCC — кластеризация моделей по доле общих контактов (FCC).
//
// Контакты каждой модели считаются в отдельном job: встроенным расчётом
// или внешней программой executable. Затем модели жадно группируются:
// на каждом шаге кластером становится модель с наибольшим числом
// ещё не распределённых соседей. Номера кластеров идут с 1.
type ClustFCC struct {
	Base
}

// NewClustFCC создаёт стадию clustfcc.
func NewClustFCC() Module {
	return &ClustFCC{Base: NewBase("clustfcc", recipe.DefaultMethod, "clustering")}
}

// ConfirmInstallation проверяет внешнюю программу, если она задана.
func (s *ClustFCC) ConfirmInstallation(context.Context) error {
	exe, err := StringParam(s.Params(), "executable")
	if err != nil {
		return s.InstallationError(err)
	}
	if exe == "" {
		return nil
	}
	if _, err := exec.LookPath(exe); err != nil {
		return s.InstallationError(fmt.Errorf("contact executable %q: %w", exe, err))
	}
	return nil
}

// Execute реализует Module.
func (s *ClustFCC) Execute(ctx context.Context, prev artifact.Set) error {
	models, err := s.Collection(prev)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return s.FinishWithError(ErrEmptyInput)
	}

	p, err := s.fccParams()
	if err != nil {
		return s.FinishWithError(err)
	}

	if err := s.MakeDir(); err != nil {
		return err
	}

	jobs := make([]*domain.Job, 0, len(models))
	for _, m := range models {
		jobs = append(jobs, s.NewJob("contacts_"+m.Stem(), func(ctx context.Context) (any, error) {
			if p.executable != "" {
				return externalContacts(ctx, p.executable, m.Path, p.contactCutoff)
			}
			st, err := pdb.ReadFile(m.Path)
			if err != nil {
				return nil, err
			}
			return pdb.ContactSet(pdb.Contacts(st, p.contactCutoff)), nil
		}))
	}

	result := s.RunJobs(ctx, jobs)
	if result.Failed > 0 {
		return s.FinishWithError(result.Err())
	}

	sets := make([]map[string]struct{}, len(result.Jobs))
	for i, job := range result.Jobs {
		sets[i] = job.Output.(map[string]struct{})
	}

	clusters := ClusterFCC(sets, p.fractionCutoff, p.strictness, p.minPopulation)

	out := make(artifact.Collection, len(models))
	copy(out, models)
	for i := range out {
		out[i].ClusterID = nil
	}
	for i, members := range clusters {
		for _, idx := range members {
			out[idx] = out[idx].WithCluster(i + 1)
		}
	}

	if err := writeClusters(filepath.Join(s.Dir(), ClustFCCFile), out, clusters); err != nil {
		return s.FinishWithError(err)
	}

	s.Logger().Info("models clustered",
		"models", len(models),
		"clusters", len(clusters),
	)

	s.SetOutput(out)
	return nil
}

type fccParams struct {
	contactCutoff  float64
	fractionCutoff float64
	strictness     float64
	minPopulation  int
	executable     string
}

func (s *ClustFCC) fccParams() (fccParams, error) {
	var p fccParams
	var err error
	if p.contactCutoff, err = FloatParam(s.Params(), "contact_cutoff"); err != nil {
		return p, err
	}
	if p.fractionCutoff, err = FloatParam(s.Params(), "fraction_cutoff"); err != nil {
		return p, err
	}
	if p.strictness, err = FloatParam(s.Params(), "strictness"); err != nil {
		return p, err
	}
	if p.minPopulation, err = IntParam(s.Params(), "min_population"); err != nil {
		return p, err
	}
	if p.executable, err = StringParam(s.Params(), "executable"); err != nil {
		return p, err
	}
	return p, nil
}

// ClusterFCC группирует наборы контактов.
//
// j — сосед i, если fcc(i, j) >= cutoff и fcc(j, i) >= cutoff*strictness,
// где fcc(i, j) — доля контактов i, которые есть и у j.
// Возвращает индексы членов каждого кластера; первый член — центр.
// Кластеры меньше minPopulation не образуются.
func ClusterFCC(sets []map[string]struct{}, cutoff, strictness float64, minPopulation int) [][]int {
	n := len(sets)
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			fij := fraction(sets[i], sets[j])
			fji := fraction(sets[j], sets[i])
			if fij >= cutoff && fji >= cutoff*strictness {
				neighbors[i] = append(neighbors[i], j)
			}
			if fji >= cutoff && fij >= cutoff*strictness {
				neighbors[j] = append(neighbors[j], i)
			}
		}
	}

	assigned := make([]bool, n)
	var clusters [][]int

	for {
		center, best := -1, -1
		for i := 0; i < n; i++ {
			if assigned[i] {
				continue
			}
			free := 0
			for _, j := range neighbors[i] {
				if !assigned[j] {
					free++
				}
			}
			if free > best {
				center, best = i, free
			}
		}
		if center < 0 || best+1 < minPopulation {
			break
		}

		members := []int{center}
		assigned[center] = true
		for _, j := range neighbors[center] {
			if !assigned[j] {
				assigned[j] = true
				members = append(members, j)
			}
		}
		clusters = append(clusters, members)
	}

	return clusters
}

func fraction(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	common := 0
	for k := range a {
		if _, ok := b[k]; ok {
			common++
		}
	}
	return float64(common) / float64(len(a))
}

// externalContacts запускает executable MODEL CUTOFF и читает пары "A:1 B:7".
func externalContacts(ctx context.Context, exe, model string, cutoff float64) (map[string]struct{}, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, exe, model, strconv.FormatFloat(cutoff, 'f', -1, 64))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(exe), err, strings.TrimSpace(stderr.String()))
	}

	set := make(map[string]struct{})
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		set[fields[0]+"-"+fields[1]] = struct{}{}
	}
	return set, sc.Err()
}

func writeClusters(path string, models []artifact.Model, clusters [][]int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create clusters: %w", err)
	}

	w := bufio.NewWriter(f)
	for i, members := range clusters {
		fmt.Fprintf(w, "Cluster %d -> ", i+1)
		for k, idx := range members {
			if k > 0 {
				w.WriteString(" ")
			}
			w.WriteString(models[idx].FileName)
		}
		w.WriteString("\n")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write clusters: %w", err)
	}
	return f.Close()
}
