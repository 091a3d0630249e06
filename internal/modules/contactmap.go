package modules

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shaiso/stagerun/internal/artifact"
	"github.com/shaiso/stagerun/internal/domain"
	"github.com/shaiso/stagerun/internal/pdb"
	"github.com/shaiso/stagerun/internal/recipe"
)

// ContactMapReport — сводный отчёт стадии contactmap.
const ContactMapReport = "ContactMapReport.tsv"

// Значения cluster_heatmap_datatype.
const (
	DatatypeContactRatio = "shortest-cont-ratio"
	DatatypeDistance     = "shortest-dist"
)

// ContactMap — анализ контактов остатков.
//
// Модели делятся по кластерам; некластеризованные модели обрезаются
// до topX лучших по оценке. На каждый кластер и на каждую отобранную
// некластеризованную модель создаётся job, результаты сводятся в
// ContactMapReport.tsv. Набор моделей передаётся дальше без изменений.
type ContactMap struct {
	Base
}

// NewContactMap создаёт стадию contactmap.
func NewContactMap() Module {
	return &ContactMap{Base: NewBase("contactmap", recipe.DefaultMethod, "analysis")}
}

// ContactMapResult — итог одного job contactmap.
type ContactMapResult struct {
	Name     string // имя job и файла карты без расширения
	Label    string // Cluster_<N> или stem модели
	Models   int
	Contacts int
	File     string
}

// Execute реализует Module.
func (s *ContactMap) Execute(ctx context.Context, prev artifact.Set) error {
	models, err := s.Collection(prev)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return s.FinishWithError(ErrEmptyInput)
	}
	s.Keep(prev)

	topX, err := IntParam(s.Params(), "topX")
	if err != nil {
		return s.FinishWithError(err)
	}
	datatype, err := StringParam(s.Params(), "cluster_heatmap_datatype")
	if err != nil {
		return s.FinishWithError(err)
	}
	if datatype != DatatypeContactRatio && datatype != DatatypeDistance {
		return s.FinishWithError(fmt.Errorf("%w: cluster_heatmap_datatype %q", ErrParamType, datatype))
	}
	threshold, err := FloatParam(s.Params(), "shortest_dist_threshold")
	if err != nil {
		return s.FinishWithError(err)
	}

	if err := s.MakeDir(); err != nil {
		return err
	}

	jobs := s.buildJobs(models, topX, datatype, threshold)

	result := s.RunJobs(ctx, jobs)
	if result.AllFailed() {
		return s.FinishWithError(result.Err())
	}

	var done []ContactMapResult
	for _, job := range result.Jobs {
		if job.Status != domain.JobStatusCompleted {
			s.Logger().Warn("contact map failed", "job", job.Name, "error", job.Err)
			continue
		}
		done = append(done, job.Output.(ContactMapResult))
	}

	if err := writeContactMapReport(filepath.Join(s.Dir(), ContactMapReport), done); err != nil {
		return s.FinishWithError(err)
	}
	return nil
}

// buildJobs разбивает модели на единицы работы:
// по job на кластер и на каждую из topX лучших некластеризованных моделей.
func (s *ContactMap) buildJobs(models []artifact.Model, topX int, datatype string, threshold float64) []*domain.Job {
	ids, groups, unclustered := artifact.Clusters(models)

	var jobs []*domain.Job
	for _, m := range artifact.TopByScore(unclustered, topX) {
		name := "Unclustered_contmap_" + m.Stem()
		out := filepath.Join(s.Dir(), name+".tsv")
		jobs = append(jobs, s.NewJob(name, func(context.Context) (any, error) {
			return singleContactMap(name, m, out, threshold)
		}))
	}

	for _, id := range ids {
		members := groups[id]
		name := fmt.Sprintf("cluster%d_contmap", id)
		out := filepath.Join(s.Dir(), name+".tsv")
		label := fmt.Sprintf("Cluster_%d", id)
		jobs = append(jobs, s.NewJob(name, func(context.Context) (any, error) {
			return clusterContactMap(name, label, members, out, datatype, threshold)
		}))
	}

	return jobs
}

func singleContactMap(name string, m artifact.Model, out string, threshold float64) (ContactMapResult, error) {
	st, err := pdb.ReadFile(m.Path)
	if err != nil {
		return ContactMapResult{}, err
	}
	contacts := pdb.Contacts(st, threshold)

	rows := make([][3]string, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, [3]string{c.A.String(), c.B.String(), fmt.Sprintf("%.3f", c.Distance)})
	}
	if err := writeContactTable(out, "distance", rows); err != nil {
		return ContactMapResult{}, err
	}

	return ContactMapResult{
		Name:     name,
		Label:    m.Stem(),
		Models:   1,
		Contacts: len(contacts),
		File:     filepath.Base(out),
	}, nil
}

func clusterContactMap(name, label string, members []artifact.Model, out, datatype string, threshold float64) (ContactMapResult, error) {
	type pairStat struct {
		count int
		dist  float64
	}
	stats := make(map[[2]string]*pairStat)

	for _, m := range members {
		st, err := pdb.ReadFile(m.Path)
		if err != nil {
			return ContactMapResult{}, err
		}
		for _, c := range pdb.Contacts(st, threshold) {
			key := [2]string{c.A.String(), c.B.String()}
			ps, ok := stats[key]
			if !ok {
				ps = &pairStat{}
				stats[key] = ps
			}
			ps.count++
			ps.dist += c.Distance
		}
	}

	keys := make([][2]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]string) int {
		if c := strings.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return strings.Compare(a[1], b[1])
	})

	column := "ratio"
	if datatype == DatatypeDistance {
		column = "mean_distance"
	}

	rows := make([][3]string, 0, len(keys))
	for _, k := range keys {
		ps := stats[k]
		var v float64
		if datatype == DatatypeDistance {
			v = ps.dist / float64(ps.count)
		} else {
			v = float64(ps.count) / float64(len(members))
		}
		rows = append(rows, [3]string{k[0], k[1], fmt.Sprintf("%.3f", v)})
	}
	if err := writeContactTable(out, column, rows); err != nil {
		return ContactMapResult{}, err
	}

	return ContactMapResult{
		Name:     name,
		Label:    label,
		Models:   len(members),
		Contacts: len(keys),
		File:     filepath.Base(out),
	}, nil
}

func writeContactTable(path, column string, rows [][3]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create contact map: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "residue_a\tresidue_b\t%s\n", column)
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", row[0], row[1], row[2])
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write contact map: %w", err)
	}
	return f.Close()
}

func writeContactMapReport(path string, results []ContactMapResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "job\tlabel\tmodels\tcontacts\tfile")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.Name, r.Label, r.Models, r.Contacts, r.File)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
