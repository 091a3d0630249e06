package pdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Atom — одна запись ATOM/HETATM.
type Atom struct {
	Serial  int
	Name    string
	ResName string
	Chain   string
	ResSeq  int
	ICode   string
	X, Y, Z float64
	Element string
	Het     bool
}

// Residue возвращает остаток, которому принадлежит атом.
func (a Atom) Residue() Residue {
	return Residue{Chain: a.Chain, Seq: a.ResSeq, ICode: a.ICode, Name: a.ResName}
}

// IsHydrogen возвращает true для атомов водорода.
func (a Atom) IsHydrogen() bool {
	if a.Element != "" {
		return a.Element == "H" || a.Element == "D"
	}
	return strings.HasPrefix(strings.TrimLeft(a.Name, "0123456789"), "H")
}

// Structure — набор атомов одной модели.
type Structure struct {
	Atoms []Atom
}

// Chains возвращает идентификаторы цепей в порядке появления.
func (s *Structure) Chains() []string {
	var chains []string
	for _, a := range s.Atoms {
		if !slices.Contains(chains, a.Chain) {
			chains = append(chains, a.Chain)
		}
	}
	return chains
}

// Residues возвращает число различных остатков.
func (s *Structure) Residues() int {
	seen := make(map[Residue]struct{})
	for _, a := range s.Atoms {
		seen[a.Residue()] = struct{}{}
	}
	return len(seen)
}

// IsCoordinate возвращает true для записей ATOM и HETATM.
func IsCoordinate(line string) bool {
	return strings.HasPrefix(line, "ATOM  ") || strings.HasPrefix(line, "HETATM")
}

// Parse читает атомы из PDB.
// Берётся только первая модель (до первого ENDMDL).
func Parse(r io.Reader) (*Structure, error) {
	s := &Structure{}
	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := sc.Text()

		if strings.HasPrefix(line, "ENDMDL") {
			break
		}
		if !IsCoordinate(line) {
			continue
		}

		atom, err := parseAtom(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, lineNo, err)
		}
		s.Atoms = append(s.Atoms, atom)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read pdb: %w", err)
	}
	if len(s.Atoms) == 0 {
		return nil, ErrNoAtoms
	}
	return s, nil
}

// ReadFile читает PDB-файл.
func ReadFile(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdb: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func parseAtom(line string) (Atom, error) {
	if len(line) < 54 {
		return Atom{}, fmt.Errorf("record too short (%d columns)", len(line))
	}

	field := func(from, to int) string {
		if from >= len(line) {
			return ""
		}
		return strings.TrimSpace(line[from:min(to, len(line))])
	}

	var a Atom
	var err error

	a.Het = strings.HasPrefix(line, "HETATM")
	if serial := field(6, 11); serial != "" {
		if a.Serial, err = strconv.Atoi(serial); err != nil {
			return Atom{}, fmt.Errorf("serial: %v", err)
		}
	}
	a.Name = field(12, 16)
	a.ResName = field(17, 20)
	a.Chain = field(21, 22)
	if a.ResSeq, err = strconv.Atoi(field(22, 26)); err != nil {
		return Atom{}, fmt.Errorf("residue number: %v", err)
	}
	a.ICode = field(26, 27)
	if a.X, err = strconv.ParseFloat(field(30, 38), 64); err != nil {
		return Atom{}, fmt.Errorf("x: %v", err)
	}
	if a.Y, err = strconv.ParseFloat(field(38, 46), 64); err != nil {
		return Atom{}, fmt.Errorf("y: %v", err)
	}
	if a.Z, err = strconv.ParseFloat(field(46, 54), 64); err != nil {
		return Atom{}, fmt.Errorf("z: %v", err)
	}
	a.Element = strings.ToUpper(field(76, 78))

	return a, nil
}

// Clean копирует из r в w только записи координат и разделители моделей.
// Возвращает число сохранённых записей ATOM/HETATM.
func Clean(w io.Writer, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	bw := bufio.NewWriter(w)
	kept := 0
	ended := false

	for sc.Scan() {
		line := sc.Text()
		switch {
		case IsCoordinate(line):
			kept++
		case strings.HasPrefix(line, "TER"),
			strings.HasPrefix(line, "MODEL"),
			strings.HasPrefix(line, "ENDMDL"):
		case strings.HasPrefix(line, "END"):
			ended = true
		default:
			continue
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return kept, err
		}
	}
	if err := sc.Err(); err != nil {
		return kept, fmt.Errorf("read pdb: %w", err)
	}
	if !ended {
		if _, err := bw.WriteString("END\n"); err != nil {
			return kept, err
		}
	}
	return kept, bw.Flush()
}

// FormatAtom записывает атом в формате PDB фиксированной ширины.
func FormatAtom(a Atom) string {
	record := "ATOM"
	if a.Het {
		record = "HETATM"
	}
	name := a.Name
	if len(name) < 4 {
		name = " " + name
	}
	return fmt.Sprintf("%-6s%5d %-4s %3s %1s%4d%1s   %8.3f%8.3f%8.3f  1.00  0.00          %2s",
		record, a.Serial, name, a.ResName, a.Chain, a.ResSeq, a.ICode, a.X, a.Y, a.Z, a.Element)
}

// Write записывает структуру в w, завершая цепи записью TER.
func Write(w io.Writer, s *Structure) error {
	bw := bufio.NewWriter(w)
	for i, a := range s.Atoms {
		if _, err := bw.WriteString(FormatAtom(a) + "\n"); err != nil {
			return err
		}
		last := i == len(s.Atoms)-1
		if last || s.Atoms[i+1].Chain != a.Chain {
			if _, err := bw.WriteString("TER\n"); err != nil {
				return err
			}
		}
	}
	if _, err := bw.WriteString("END\n"); err != nil {
		return err
	}
	return bw.Flush()
}
