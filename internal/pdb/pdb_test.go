package pdb

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func atom(serial int, name, res, chain string, seq int, x, y, z float64, elem string) Atom {
	return Atom{Serial: serial, Name: name, ResName: res, Chain: chain, ResSeq: seq, X: x, Y: y, Z: z, Element: elem}
}

func TestFormatParse_RoundTrip(t *testing.T) {
	src := &Structure{Atoms: []Atom{
		atom(1, "CA", "ALA", "A", 1, 1.5, -2.25, 3.125, "C"),
		atom(2, "OG1", "THR", "B", 42, 10, 20, 30, "O"),
	}}

	var buf bytes.Buffer
	if err := Write(&buf, src); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got.Atoms) != 2 {
		t.Fatalf("expected 2 atoms, got %d", len(got.Atoms))
	}
	a := got.Atoms[1]
	if a.Name != "OG1" || a.ResName != "THR" || a.Chain != "B" || a.ResSeq != 42 || a.Z != 30 || a.Element != "O" {
		t.Errorf("unexpected atom after round trip: %+v", a)
	}
	if chains := got.Chains(); len(chains) != 2 || chains[0] != "A" {
		t.Errorf("unexpected chains %v", chains)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse(strings.NewReader("REMARK nothing here\n")); !errors.Is(err, ErrNoAtoms) {
		t.Errorf("expected ErrNoAtoms, got %v", err)
	}
	if _, err := Parse(strings.NewReader("ATOM      1  CA  ALA A   1\n")); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestParse_FirstModelOnly(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("MODEL        1\n")
	buf.WriteString(FormatAtom(atom(1, "CA", "ALA", "A", 1, 0, 0, 0, "C")) + "\n")
	buf.WriteString("ENDMDL\nMODEL        2\n")
	buf.WriteString(FormatAtom(atom(1, "CA", "ALA", "A", 1, 9, 9, 9, "C")) + "\n")
	buf.WriteString("ENDMDL\n")

	s, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Atoms) != 1 || s.Atoms[0].X != 0 {
		t.Errorf("expected only the first model, got %+v", s.Atoms)
	}
}

func TestContacts(t *testing.T) {
	s := &Structure{Atoms: []Atom{
		atom(1, "CA", "ALA", "A", 1, 0, 0, 0, "C"),
		atom(2, "CB", "ALA", "A", 1, 1, 0, 0, "C"),
		atom(3, "CA", "GLY", "B", 7, 3, 0, 0, "C"),   // 2 Å от A:1 CB
		atom(4, "H", "GLY", "B", 7, 0.5, 0, 0, "H"),  // водород не учитывается
		atom(5, "CA", "LEU", "B", 9, 20, 20, 20, "C"), // далеко
		atom(6, "CA", "SER", "A", 2, 3.5, 0, 0, "C"),  // та же цепь, что A:1
	}}

	contacts := Contacts(s, 5.0)
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d: %+v", len(contacts), contacts)
	}
	if contacts[0].Key() != "A:1-B:7" {
		t.Errorf("unexpected first contact %s", contacts[0].Key())
	}
	if contacts[0].Distance != 2 {
		t.Errorf("expected min distance 2, got %v", contacts[0].Distance)
	}
	if contacts[1].Key() != "A:2-B:7" {
		t.Errorf("unexpected second contact %s", contacts[1].Key())
	}

	set := ContactSet(contacts)
	if _, ok := set["A:1-B:7"]; !ok {
		t.Error("contact set misses A:1-B:7")
	}

	if Contacts(s, 0) != nil {
		t.Error("non-positive cutoff should give no contacts")
	}
}

func TestClean(t *testing.T) {
	in := strings.Join([]string{
		"HEADER    TEST",
		"REMARK   1 something",
		FormatAtom(atom(1, "CA", "ALA", "A", 1, 0, 0, 0, "C")),
		"ANISOU    1  CA  ALA A   1",
		"TER",
		"CONECT    1    2",
	}, "\n") + "\n"

	var out bytes.Buffer
	kept, err := Clean(&out, strings.NewReader(in))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if kept != 1 {
		t.Errorf("expected 1 coordinate record, got %d", kept)
	}
	got := out.String()
	if strings.Contains(got, "HEADER") || strings.Contains(got, "CONECT") || strings.Contains(got, "ANISOU") {
		t.Errorf("non-coordinate records kept: %q", got)
	}
	if !strings.HasSuffix(got, "TER\nEND\n") {
		t.Errorf("expected TER and END at the end, got %q", got)
	}
}
