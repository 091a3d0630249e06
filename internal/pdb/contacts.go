package pdb

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Residue — остаток, однозначно заданный цепью, номером и кодом вставки.
type Residue struct {
	Chain string
	Seq   int
	ICode string
	Name  string
}

// String возвращает ключ вида "A:42" или "A:42B".
func (r Residue) String() string {
	return fmt.Sprintf("%s:%d%s", r.Chain, r.Seq, r.ICode)
}

func compareResidue(a, b Residue) int {
	return cmp.Or(
		cmp.Compare(a.Chain, b.Chain),
		cmp.Compare(a.Seq, b.Seq),
		cmp.Compare(a.ICode, b.ICode),
	)
}

// Contact — пара остатков из разных цепей в пределах cutoff.
type Contact struct {
	A, B Residue

	// Distance — минимальное расстояние между тяжёлыми атомами, Å.
	Distance float64
}

// Key возвращает ключ пары, не зависящий от порядка остатков.
func (c Contact) Key() string {
	return c.A.String() + "-" + c.B.String()
}

type cell struct{ x, y, z int }

// Contacts находит межцепочечные контакты остатков.
//
// Два остатка в контакте, если хотя бы одна пара тяжёлых атомов
// ближе cutoff. Результат отсортирован, в каждой паре A < B.
func Contacts(s *Structure, cutoff float64) []Contact {
	if cutoff <= 0 {
		return nil
	}

	var atoms []Atom
	for _, a := range s.Atoms {
		if !a.IsHydrogen() {
			atoms = append(atoms, a)
		}
	}

	cellOf := func(a Atom) cell {
		return cell{
			int(math.Floor(a.X / cutoff)),
			int(math.Floor(a.Y / cutoff)),
			int(math.Floor(a.Z / cutoff)),
		}
	}

	grid := make(map[cell][]int)
	for i, a := range atoms {
		c := cellOf(a)
		grid[c] = append(grid[c], i)
	}

	type pair struct{ a, b Residue }
	best := make(map[pair]float64)
	cutoff2 := cutoff * cutoff

	for i, a := range atoms {
		c := cellOf(a)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for dz := -1; dz <= 1; dz++ {
					for _, j := range grid[cell{c.x + dx, c.y + dy, c.z + dz}] {
						if j <= i {
							continue
						}
						b := atoms[j]
						if a.Chain == b.Chain {
							continue
						}
						d2 := sq(a.X-b.X) + sq(a.Y-b.Y) + sq(a.Z-b.Z)
						if d2 > cutoff2 {
							continue
						}

						ra, rb := a.Residue(), b.Residue()
						if compareResidue(ra, rb) > 0 {
							ra, rb = rb, ra
						}
						key := pair{ra, rb}
						if old, ok := best[key]; !ok || d2 < old {
							best[key] = d2
						}
					}
				}
			}
		}
	}

	contacts := make([]Contact, 0, len(best))
	for p, d2 := range best {
		contacts = append(contacts, Contact{A: p.a, B: p.b, Distance: math.Sqrt(d2)})
	}
	slices.SortFunc(contacts, func(x, y Contact) int {
		return cmp.Or(compareResidue(x.A, y.A), compareResidue(x.B, y.B))
	})
	return contacts
}

// ContactSet возвращает множество ключей контактов.
func ContactSet(contacts []Contact) map[string]struct{} {
	set := make(map[string]struct{}, len(contacts))
	for _, c := range contacts {
		set[c.Key()] = struct{}{}
	}
	return set
}

func sq(v float64) float64 { return v * v }
