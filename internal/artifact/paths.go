package artifact

import (
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var digitsRe = regexp.MustCompile(`\d+`)

// NumberFromStem возвращает последнее число в имени файла без расширения.
//
//	pdb_0011.pdb       → 11
//	pdb_20200101_1.pdb → 1
func NumberFromStem(name string) (int, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	found := digitsRe.FindAllString(stem, -1)
	if len(found) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(found[len(found)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortNumbered сортирует пути по числу в имени файла.
// Если хотя бы в одном имени числа нет, сортирует по алфавиту.
func SortNumbered(paths []string) []string {
	out := slices.Clone(paths)

	numbers := make(map[string]int, len(out))
	for _, p := range out {
		n, ok := NumberFromStem(p)
		if !ok {
			slices.Sort(out)
			return out
		}
		numbers[p] = n
	}

	slices.SortStableFunc(out, func(a, b string) int {
		return numbers[a] - numbers[b]
	})
	return out
}
