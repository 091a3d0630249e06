package pdb

import "errors"

var (
	// ErrMalformedRecord — запись ATOM/HETATM не разбирается.
	ErrMalformedRecord = errors.New("malformed coordinate record")

	// ErrNoAtoms — в файле нет записей координат.
	ErrNoAtoms = errors.New("no coordinate records")
)
