// Package pdb читает координаты из PDB-файлов и считает межцепочечные контакты.
package pdb
